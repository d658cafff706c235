package notify

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
)

type fakeOutput struct{ played []beep.Streamer }

func (o *fakeOutput) SampleRate() beep.SampleRate { return 44100 }
func (o *fakeOutput) Play(s beep.Streamer)        { o.played = append(o.played, s) }

func TestLoadCue_Errors(t *testing.T) {
	_, err := LoadCue(filepath.Join(t.TempDir(), "beep.mp3"), &fakeOutput{})
	assert.Error(t, err)
}

func TestDesktop_SetText(t *testing.T) {
	got := make(chan string, 1)
	d := NewDesktop("Dollar")
	d.run = func(_ context.Context, name string, args ...string) error {
		got <- name + " " + strings.Join(args, " ")
		return nil
	}

	d.SetText("hi there")
	select {
	case cmd := <-got:
		assert.Equal(t, "notify-send -a Dollar Dollar hi there", cmd)
	case <-time.After(time.Second):
		t.Fatal("notify-send not run")
	}
}
