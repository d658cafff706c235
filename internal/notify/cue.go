// Package notify gives feedback outside the console: an audible cue when
// listening starts and desktop notifications of the response text.
package notify

import (
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
}

// Cue is a short sound decoded once into memory.
type Cue struct {
	out Output
	buf *beep.Buffer
}

func LoadCue(path string, out Output) (*Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: out.SampleRate(), NumChannels: 2, Precision: 2})
	buf.Append(beep.Resample(4, format.SampleRate, out.SampleRate(), streamer))

	return &Cue{out: out, buf: buf}, nil
}

// Play starts the cue without waiting for it, wired to the
// listening indicator.
func (c *Cue) Play() {
	c.out.Play(c.buf.Streamer(0, c.buf.Len()))
}
