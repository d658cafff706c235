// Package device drives the system speaker.
package device

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Speaker is the system audio output. The beep speaker is process-wide, so
// it is initialized once at a fixed rate and everything is resampled to it.
type Speaker struct {
	rate beep.SampleRate
}

var (
	speakerOnce sync.Once
	speakerErr  error
)

func NewSpeaker(rate beep.SampleRate) (*Speaker, error) {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, speakerErr
	}
	return &Speaker{rate: rate}, nil
}

func (s *Speaker) SampleRate() beep.SampleRate { return s.rate }

func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }

func (s *Speaker) Clear() { speaker.Clear() }
