// Package speech speaks response text aloud, one utterance at a time.
package speech

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
)

// Engine speaks text and returns when playback finished or ctx is done.
type Engine interface {
	Say(ctx context.Context, text string) error
}

type utterance struct {
	cancel context.CancelFunc
}

// Speaker owns the current utterance.
type Speaker struct {
	engine Engine

	mu      sync.Mutex
	current *utterance
	wg      sync.WaitGroup
}

func NewSpeaker(e Engine) *Speaker {
	return &Speaker{engine: e}
}

// Speak starts speaking text in the background, canceling any utterance
// still playing. It does not wait for playback.
func (s *Speaker) Speak(text string) {
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{cancel: cancel}

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
	}
	s.current = u
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		if err := s.engine.Say(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Failed to voice out", "err", err)
		}

		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()
	}()
}

// Cancel stops the current utterance, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Wait blocks until every utterance goroutine has returned.
func (s *Speaker) Wait() {
	s.wg.Wait()
}
