// Package capture turns one listening session into a final transcript.
package capture

import (
	"context"
	log "log/slog"
	"strings"
	"sync"

	"dollar/pkg/audioconv"
)

// Source produces mono 16 kHz PCM for one session. An empty result means
// nobody spoke.
type Source interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Ducker quiets other audio while listening.
type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

// Result is the single outcome of a session: a transcript or an *Error.
type Result struct {
	Transcript string
	Audio      []byte // WAV of what was heard
	Err        error
}

type Adapter struct {
	source      Source
	transcriber Transcriber
	ducker      Ducker
	onState     func(listening bool)

	mu        sync.Mutex
	lastAudio []byte
}

func NewAdapter(src Source, tr Transcriber) *Adapter {
	return &Adapter{source: src, transcriber: tr}
}

func (a *Adapter) WithDucker(d Ducker) *Adapter {
	a.ducker = d
	return a
}

// OnState registers the listening indicator toggle.
func (a *Adapter) OnState(f func(listening bool)) *Adapter {
	a.onState = f
	return a
}

// Available reports whether speech capture can run at all.
func (a *Adapter) Available() bool {
	return a != nil && a.source != nil && a.transcriber != nil
}

// LastAudio returns the recording of the most recent session, or nil.
func (a *Adapter) LastAudio() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAudio
}

// Start opens a session on src, or on the default source when src is nil.
// The returned channel yields exactly one Result and is then closed.
// Start does not guard against overlapping sessions.
func (a *Adapter) Start(ctx context.Context, src Source) <-chan Result {
	if src == nil {
		src = a.source
	}

	out := make(chan Result, 1)
	a.setState(true)

	go func() {
		defer close(out)

		res := a.run(ctx, src)

		a.mu.Lock()
		a.lastAudio = res.Audio
		a.mu.Unlock()

		a.setState(false)
		out <- res
	}()

	return out
}

func (a *Adapter) run(ctx context.Context, src Source) Result {
	if src == nil || a.transcriber == nil {
		return Result{Err: &Error{Code: CodeNotAllowed}}
	}

	if a.ducker != nil {
		if err := a.ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck audio", "err", err)
		}
		defer func() {
			if err := a.ducker.Unduck(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to restore audio", "err", err)
			}
		}()
	}

	pcm, err := src.Record(ctx)
	if err != nil {
		return Result{Err: classify(ctx, err, CodeAudioCapture)}
	}
	if len(pcm) == 0 {
		return Result{Err: &Error{Code: CodeNoSpeech}}
	}

	log.Debug("Recorded", "samples", len(pcm))

	wav, err := audioconv.EncodeWAV(pcm, audioconv.SampleRate)
	if err != nil {
		log.Warn("Failed to encode recording", "err", err)
	}

	text, err := a.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return Result{Audio: wav, Err: classify(ctx, err, CodeTranscription)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Audio: wav, Err: &Error{Code: CodeNoSpeech}}
	}

	log.Info("Recognized", "text", text)
	return Result{Transcript: text, Audio: wav}
}

func (a *Adapter) setState(listening bool) {
	if a.onState != nil {
		a.onState(listening)
	}
}
