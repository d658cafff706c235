// Package coordinator runs turns: it owns the busy flag and the
// cancellation handle of the exchange in flight, and tears down playback
// before every new turn.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"dollar/internal/capture"
	"dollar/internal/exchange"
	"dollar/internal/playback"
	"dollar/internal/ui"
)

const (
	msgNetwork      = "Error: Network issue detected. Please check your internet connection."
	msgAudioLoad    = "Error: Audio file not found or failed to load."
	msgVoiceMissing = "Error: Voice input is not available."
)

type Capture interface {
	Start(ctx context.Context, src capture.Source) <-chan capture.Result
	LastAudio() []byte
}

type Exchanger interface {
	Exchange(ctx context.Context, req exchange.Request) (exchange.Result, error)
}

type Speaker interface {
	Speak(text string)
	Cancel()
}

type Player interface {
	Load(ctx context.Context, url string) error
	Stop()
}

type Deps struct {
	Capture  Capture // nil disables voice input
	Exchange Exchanger
	Speaker  Speaker // nil disables spoken responses
	Player   Player
	Display  ui.Display
	Mic      ui.Mic
}

type turn struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type Coordinator struct {
	d Deps

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	busy      bool
	listening bool
	current   *turn // exchange in flight
	shown     *turn // last turn whose result is on display
	closed    bool

	wg sync.WaitGroup
}

func New(d Deps) *Coordinator {
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{d: d, base: base, cancel: cancel}
}

func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Coordinator) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Tap opens a capture session on src (nil = microphone). It is ignored
// while a turn is in flight or a session is already open.
func (c *Coordinator) Tap(src capture.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.busy || c.listening {
		log.Debug("Tap ignored", "busy", c.busy, "listening", c.listening)
		return
	}
	if c.d.Capture == nil {
		c.d.Display.SetText(msgVoiceMissing)
		return
	}

	c.stopPlayback()

	ctx, cancel := context.WithCancel(c.base)
	c.listening = true
	results := c.d.Capture.Start(ctx, src)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		res, ok := <-results
		if !ok {
			res.Err = &capture.Error{Code: capture.CodeAborted}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.listening = false

		if res.Err != nil {
			c.captureFailed(res.Err)
			return
		}
		c.begin(res.Transcript)
	}()
}

// Submit starts a turn for typed text. Unlike Tap it does not wait for
// the turn in flight: that exchange is canceled and replaced. Blank text
// is ignored.
func (c *Coordinator) Submit(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	c.stopPlayback()
	c.begin(text)
	return true
}

// StopPlayback silences the current response without touching the turn.
func (c *Coordinator) StopPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPlayback()
}

// Close cancels everything in flight and waits for it to settle.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopPlayback()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// Wait blocks until every started turn and capture session has settled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// begin must be called with c.mu held.
func (c *Coordinator) begin(text string) {
	if c.closed {
		return
	}

	if c.current != nil {
		c.current.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	t := &turn{ctx: ctx, cancel: cancel}
	c.current = t
	c.busy = true
	c.d.Mic.SetMic(ui.MicWorking)

	var audio []byte
	if c.d.Capture != nil {
		audio = c.d.Capture.LastAudio()
	}

	log.Info("Turn started", "text", text, "audio", len(audio))

	c.wg.Add(1)
	go c.run(t, exchange.Request{Text: text, Audio: audio})
}

func (c *Coordinator) run(t *turn, req exchange.Request) {
	defer c.wg.Done()
	defer t.cancel()

	res, err := c.d.Exchange.Exchange(t.ctx, req)

	c.mu.Lock()
	if c.current == t {
		c.current = nil
		c.busy = false
		c.d.Mic.SetMic(ui.MicIdle)
	}

	// A canceled turn stays silent even if its response made it through.
	if t.ctx.Err() != nil || exchange.IsAbort(err) {
		c.mu.Unlock()
		log.Debug("Request aborted", "text", req.Text)
		return
	}

	if err != nil {
		log.Error("Exchange failed", "err", err)
		c.d.Display.SetText(errorMessage(err))
		c.shown = t
		c.mu.Unlock()
		return
	}

	c.d.Display.SetText(res.Text)
	c.shown = t
	if c.d.Speaker != nil {
		c.d.Speaker.Speak(res.Text)
	}
	c.mu.Unlock()

	c.loadAudio(t, res.AudioURL)
}

func (c *Coordinator) loadAudio(t *turn, url string) {
	err := c.d.Player.Load(c.base, url)
	if err == nil {
		log.Debug("Audio loaded successfully", "url", url)
		return
	}
	if errors.Is(err, playback.ErrSuperseded) || c.base.Err() != nil {
		return
	}

	log.Error("Error loading audio", "err", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shown == t && c.current == nil {
		c.d.Display.SetText(msgAudioLoad)
	}
}

// captureFailed must be called with c.mu held.
func (c *Coordinator) captureFailed(err error) {
	var ce *capture.Error
	errors.As(err, &ce)

	if ce != nil && ce.Code == capture.CodeAborted && c.closed {
		return
	}

	log.Error("Speech recognition error detected", "err", err)
	c.d.Display.SetText(captureMessage(ce))

	if c.current == nil {
		c.busy = false
		c.d.Mic.SetMic(ui.MicIdle)
	}
}

// stopPlayback must be called with c.mu held.
func (c *Coordinator) stopPlayback() {
	c.d.Player.Stop()
	if c.d.Speaker != nil {
		c.d.Speaker.Cancel()
	}
}

func captureMessage(ce *capture.Error) string {
	code := "unknown"
	if ce != nil {
		code = ce.Code
	}
	if code == capture.CodeNetwork {
		return msgNetwork
	}
	return fmt.Sprintf("Error: %s.", code)
}

func errorMessage(err error) string {
	return "Error: " + err.Error()
}
