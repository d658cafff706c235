// Package ui is the assistant's visible surface: the response text and the
// microphone indicator.
package ui

import (
	"fmt"
	"io"
	"sync"
)

type MicState int

const (
	MicIdle MicState = iota
	MicListening
	MicWorking
)

func (m MicState) Icon() string {
	switch m {
	case MicListening:
		return "🎙️"
	case MicWorking:
		return "⏳"
	default:
		return "🎤"
	}
}

func (m MicState) String() string {
	switch m {
	case MicListening:
		return "listening"
	case MicWorking:
		return "working"
	default:
		return "idle"
	}
}

// Display shows the response or error text.
type Display interface {
	SetText(text string)
}

// Mic shows the capture affordance.
type Mic interface {
	SetMic(state MicState)
}

// Console renders to a terminal.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	text string
	mic  MicState
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	fmt.Fprintf(c.w, "%s %s\n", c.mic.Icon(), text)
}

func (c *Console) SetMic(state MicState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mic == state {
		return
	}
	c.mic = state
	fmt.Fprintf(c.w, "%s %s\n", state.Icon(), state)
}

func (c *Console) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Console) Mic() MicState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mic
}

// Multi fans display updates out, in order.
type Multi []Display

func (m Multi) SetText(text string) {
	for _, d := range m {
		d.SetText(text)
	}
}
