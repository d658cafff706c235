package backend

import (
	"context"

	"dollar/internal/speech"
)

// Espeak writes synthesized speech to a WAV file with the espeak-ng
// executable.
type Espeak struct {
	Name  string // executable, default espeak-ng
	Voice string
}

func (e Espeak) Synthesize(ctx context.Context, text, path string) error {
	name := e.Name
	if name == "" {
		name = "espeak-ng"
	}
	args := []string{"-w", path}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	return speech.Command{Name: name, Args: append(args, "--")}.Say(ctx, text)
}
