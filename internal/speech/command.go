package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Command speaks by running an external synthesizer with the text as its
// last argument. Canceling kills the process.
type Command struct {
	Name string
	Args []string
}

// EspeakCommand runs the espeak-ng executable with voice.
func EspeakCommand(voice string) Command {
	return Command{Name: "espeak-ng", Args: []string{"-v", voice, "--"}}
}

func (c Command) Say(ctx context.Context, text string) error {
	args := append(append([]string(nil), c.Args...), text)
	err := exec.CommandContext(ctx, c.Name, args...).Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited: %w", c.Name, err)
	}
	return err
}
