package notify

import (
	"context"
	log "log/slog"
	"os/exec"
	"time"
)

// Desktop shows display updates as desktop notifications via notify-send.
type Desktop struct {
	App     string
	Timeout time.Duration
	run     func(ctx context.Context, name string, args ...string) error
}

func NewDesktop(app string) *Desktop {
	return &Desktop{App: app, Timeout: 5 * time.Second, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (d *Desktop) SetText(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.run(ctx, "notify-send", "-a", d.App, d.App, text); err != nil {
			log.Debug("notify-send failed", "err", err)
		}
	}()
}
