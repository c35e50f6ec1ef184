package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"serialmon/pkg/config"
	"serialmon/pkg/logx"
	"serialmon/pkg/serial"
)

// Runner provides a high-level interface to run a session on the real
// terminal and devices.
type Runner struct {
	cfg    config.Config
	out    io.Writer
	opener serial.Opener
}

// NewRunner creates a runner that prints the session summary to out once the
// screen has been released.
func NewRunner(cfg config.Config, out io.Writer) *Runner {
	return &Runner{cfg: cfg, out: out, opener: serial.DeviceOpener{}}
}

// Run blocks until the session ends.
func (r *Runner) Run(ctx context.Context) error {
	logger, closer, err := logx.Open(r.cfg.Logging.File, r.cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	app, err := New(Options{
		Port:       r.cfg.Serial.Port,
		Serial:     r.cfg.Serial,
		Candidates: r.cfg.Discovery,
		Scrollback: r.cfg.Scrollback.Lines,
		Opener:     r.opener,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	runErr := app.Run(ctx)
	r.printSummary(app.Summary())
	return runErr
}

func (r *Runner) printSummary(s Summary) {
	if r.out == nil || s.Port == "" {
		return
	}
	fmt.Fprintf(r.out, "\n=== Session Summary ===\n")
	fmt.Fprintf(r.out, "Port: %s (%s)\n", s.Port, s.Settings)
	fmt.Fprintf(r.out, "Duration: %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "Frames Sent: %d (%d bytes)\n", s.Stats.FramesOut, s.Stats.BytesOut)
	fmt.Fprintf(r.out, "Frames Received: %d (%d bytes)\n", s.Stats.FramesIn, s.Stats.BytesIn)
	if s.Stats.DecodeErrors > 0 {
		fmt.Fprintf(r.out, "Decode Errors: %d\n", s.Stats.DecodeErrors)
	}
	fmt.Fprintf(r.out, "=======================\n")
}
