// Package logx builds the loggers used by the monitor. While the terminal UI
// owns the screen, log output goes to a file or nowhere.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
)

// Levels lists the accepted level names.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// New returns a structured logger writing JSON lines to w.
func New(w io.Writer, level string) (pslog.Logger, error) {
	opts := pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
	}
	if err := applyLevel(&opts, level); err != nil {
		return nil, err
	}
	return pslog.NewWithOptions(w, opts), nil
}

// Open returns a logger appending to path. An empty path yields Discard and a
// no-op closer.
func Open(path, level string) (pslog.Logger, io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		if err := CheckLevel(level); err != nil {
			return nil, nil, err
		}
		return Discard(), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := New(f, level)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return logger, f, nil
}

// Discard returns a logger that drops everything.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

// WithPort annotates the logger with the port name when known.
func WithPort(log pslog.Logger, port string) pslog.Logger {
	if port != "" {
		log = log.With("port", port)
	}
	return log
}

// CheckLevel reports whether level is one of Levels. The empty string means
// info.
func CheckLevel(level string) error {
	return applyLevel(&pslog.Options{}, level)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func applyLevel(opts *pslog.Options, level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "", "info":
		opts.MinLevel = pslog.InfoLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q (want one of %s)", level, strings.Join(Levels, ", "))
	}
	return nil
}
