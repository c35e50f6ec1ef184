// Package cmd implements the serialmon command line.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"serialmon/pkg/config"
)

const version = "1.0.0"

// sessionFlags are the line and session settings accepted by the root and
// connect commands. Only flags the user actually set override the config
// file.
type sessionFlags struct {
	profile    string
	baudRate   int
	dataBits   int
	stopBits   int
	parity     string
	timeout    time.Duration
	scrollback int
	logFile    string
	logLevel   string
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	def := config.DefaultConfig()
	fs.StringVar(&f.profile, "profile", "", "load line settings from a saved profile")
	fs.IntVarP(&f.baudRate, "baud", "b", def.Serial.BaudRate, "baud rate")
	fs.IntVarP(&f.dataBits, "data", "d", def.Serial.DataBits, "data bits (5, 6, 7, or 8)")
	fs.IntVarP(&f.stopBits, "stop", "s", def.Serial.StopBits, "stop bits (1 or 2)")
	fs.StringVar(&f.parity, "parity", def.Serial.Parity, "parity (none, odd, even, mark, space)")
	fs.DurationVarP(&f.timeout, "timeout", "t", def.Serial.Timeout, "read timeout, 0 waits for data indefinitely")
	fs.IntVar(&f.scrollback, "scrollback", def.Scrollback.Lines, "number of output lines kept")
	fs.StringVar(&f.logFile, "log-file", "", "write a session log to this file")
	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "session log level (trace, debug, info, warn, error)")
}

// apply copies the flags that were set on the command line into cfg.
func (f *sessionFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("baud") {
		cfg.Serial.BaudRate = f.baudRate
	}
	if fs.Changed("data") {
		cfg.Serial.DataBits = f.dataBits
	}
	if fs.Changed("stop") {
		cfg.Serial.StopBits = f.stopBits
	}
	if fs.Changed("parity") {
		cfg.Serial.Parity = f.parity
	}
	if fs.Changed("timeout") {
		cfg.Serial.Timeout = f.timeout
	}
	if fs.Changed("scrollback") {
		cfg.Scrollback.Lines = f.scrollback
	}
	if fs.Changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

// NewRootCmd builds the command tree. Running it without a subcommand starts
// a session, discovering a port when none is given.
func NewRootCmd() *cobra.Command {
	var cfgPath string
	var flags sessionFlags

	root := &cobra.Command{
		Use:   "serialmon [port]",
		Short: "Terminal monitor for NUL-framed serial devices",
		Long: `serialmon talks to microcontroller firmware that frames every message
with a trailing NUL byte.

Received messages are shown with a timestamp in the output pane. Press Enter
to type a message, Enter again to send it, Ctrl+C to leave edit mode and
Ctrl+C once more to quit. Up and Down scroll the output.

Without a port the usual USB serial device names are tried in order and the
first one that opens is used.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, cfgPath, &flags, args)
		},
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default is the user config directory)")
	flags.register(root.Flags())

	root.AddCommand(newConnectCmd(&cfgPath))
	root.AddCommand(newListCmd())
	root.AddCommand(newConfigCmd(&cfgPath))

	return root
}
