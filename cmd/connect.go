package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"serialmon/pkg/app"
	"serialmon/pkg/config"
	"serialmon/pkg/link"
)

func newConnectCmd(cfgPath *string) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "connect [port|profile]",
		Short: "Connect to a serial port",
		Long: `Connect to a serial port directly or using a saved profile.

You can specify either:
  - A port name (e.g., COM3, /dev/ttyUSB0) with optional parameters
  - A saved profile name
  - Nothing, to discover the first available USB serial device

Examples:
  # Connect to COM3 with default settings
  serialmon connect COM3

  # Connect to /dev/ttyUSB0 with a different baud rate
  serialmon connect /dev/ttyUSB0 -b 115200

  # Connect using a saved profile
  serialmon connect bench`,
		Aliases: []string{"open"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, *cfgPath, &flags, args)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func runSession(cmd *cobra.Command, cfgPath string, flags *sessionFlags, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	cfg, err := resolveConfig(cmd, cfgPath, flags, target)
	if err != nil {
		return err
	}

	pslog.Ctx(cmd.Context()).Debug("starting session", "port", cfg.Serial.Port, "settings", cfg.Serial.String())

	err = app.NewRunner(cfg, cmd.OutOrStdout()).Run(cmd.Context())
	return explainOpenError(err, cfg.Serial.Port)
}

// explainOpenError adds a hint when a requested port could not be opened and
// is not among the ports the system reports. The port list is only read on
// that failure path.
func explainOpenError(err error, port string) error {
	if port == "" || !link.IsKind(err, link.KindExplicitOpen) {
		return err
	}
	if portAvailable(port) {
		return err
	}
	return fmt.Errorf("%w (port %s not found, run 'serialmon list' to see available ports)", err, port)
}

// resolveConfig layers the config file, an optional profile, the target
// argument and explicitly set flags, in that order. A target that names a
// saved profile selects it; anything else is taken as a port name.
func resolveConfig(cmd *cobra.Command, cfgPath string, flags *sessionFlags, target string) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}

	profile := flags.profile
	port := ""
	if target != "" {
		if profile == "" && profileExists(cfgPath, target) {
			profile = target
		} else {
			port = target
		}
	}

	if profile != "" {
		store, err := config.NewProfileStore(profileDir(cfgPath))
		if err != nil {
			return config.Config{}, err
		}
		sc, err := store.Load(profile)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Serial = sc
	}

	flags.apply(cmd.Flags(), &cfg)
	if port != "" {
		cfg.Serial.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func profileExists(cfgPath, name string) bool {
	store, err := config.NewProfileStore(profileDir(cfgPath))
	if err != nil {
		return false
	}
	return store.Exists(name)
}

// profileDir keeps profiles next to an explicit config file. An empty result
// selects the default directory.
func profileDir(cfgPath string) string {
	if cfgPath == "" {
		return ""
	}
	return filepath.Dir(cfgPath)
}
