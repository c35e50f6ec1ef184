package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"serialmon/pkg/config"
	"serialmon/pkg/serial"
)

func newConfigCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file and saved profiles",
		Long: `Manage the serialmon config file and saved serial port profiles.

A profile stores line settings under a name for quick access, e.g.
'serialmon connect bench'.`,
	}

	cmd.AddCommand(newConfigInitCmd(cfgPath))
	cmd.AddCommand(newConfigSaveCmd(cfgPath))
	cmd.AddCommand(newConfigShowCmd(cfgPath))
	cmd.AddCommand(newConfigListCmd(cfgPath))
	cmd.AddCommand(newConfigDeleteCmd(cfgPath))
	cmd.AddCommand(newConfigDescribeCmd(cfgPath))
	return cmd
}

func newConfigInitCmd(cfgPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(*cfgPath, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newConfigSaveCmd(cfgPath *string) *cobra.Command {
	var port, parity, description string
	var baudRate, dataBits, stopBits int
	var timeout time.Duration
	def := serial.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a serial port profile",
		Long: `Save serial port settings under a name.

Example:
  serialmon config save bench -p /dev/ttyUSB0 -b 115200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := serial.Config{
				Port:     port,
				BaudRate: baudRate,
				DataBits: dataBits,
				StopBits: stopBits,
				Parity:   parity,
				Timeout:  timeout,
			}
			if _, err := serial.ParseParity(cfg.Parity); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			store, err := config.NewProfileStore(profileDir(*cfgPath))
			if err != nil {
				return err
			}
			if err := store.Save(args[0], cfg, description); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile '%s' saved successfully.\n", args[0])
			printSerialConfig(out, cfg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "serial port")
	cmd.Flags().IntVarP(&baudRate, "baud", "b", def.BaudRate, "baud rate")
	cmd.Flags().IntVarP(&dataBits, "data", "d", def.DataBits, "data bits")
	cmd.Flags().IntVarP(&stopBits, "stop", "s", def.StopBits, "stop bits")
	cmd.Flags().StringVar(&parity, "parity", def.Parity, "parity")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", def.Timeout, "read timeout, 0 waits for data indefinitely")
	cmd.Flags().StringVar(&description, "description", "", "free-form note shown by 'config show'")
	return cmd
}

func newConfigShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show the effective config or a saved profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				cfg, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			store, err := config.NewProfileStore(profileDir(*cfgPath))
			if err != nil {
				return err
			}
			profiles, err := store.List()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				if p.Name == args[0] {
					printProfile(out, p)
					return nil
				}
			}
			return fmt.Errorf("profile '%s' not found", args[0])
		},
	}
}

func newConfigListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore(profileDir(*cfgPath))
			if err != nil {
				return err
			}
			profiles, err := store.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No saved profiles found.")
				fmt.Fprintln(out, "\nUse 'serialmon config save <name>' to save one.")
				return nil
			}

			fmt.Fprintf(out, "Found %d saved profile(s):\n\n", len(profiles))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPORT\tSETTINGS\tLAST USED\tCREATED")
			fmt.Fprintln(w, "----\t----\t--------\t---------\t-------")
			for _, p := range profiles {
				port := p.Config.Port
				if port == "" {
					port = "(discover)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.Name,
					port,
					p.Config.String(),
					formatTime(p.LastUsedAt),
					formatTime(p.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func newConfigDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Short:   "Delete a saved profile",
		Aliases: []string{"rm", "remove"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore(profileDir(*cfgPath))
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted successfully.\n", args[0])
			return nil
		},
	}
}

func newConfigDescribeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name> <description>",
		Short: "Set the description of a saved profile",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore(profileDir(*cfgPath))
			if err != nil {
				return err
			}
			return store.SetDescription(args[0], strings.Join(args[1:], " "))
		},
	}
}

func printSerialConfig(w io.Writer, cfg serial.Config) {
	port := cfg.Port
	if port == "" {
		port = "(discover)"
	}
	timeout := "none"
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout.String()
	}
	fmt.Fprintf(w, "  Port:        %s\n", port)
	fmt.Fprintf(w, "  Baud Rate:   %d\n", cfg.BaudRate)
	fmt.Fprintf(w, "  Data Bits:   %d\n", cfg.DataBits)
	fmt.Fprintf(w, "  Stop Bits:   %d\n", cfg.StopBits)
	fmt.Fprintf(w, "  Parity:      %s\n", cfg.Parity)
	fmt.Fprintf(w, "  Timeout:     %s\n", timeout)
}

func printProfile(w io.Writer, p config.Profile) {
	fmt.Fprintf(w, "Profile: %s\n", p.Name)
	fmt.Fprintln(w, strings.Repeat("=", len(p.Name)+9))
	if p.Description != "" {
		fmt.Fprintf(w, "%s\n\n", p.Description)
	}
	printSerialConfig(w, p.Config)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Created:     %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Last Used:   %s\n", formatTime(p.LastUsedAt))
	fmt.Fprintf(w, "\nUse 'serialmon connect %s' to connect using this profile.\n", p.Name)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04")
}
