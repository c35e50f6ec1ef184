package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"serialmon/pkg/serial"
)

// replaced in tests
var (
	listPorts     = serial.ListPorts
	detailedPorts = serial.DetailedPorts
	portAvailable = serial.IsPortAvailable
)

func newListCmd() *cobra.Command {
	var details bool
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Long: `List all available serial ports on the system.

On different platforms:
  - Windows: Lists COM ports
  - Linux: Lists /dev/tty* devices
  - macOS: Lists /dev/cu.* and /dev/tty.* devices`,
		Aliases: []string{"ls", "ports"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := collectPorts(details)
			if err != nil {
				return err
			}
			return printPorts(cmd.OutOrStdout(), ports, format, details)
		},
	}
	cmd.Flags().BoolVarP(&details, "details", "d", false, "show USB vendor, product and serial number")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, csv, json)")
	return cmd
}

func collectPorts(details bool) ([]serial.PortInfo, error) {
	if details {
		return detailedPorts()
	}
	names, err := listPorts()
	if err != nil {
		return nil, err
	}
	ports := make([]serial.PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, serial.PortInfo{Name: name})
	}
	return ports, nil
}

func printPorts(w io.Writer, ports []serial.PortInfo, format string, details bool) error {
	switch format {
	case "table", "":
		printPortsTable(w, ports, details)
		return nil
	case "csv":
		return printPortsCSV(w, ports, details)
	case "json":
		return printPortsJSON(w, ports, details)
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

func printPortsTable(w io.Writer, ports []serial.PortInfo, details bool) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return
	}
	fmt.Fprintf(w, "Found %d serial port(s):\n", len(ports))

	if !details {
		for _, p := range ports {
			fmt.Fprintf(w, "  %s\n", p.Name)
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PORT\tUSB\tVID:PID\tPRODUCT\tSERIAL")
		for _, p := range ports {
			usb, ids := "no", ""
			if p.IsUSB {
				usb = "yes"
				ids = p.VID + ":" + p.PID
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.Name, usb, ids, p.Product, p.SerialNumber)
		}
		tw.Flush()
	}

	fmt.Fprintln(w, "\nUse 'serialmon connect <port>' to connect.")
}

func printPortsCSV(w io.Writer, ports []serial.PortInfo, details bool) error {
	cw := csv.NewWriter(w)
	if details {
		cw.Write([]string{"port", "is_usb", "vid", "pid", "product", "serial_number"})
		for _, p := range ports {
			cw.Write([]string{p.Name, strconv.FormatBool(p.IsUSB), p.VID, p.PID, p.Product, p.SerialNumber})
		}
	} else {
		cw.Write([]string{"port"})
		for _, p := range ports {
			cw.Write([]string{p.Name})
		}
	}
	cw.Flush()
	return cw.Error()
}

func printPortsJSON(w io.Writer, ports []serial.PortInfo, details bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if details {
		return enc.Encode(ports)
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return enc.Encode(names)
}
