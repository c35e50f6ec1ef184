package serial

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts returns the names of the ports present on the system, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// DetailedPorts returns USB details for every port where the OS exposes them.
func DetailedPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get detailed ports list: %w", err)
	}
	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// IsPortAvailable checks if a specific port is available
func IsPortAvailable(portName string) bool {
	ports, err := serial.GetPortsList()
	if err != nil {
		return false
	}
	for _, port := range ports {
		if port == portName {
			return true
		}
	}
	return false
}
