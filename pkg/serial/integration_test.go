//go:build integration
// +build integration

package serial

import (
	"errors"
	"testing"
)

// TestListPorts tests the actual port enumeration
func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts() failed: %v", err)
	}

	// We can't guarantee any specific ports exist, but the function should not error
	t.Logf("Available ports: %v", ports)
}

// TestDetailedPorts tests the detailed port information
func TestDetailedPorts(t *testing.T) {
	infos, err := DetailedPorts()
	if err != nil {
		t.Errorf("DetailedPorts() failed: %v", err)
	}

	for _, info := range infos {
		t.Logf("Port: %s, USB: %v, VID: %s, PID: %s, Serial: %s, Product: %s",
			info.Name, info.IsUSB, info.VID, info.PID, info.SerialNumber, info.Product)
	}
}

// TestDeviceOpenerMissingPort verifies that opening a port that does not exist fails cleanly
func TestDeviceOpenerMissingPort(t *testing.T) {
	if IsPortAvailable("COM_FAKE") {
		t.Skip("COM_FAKE unexpectedly exists")
	}
	port, err := DeviceOpener{}.Open("COM_FAKE", DefaultConfig())
	if err == nil {
		port.Close()
		t.Fatal("expected error opening COM_FAKE")
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Port != "COM_FAKE" {
		t.Errorf("expected *Error for COM_FAKE, got %v", err)
	}
}
