package serial

import (
	"errors"
	"testing"

	"go.bug.st/serial"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaudRate != 9600 {
		t.Errorf("Expected baud rate 9600, got %d", cfg.BaudRate)
	}
	if cfg.DataBits != 8 {
		t.Errorf("Expected data bits 8, got %d", cfg.DataBits)
	}
	if cfg.StopBits != 2 {
		t.Errorf("Expected stop bits 2, got %d", cfg.StopBits)
	}
	if cfg.Parity != "none" {
		t.Errorf("Expected parity none, got %s", cfg.Parity)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Expected no timeout, got %v", cfg.Timeout)
	}
	if cfg.Port != "" {
		t.Errorf("Expected empty port, got %q", cfg.Port)
	}
}

func TestConfigString(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default", DefaultConfig(), "9600/8N2"},
		{"even", Config{BaudRate: 115200, DataBits: 7, StopBits: 1, Parity: "even"}, "115200/7E1"},
		{"empty parity", Config{BaudRate: 19200, DataBits: 8, StopBits: 1}, "19200/8N1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseParity(t *testing.T) {
	tests := []struct {
		input   string
		want    serial.Parity
		wantErr bool
	}{
		{"none", serial.NoParity, false},
		{"", serial.NoParity, false},
		{"odd", serial.OddParity, false},
		{"EVEN", serial.EvenParity, false},
		{"mark", serial.MarkParity, false},
		{"s", serial.SpaceParity, false},
		{"invalid", serial.NoParity, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseParity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseParity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseParity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConvertStopBits(t *testing.T) {
	tests := []struct {
		input int
		want  serial.StopBits
	}{
		{1, serial.OneStopBit},
		{2, serial.TwoStopBits},
		{15, serial.OnePointFiveStopBits},
		{0, serial.OneStopBit},
	}

	for _, tt := range tests {
		if got := convertStopBits(tt.input); got != tt.want {
			t.Errorf("convertStopBits(%d) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestError(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := NewError("open", "/dev/ttyUSB0", cause)

	want := "serial open failed on port /dev/ttyUSB0: no such file or directory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to its cause")
	}

	bare := NewError("close", "COM3", nil)
	if bare.Error() != "serial close failed on port COM3" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestOpenerFunc(t *testing.T) {
	called := ""
	var o Opener = OpenerFunc(func(name string, cfg Config) (Port, error) {
		called = name
		return nil, errors.New("nope")
	})
	if _, err := o.Open("COM9", DefaultConfig()); err == nil {
		t.Fatal("expected error")
	}
	if called != "COM9" {
		t.Errorf("expected opener to be called with COM9, got %q", called)
	}
}
