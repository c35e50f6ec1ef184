// Package serial wraps go.bug.st/serial behind the small surface the monitor
// needs: opening a named port with line settings, enumerating ports and
// framing NUL-terminated text.
package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Config describes how a port is opened. Port may be empty, in which case the
// caller is expected to discover one.
type Config struct {
	Port     string        `json:"port" mapstructure:"port" yaml:"port"`
	BaudRate int           `json:"baud_rate" mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits int           `json:"data_bits" mapstructure:"data_bits" yaml:"data_bits"`
	StopBits int           `json:"stop_bits" mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity   string        `json:"parity" mapstructure:"parity" yaml:"parity"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
}

// DefaultConfig returns 9600 8N2 with blocking reads.
func DefaultConfig() Config {
	return Config{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 2,
		Parity:   "none",
	}
}

// String renders the line settings in the usual 9600/8N2 notation.
func (c Config) String() string {
	p := "N"
	if c.Parity != "" {
		p = strings.ToUpper(c.Parity[:1])
	}
	return fmt.Sprintf("%d/%d%s%d", c.BaudRate, c.DataBits, p, c.StopBits)
}

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens ports by name.
type Opener interface {
	Open(name string, cfg Config) (Port, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string, cfg Config) (Port, error)

// Open calls f.
func (f OpenerFunc) Open(name string, cfg Config) (Port, error) {
	return f(name, cfg)
}

// DeviceOpener opens real devices through go.bug.st/serial.
type DeviceOpener struct{}

// Open opens name with the line settings in cfg. Line settings the driver does
// not support are reported by the driver itself.
func (DeviceOpener) Open(name string, cfg Config) (Port, error) {
	parity, err := ParseParity(cfg.Parity)
	if err != nil {
		return nil, NewError("open", name, err)
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: convertStopBits(cfg.StopBits),
		Parity:   parity,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, NewError("open", name, err)
	}

	timeout := serial.NoTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, NewError("set read timeout", name, err)
	}
	return &devicePort{port: port, name: name}, nil
}

type devicePort struct {
	port serial.Port
	name string
}

func (p *devicePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
			return n, io.EOF
		}
		return n, NewError("read", p.name, err)
	}
	return n, nil
}

func (p *devicePort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, NewError("write", p.name, err)
	}
	return n, nil
}

func (p *devicePort) Close() error {
	if err := p.port.Close(); err != nil {
		return NewError("close", p.name, err)
	}
	return nil
}

// convertStopBits maps 1 and 2 to the driver constants; 15 selects 1.5.
func convertStopBits(stopBits int) serial.StopBits {
	switch stopBits {
	case 2:
		return serial.TwoStopBits
	case 15:
		return serial.OnePointFiveStopBits
	default:
		return serial.OneStopBit
	}
}

// ParseParity converts a parity name to the driver constant. The empty string
// means none.
func ParseParity(parity string) (serial.Parity, error) {
	switch strings.ToLower(parity) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("unknown parity %q", parity)
	}
}

// Error is a failed operation on a named port.
type Error struct {
	Operation string
	Port      string
	Cause     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serial %s failed on port %s: %v", e.Operation, e.Port, e.Cause)
	}
	return fmt.Sprintf("serial %s failed on port %s", e.Operation, e.Port)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new serial error
func NewError(operation, port string, cause error) *Error {
	return &Error{
		Operation: operation,
		Port:      port,
		Cause:     cause,
	}
}
