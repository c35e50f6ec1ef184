package link

import (
	"errors"
	"fmt"
)

// Kind classifies link failures.
type Kind int

const (
	// KindDiscovery means no candidate port could be opened.
	KindDiscovery Kind = iota
	// KindExplicitOpen means a port named by the operator could not be opened.
	KindExplicitOpen
	// KindDecode means a received frame was not 7-bit text.
	KindDecode
	// KindEncode means an outgoing message could not be framed.
	KindEncode
	// KindWrite means a transmit failed.
	KindWrite
)

// String returns the string representation of Kind
func (k Kind) String() string {
	types := []string{"discovery", "explicit open", "decode", "encode", "write"}
	if k >= 0 && int(k) < len(types) {
		return types[k]
	}
	return "unknown"
}

var (
	// ErrNoDevice is the cause of a discovery failure.
	ErrNoDevice = errors.New("no device found")
	// ErrNotConnected is returned by Send while no port is open.
	ErrNotConnected = errors.New("not connected")
)

// Error is a link failure on an optional port.
type Error struct {
	Kind  Kind
	Port  string
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String() + " failure"
	if e.Port != "" {
		msg = fmt.Sprintf("%s on %s", msg, e.Port)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a link Error of kind k.
func IsKind(err error, k Kind) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == k
}

// Fatal reports whether err ends the session. Only a failed explicit open is
// unconditionally fatal; discovery failures are up to the operator.
func Fatal(err error) bool {
	return IsKind(err, KindExplicitOpen)
}
