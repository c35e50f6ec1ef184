package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Terminator ends every frame on the wire in both directions.
const Terminator byte = 0x00

const readChunk = 256

// MaxFrameSize is the default longest frame a FrameReader holds back while
// waiting for a terminator.
const MaxFrameSize = 4096

var (
	// ErrNotASCII is returned by Encode for text outside 7-bit ASCII.
	ErrNotASCII = errors.New("text is not 7-bit ASCII")
	// ErrEmbeddedTerminator is returned by Encode when text contains NUL.
	ErrEmbeddedTerminator = errors.New("text contains the frame terminator")
)

// DecodeError reports the first byte of a frame that is not 7-bit ASCII.
type DecodeError struct {
	Offset int
	Byte   byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid byte 0x%02x at offset %d", e.Byte, e.Offset)
}

// Encode returns text followed by the terminator.
func Encode(text string) ([]byte, error) {
	if strings.IndexByte(text, Terminator) >= 0 {
		return nil, ErrEmbeddedTerminator
	}
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			return nil, ErrNotASCII
		}
	}
	out := make([]byte, 0, len(text)+1)
	out = append(out, text...)
	return append(out, Terminator), nil
}

// Decode interprets a frame, without its terminator, as 7-bit text.
func Decode(frame []byte) (string, error) {
	for i, b := range frame {
		if b >= utf8.RuneSelf {
			return "", &DecodeError{Offset: i, Byte: b}
		}
	}
	return string(frame), nil
}

// FrameReader splits a byte stream into terminator-delimited frames.
//
// A read that returns no bytes and no error is treated as an expired read
// timeout. When FlushOnIdle is set, bytes pending at that point are returned
// as a frame of their own; otherwise reading simply continues.
//
// Once MaxFrame bytes are pending without a terminator, they are returned as
// a frame and the rest of the stream is framed from there.
type FrameReader struct {
	r           io.Reader
	pending     []byte
	scratch     []byte
	err         error
	FlushOnIdle bool
	MaxFrame    int
}

// NewFrameReader creates a FrameReader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, scratch: make([]byte, readChunk), MaxFrame: MaxFrameSize}
}

// ReadFrame blocks until a full frame is available and returns it without
// the terminator. The returned slice is owned by the caller. Bytes received
// before a read error are discarded together with the error.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if i := bytes.IndexByte(f.pending, Terminator); i >= 0 {
			frame := make([]byte, i)
			copy(frame, f.pending[:i])
			f.pending = f.pending[i+1:]
			return frame, nil
		}
		if f.MaxFrame > 0 && len(f.pending) >= f.MaxFrame {
			frame := make([]byte, f.MaxFrame)
			copy(frame, f.pending)
			f.pending = append(f.pending[:0], f.pending[f.MaxFrame:]...)
			return frame, nil
		}
		if f.err != nil {
			return nil, f.err
		}

		n, err := f.r.Read(f.scratch)
		if n > 0 {
			f.pending = append(f.pending, f.scratch[:n]...)
		}
		if err != nil {
			f.err = err
			continue
		}
		if n == 0 && f.FlushOnIdle && len(f.pending) > 0 {
			frame := f.pending
			f.pending = nil
			return frame, nil
		}
	}
}
