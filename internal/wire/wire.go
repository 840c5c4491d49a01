// Package wire implements the framed transport of spec §4.5: a u32
// size prefix followed by size payload bytes, symmetric on both
// directions, with a zero-length frame as the end-of-stream sentinel.
// Modeled on the teacher's read/write pump split
// (ws/internal/shared/pump_read.go, pump_write.go), generalized from
// WebSocket frames to raw length-prefixed TCP frames since the spec's
// transport is plain TCP, not WebSocket.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single payload to guard against a
// misbehaving/hostile peer claiming an enormous size; the spec does
// not define a limit, so this is a generous ambient safety net, not a
// protocol feature.
const MaxFrameSize = 64 << 20 // 64 MiB

// ErrEndOfStream is returned by ReadFrame when it reads the
// zero-length sentinel frame.
var ErrEndOfStream = fmt.Errorf("wire: end of stream")

// WriteFrame writes one frame: a u32 size prefix then payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// WriteEndOfStream writes the zero-length sentinel frame.
func WriteEndOfStream(w io.Writer) error {
	return WriteFrame(w, nil)
}

// ReadFrame reads one frame. It returns ErrEndOfStream (with a nil
// payload) when the frame is the zero-length sentinel.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size == 0 {
		return nil, ErrEndOfStream
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame size %d exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return payload, nil
}
