package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize caps a single length-prefixed preview frame. A full-size
// live-view JPEG is under 1 MiB; anything near this limit is a corrupt
// length field, not a frame.
const MaxFrameSize = 16 << 20

// ErrFrameTooLarge reports a length prefix exceeding MaxFrameSize. The
// stream cannot be resynchronized after it; the receiver drops the
// connection and redials.
var ErrFrameTooLarge = errors.New("ipc: frame length exceeds maximum")

// WriteFrame writes one frame as a 4-byte big-endian length followed by
// the frame bytes.
func WriteFrame(w io.Writer, frame []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. A short read yields
// io.ErrUnexpectedEOF (wrapped); an implausible length yields
// ErrFrameTooLarge. Neither is fatal to the process: the caller discards
// the frame, drops the connection and reattempts its read loop.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", length, err)
	}
	return frame, nil
}
