// Package ipc implements the byte-oriented channel between the leader process
// and its sibling workers: a length-prefixed frame codec, the leader-side
// peer handle, and the sibling-side serve loop.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames are a fixed-width 4-byte little-endian length followed by exactly
// that many raw bytes, no terminator. Little-endian is pinned so that
// cross-architecture siblings agree on the wire.
const lenFieldSize = 4

// maxFrameSize guards against a corrupt length field committing us to an
// absurd read.
const maxFrameSize = 64 << 20

// ErrFrameTooLarge reports a length field above maxFrameSize.
var ErrFrameTooLarge = errors.New("ipc: frame exceeds size limit")

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return ErrFrameTooLarge
	}
	var hdr [lenFieldSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("ipc: frame header write: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: frame payload write: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. Short reads surface as errors.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [lenFieldSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("ipc: frame header read: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ipc: frame payload read: %w", err)
	}
	return payload, nil
}
