package ipc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize is the 10 MiB cap spec.md's IPC framing section requires.
const MaxMessageSize = 10 * 1024 * 1024

// ErrMessageTooLarge is returned by ReadFrame when a length prefix exceeds
// MaxMessageSize.
var ErrMessageTooLarge = fmt.Errorf("ipc: message exceeds %d byte cap", MaxMessageSize)

// ReadFrame reads one length-prefixed little-endian uint32 message from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return body, nil
}

// WriteFrame writes body as a length-prefixed little-endian uint32 message
// and flushes.
func WriteFrame(w *bufio.Writer, body []byte) error {
	if len(body) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	if _, err := w.Write(body); err != nil {
		return err
	}

	return w.Flush()
}
