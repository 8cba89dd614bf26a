package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ReadStreamFrame reads one length-prefixed frame from a stream-channel
// connection: a little-endian 16-bit length L, then L bytes of body. It
// accumulates across short reads via io.ReadFull rather than treating a
// partial body as an error, since a TCP stream may legitimately deliver a
// frame's bytes across multiple underlying reads (spec §9).
//
// It returns io.EOF only when the peer closed the connection cleanly at a
// frame boundary (before the length prefix arrived). A close partway
// through the length prefix or the body is returned as an error wrapping
// io.ErrUnexpectedEOF; other read errors and an oversized declared length
// are returned as they are (the latter as *BadFrame).
func ReadStreamFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("stream closed mid length-prefix: %w", err)
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint16(lenBuf[:])
	if int(length) > MaxFrameSize {
		return nil, badFrame("declared frame length %d exceeds maximum %d", length, MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("stream closed mid frame body: %w", err)
	}

	return body, nil
}
