// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxPayloadBytes bounds a single frame so a corrupt length cannot make
// the reader allocate without limit.
const maxPayloadBytes = 16 << 20

// appendFrame appends the framed payload to buffer.
func appendFrame(buffer []byte, compression Compression, payload []byte) []byte {
	buffer = append(buffer, byte(compression))
	buffer = binary.AppendUvarint(buffer, uint64(len(payload)))
	return append(buffer, payload...)
}

// readFrame reads the next frame. It returns io.EOF only at a clean
// frame boundary; a frame cut short returns io.ErrUnexpectedEOF.
func readFrame(reader *bufio.Reader) (Compression, []byte, error) {
	tag, err := reader.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	length, err := binary.ReadUvarint(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("reading frame length: %w", err)
	}
	if length > maxPayloadBytes {
		return 0, nil, fmt.Errorf("frame length %d exceeds limit %d", length, maxPayloadBytes)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(reader, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return Compression(tag), payload, nil
}
