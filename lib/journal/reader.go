// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/piper/lib/codec"
)

// Scan calls fn with the decompressed CBOR payload of every frame in r,
// in file order. It stops at the first error from fn.
func Scan(r io.Reader, fn func(payload []byte) error) error {
	reader := bufio.NewReader(r)
	for index := 0; ; index++ {
		compression, payload, err := readFrame(reader)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", index, err)
		}
		data, err := decompress(payload, compression)
		if err != nil {
			return fmt.Errorf("frame %d: %w", index, err)
		}
		if err := fn(data); err != nil {
			return err
		}
	}
}

// Decode reads every record from r. On error it also returns the
// records decoded before the failure, so a journal whose last frame was
// cut short by a crash is still readable.
func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	err := Scan(r, func(payload []byte) error {
		var record Record
		if err := codec.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("decoding record %d: %w", len(records), err)
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

// ReadAll decodes the journal file at path.
func ReadAll(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// IsTruncated reports whether err from Scan, Decode or ReadAll means the
// journal ends in a partial frame.
func IsTruncated(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}
