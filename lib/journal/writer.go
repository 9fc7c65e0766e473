// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"fmt"
	"os"
	"sync"

	"github.com/bureau-foundation/piper/lib/codec"
)

// Writer appends records to a journal file. It is safe for concurrent
// use.
type Writer struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	compression Compression
}

// Open opens path for appending, creating it if needed.
func Open(path string, compression Compression) (*Writer, error) {
	if _, err := compress(nil, compression); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Writer{file: file, path: path, compression: compression}, nil
}

// Path returns the journal file's path.
func (w *Writer) Path() string { return w.path }

// Append encodes record and writes it as one frame with a single write
// call.
func (w *Writer) Append(record Record) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding journal record: %w", err)
	}
	payload, err := compress(data, w.compression)
	if err != nil {
		return err
	}
	frame := appendFrame(make([]byte, 0, len(payload)+11), w.compression, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("journal %s is closed", w.path)
	}
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("writing journal %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the file. Further appends fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing journal %s: %w", w.path, syncErr)
	}
	return closeErr
}
