// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

// queue holds bytes waiting for a destination to become writable.
type queue struct {
	data      []byte
	highWater int
}

func (q *queue) push(p []byte) {
	q.data = append(q.data, p...)
}

func (q *queue) len() int { return len(q.data) }

// full reports whether the queue has reached its high-water mark and
// its sources should stop being read.
func (q *queue) full() bool { return len(q.data) >= q.highWater }

// consume drops the first n bytes after a successful write.
func (q *queue) consume(n int) {
	q.data = q.data[n:]
	if len(q.data) == 0 {
		q.data = nil
	}
}

func (q *queue) reset() { q.data = nil }
