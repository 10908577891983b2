// Copyright 2024 The go-ouroboros Authors
// This file is part of the go-ouroboros library.
//
// The go-ouroboros library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ouroboros library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ouroboros library. If not, see <http://www.gnu.org/licenses/>.

package muxer

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by a blocked or future pop once the queue has
// been closed, either by the owning Channel dropping or by the
// demultiplexer terminating.
var ErrQueueClosed = errors.New("muxer: queue closed")

// unboundedQueue is a single-producer, single-consumer FIFO of unbounded
// depth. Payloads are at most 64 KiB and bounded per round trip by peer
// behavior, so an unbounded queue never grows without limit in practice;
// it exists so the demultiplexer never blocks on a slow consumer.
type unboundedQueue struct {
	in        chan []byte
	out       chan []byte
	closeCh   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{
		in:      make(chan []byte),
		out:     make(chan []byte),
		closeCh: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *unboundedQueue) run() {
	defer close(q.closed)
	var buf [][]byte
	for {
		if len(buf) == 0 {
			select {
			case v, ok := <-q.in:
				if !ok {
					return
				}
				buf = append(buf, v)
			case <-q.closeCh:
				return
			}
			continue
		}
		select {
		case v, ok := <-q.in:
			if !ok {
				return
			}
			buf = append(buf, v)
		case q.out <- buf[0]:
			buf = buf[1:]
		case <-q.closeCh:
			return
		}
	}
}

// push enqueues b. It never blocks the caller indefinitely past the
// queue's own closing: if the queue is closed concurrently, push reports
// that the item was dropped.
func (q *unboundedQueue) push(b []byte) bool {
	select {
	case q.in <- b:
		return true
	case <-q.closeCh:
		return false
	}
}

// pop waits for the next item, the queue closing, or ctx's cancellation.
func (q *unboundedQueue) pop(ctx context.Context) ([]byte, error) {
	select {
	case v, ok := <-q.out:
		if !ok {
			return nil, ErrQueueClosed
		}
		return v, nil
	case <-q.closeCh:
		// A final item may have been buffered right as Close ran; give
		// the closed out channel one more non-blocking check.
		select {
		case v, ok := <-q.out:
			if ok {
				return v, nil
			}
		default:
		}
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close shuts the queue down. Idempotent.
func (q *unboundedQueue) close() {
	q.closeOnce.Do(func() { close(q.closeCh) })
}
