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

	"github.com/probeum/go-ouroboros/cborcodec"
)

// Channel is a Connection's per-mini-protocol byte-oriented endpoint: a
// Send splits an oversized payload across as many frames as needed, and a
// Recv returns exactly one frame's payload as pushed by the
// demultiplexer.
type Channel struct {
	id    uint16
	conn  *Connection
	queue *unboundedQueue
}

// ID reports the local (role-bit-stripped) protocol id this channel
// speaks for.
func (ch *Channel) ID() uint16 { return ch.id }

// Send writes payload to the peer, chunking it across multiple frames if
// it exceeds the maximum frame payload size. The mini-protocol message
// boundary is the payload boundary, not the frame boundary: the driver
// layer (C3) is responsible for knowing when it has read a complete
// message back out of however many frames it arrived in.
func (ch *Channel) Send(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return ch.conn.writeFrame(ch.id, nil)
	}
	for len(payload) > 0 {
		n := len(payload)
		if n > cborcodec.MaxPayload {
			n = cborcodec.MaxPayload
		}
		if err := ch.conn.writeFrame(ch.id, payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Recv blocks until the demultiplexer has delivered the next frame
// addressed to this channel, ctx is done, or the channel/connection has
// closed.
func (ch *Channel) Recv(ctx context.Context) ([]byte, error) {
	return ch.queue.pop(ctx)
}

// Close unregisters the channel from its connection and releases its
// queue. Further Recv calls return ErrQueueClosed; further Send calls
// still reach the wire (the underlying connection is unaffected), since
// sending is not gated on subscription the way receiving is.
func (ch *Channel) Close() {
	ch.conn.unregister(ch)
	ch.queue.close()
}
