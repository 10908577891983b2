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

// Package muxer implements the framed duplex transport (C2): a Connection
// demultiplexes incoming frames to per-protocol inbound queues and
// serializes outbound frames from many concurrently driven mini-protocols.
package muxer

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/log"
)

// Role identifies which side of a connection this process is playing. It
// governs the protocol-id high bit a Channel sets on frames it sends.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) bit() uint16 {
	if r == RoleServer {
		return 0x8000
	}
	return 0
}

// dialTimeout bounds TCP and domain-socket connect attempts.
const dialTimeout = 2 * time.Second

// Dial opens a TCP connection to addr (host, or host:port — a bare host
// gets defaultPort appended) and wraps it in a Connection playing role.
func Dial(ctx context.Context, addr string, defaultPort string, role Role) (*Connection, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("muxer: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return New(conn, role), nil
}

// DialUnix opens a local domain socket connection at path. Domain sockets
// are not available on every platform; callers on platforms without them
// will get the usual net.OpError from the dialer.
func DialUnix(ctx context.Context, path string, role Role) (*Connection, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("muxer: dial unix %s: %w", path, err)
	}
	return New(conn, role), nil
}

// Connection owns a duplex byte stream: one writer half serialized behind
// a mutex, one reader half consumed exclusively by a lazily started
// demultiplexer goroutine, and the subscriber map the demultiplexer
// dispatches into.
type Connection struct {
	rw    io.ReadWriteCloser
	role  Role
	start time.Time

	writeMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[uint16]*Channel

	demuxOnce sync.Once
	demuxErr  error
	closed    chan struct{}
	closeOnce sync.Once
}

// New wraps an already-established duplex byte stream in a Connection.
func New(rw io.ReadWriteCloser, role Role) *Connection {
	return &Connection{
		rw:          rw,
		role:        role,
		start:       time.Now(),
		subscribers: make(map[uint16]*Channel),
		closed:      make(chan struct{}),
	}
}

// Role reports which side of the connection this process plays.
func (c *Connection) Role() Role { return c.role }

// Open creates (or replaces) the Channel for a mini-protocol id. Opening a
// second Channel for the same id silently replaces the first per the
// multiplexer's subscriber-replacement rule; the previous Channel's queue
// is closed so any blocked Recv on it fails.
func (c *Connection) Open(localID uint16) *Channel {
	ch := &Channel{
		id:    localID,
		conn:  c,
		queue: newUnboundedQueue(),
	}
	c.subMu.Lock()
	if old, ok := c.subscribers[localID]; ok {
		old.queue.close()
	}
	c.subscribers[localID] = ch
	c.subMu.Unlock()

	c.demuxOnce.Do(func() { go c.demuxLoop() })
	return ch
}

// unregister removes ch from the subscriber map if it is still the
// current holder of its id. Called by Channel.Close.
func (c *Connection) unregister(ch *Channel) {
	c.subMu.Lock()
	if cur, ok := c.subscribers[ch.id]; ok && cur == ch {
		delete(c.subscribers, ch.id)
	}
	c.subMu.Unlock()
}

// Close tears the connection down: closes the underlying stream, which
// unblocks the demultiplexer's pending read, and closes every live
// Channel's queue so any in-flight driver fails with an error.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.rw.Close()
		close(c.closed)
	})
	return err
}

// writeFrame serializes one frame under the writer mutex. The lock is not
// held across any suspension other than the write itself.
func (c *Connection) writeFrame(localID uint16, payload []byte) error {
	if len(payload) > cborcodec.MaxPayload {
		return fmt.Errorf("muxer: frame payload too large: %d bytes", len(payload))
	}
	hdr := cborcodec.FrameHeader{
		Timestamp:  uint32(time.Since(c.start).Microseconds()),
		ProtocolID: localID | c.role.bit(),
		Length:     uint16(len(payload)),
	}
	headerBytes, err := cborcodec.EncodeHeader(hdr)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.rw.Write(headerBytes); err != nil {
		return fmt.Errorf("muxer: write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := c.rw.Write(payload); err != nil {
			return fmt.Errorf("muxer: write payload: %w", err)
		}
	}
	return nil
}

// demuxLoop is the connection's single reader task. It runs until the
// underlying stream errors, then closes every live channel's queue so
// pending Recv calls surface the failure.
func (c *Connection) demuxLoop() {
	err := c.readLoop()
	c.subMu.Lock()
	c.demuxErr = err
	subs := make([]*Channel, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		subs = append(subs, ch)
	}
	c.subMu.Unlock()
	for _, ch := range subs {
		ch.queue.close()
	}
	if err != nil && err != io.EOF {
		log.Debug("muxer: demultiplexer stopped", "err", err)
	}
}

func (c *Connection) readLoop() error {
	headerBuf := make([]byte, cborcodec.HeaderSize)
	for {
		if _, err := io.ReadFull(c.rw, headerBuf); err != nil {
			return err
		}
		hdr, err := cborcodec.DecodeHeader(headerBuf)
		if err != nil {
			return fmt.Errorf("muxer: decode frame header: %w", err)
		}
		payload := make([]byte, hdr.Length)
		if hdr.Length > 0 {
			if _, err := io.ReadFull(c.rw, payload); err != nil {
				return fmt.Errorf("muxer: read frame payload: %w", err)
			}
		}

		localID := hdr.LocalID()
		c.subMu.Lock()
		ch := c.subscribers[localID]
		c.subMu.Unlock()
		if ch == nil {
			log.Debug("muxer: dropping frame for unregistered protocol", "proto", localID, "len", hdr.Length)
			continue
		}
		ch.queue.push(payload)
	}
}
