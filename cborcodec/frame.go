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

// Package cborcodec implements the wire-level pieces shared by every
// mini-protocol: the 8-byte frame header and a typed iterator over decoded
// CBOR values. It knows nothing about any particular mini-protocol's
// message shapes.
package cborcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of a frame header: u32 timestamp | u16
// protocol id | u16 payload length.
const HeaderSize = 8

// MaxPayload is the largest payload a single frame may carry (the length
// field is 16 bits).
const MaxPayload = 0xFFFF

// ErrPayloadTooLarge is returned by EncodeHeader when asked to frame a
// payload longer than MaxPayload bytes.
var ErrPayloadTooLarge = errors.New("cborcodec: payload exceeds maximum frame length")

// FrameHeader is the decoded form of a frame's 8-byte header.
type FrameHeader struct {
	// Timestamp is microseconds since the sender's connection start,
	// truncated to 32 bits. Informational; receivers may ignore it.
	Timestamp uint32
	// ProtocolID is the full 16-bit field: low 15 bits name the
	// mini-protocol, the high bit marks a server-origin frame.
	ProtocolID uint16
	// Length is the payload byte count that follows this header.
	Length uint16
}

// IsServer reports whether the high bit of ProtocolID is set.
func (h FrameHeader) IsServer() bool { return h.ProtocolID&0x8000 != 0 }

// LocalID returns ProtocolID with the server-role bit masked off, which is
// the key used to look up a local subscriber.
func (h FrameHeader) LocalID() uint16 { return h.ProtocolID &^ 0x8000 }

// EncodeHeader serializes h as 8 big-endian bytes.
func EncodeHeader(h FrameHeader) ([]byte, error) {
	if h.Length > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Timestamp)
	binary.BigEndian.PutUint16(buf[4:6], h.ProtocolID)
	binary.BigEndian.PutUint16(buf[6:8], h.Length)
	return buf, nil
}

// DecodeHeader parses an 8-byte big-endian frame header.
func DecodeHeader(b []byte) (FrameHeader, error) {
	if len(b) != HeaderSize {
		return FrameHeader{}, fmt.Errorf("cborcodec: short frame header: got %d bytes, want %d", len(b), HeaderSize)
	}
	return FrameHeader{
		Timestamp:  binary.BigEndian.Uint32(b[0:4]),
		ProtocolID: binary.BigEndian.Uint16(b[4:6]),
		Length:     binary.BigEndian.Uint16(b[6:8]),
	}, nil
}
