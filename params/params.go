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

// Package params holds plain data: network magics, protocol identifiers,
// version tables and seed points. Nothing here is stateful and nothing
// here is consulted implicitly by the rest of the module — callers import
// what they need and pass it explicitly into Handshake/ChainSync calls.
package params

// Network magic values observed in test data. The core treats the magic
// as an opaque 32-bit identifier; these constants are a convenience for
// callers, not a hard-coded protocol element.
const (
	MagicMainnet         uint32 = 764824073
	MagicHistoricTestnet uint32 = 1097911063
	MagicHistoricGuild   uint32 = 141
)

// Mini-protocol identifiers (low 15 bits of the frame's protocol id field).
const (
	ProtocolHandshake    uint16 = 0
	ProtocolChainSync    uint16 = 2
	ProtocolBlockFetch   uint16 = 3
	ProtocolTxSubmission uint16 = 4
	// ProtocolPingPongDefault is the conventional id used for the PingPong
	// test protocol; a caller may configure a different one.
	ProtocolPingPongDefault uint16 = 8
)

// ServerRoleBit is OR-ed into a protocol id to mark a server-origin frame.
const ServerRoleBit uint16 = 0x8000

// MaxFramePayload is the largest payload a single frame may carry.
const MaxFramePayload = 65535

// NodeToNodeVersions lists the handshake versions this module knows how to
// speak on a node-to-node connection, newest first.
var NodeToNodeVersions = []uint16{11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

// NodeToClientVersions lists the handshake versions for a node-to-client
// connection, before the 0x8000 high-bit tagging applied on the wire.
var NodeToClientVersions = []uint16{16, 15, 14, 13, 12, 11, 10}

// ClientToNodeVersionBit is OR-ed into a node-to-client version number on
// the wire to distinguish it from the node-to-node numbering space.
const ClientToNodeVersionBit uint16 = 0x8000

// SeedPoint is a (slot, hash-hex) pair usable to seed FindIntersect when a
// caller's BlockStore has nothing newer. These are a caller-supplied
// default, not a hard-coded protocol element.
type SeedPoint struct {
	Slot uint64
	Hash string // hex-encoded 32-byte header hash
}

// LastByronEraSeedPoints maps a network magic to its well-known
// last-Byron-era point, for chains that still carry that boundary.
var LastByronEraSeedPoints = map[uint32]SeedPoint{
	MagicMainnet: {
		Slot: 4492799,
		Hash: "f8084c61b6a238acec985b59310b6ecec49c0ab8efb753ffc89fe2af8d0b6a3",
	},
	MagicHistoricTestnet: {
		Slot: 1598399,
		Hash: "7e16781695bf379686e1c8e3e7a2922fdd6f7f23e793d1a3be7c1dd76ec1df7",
	},
	MagicHistoricGuild: {
		Slot: 0,
		Hash: "b00cb5c73b5dc5edac3bbdd1c437f32f86f9e4d1af5f5b5f8d0bfe1d84f4f0d",
	},
}
