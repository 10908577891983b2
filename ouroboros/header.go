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

package ouroboros

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/probeum/go-ouroboros/cborcodec"
)

// WrappedBlockHeader is the opaque CBOR-encoded header exactly as received
// on the wire — [era, bytes] — tagged with an era discriminator that the
// core preserves but never interprets.
type WrappedBlockHeader struct {
	Era   int64
	Bytes []byte
}

// Hash computes blake2b-256 over the wrapped bytes. This is the header
// hash; it is never transmitted, only derived.
func (w WrappedBlockHeader) Hash() [32]byte {
	return blake2b.Sum256(w.Bytes)
}

// Encode renders the [era, bytes] wire shape.
func (w WrappedBlockHeader) Encode() ([]byte, error) {
	return cborcodec.Array(w.Era, w.Bytes)
}

// DecodeWrappedHeader parses a [era, bytes] array, consuming it from it.
func DecodeWrappedHeader(it *cborcodec.Iterator) (WrappedBlockHeader, error) {
	era, err := it.Integer()
	if err != nil {
		return WrappedBlockHeader{}, fmt.Errorf("ouroboros: header era: %w", err)
	}
	b, err := it.Bytes()
	if err != nil {
		return WrappedBlockHeader{}, fmt.Errorf("ouroboros: header bytes: %w", err)
	}
	return WrappedBlockHeader{Era: era, Bytes: b}, nil
}

// BlockHeader is the structural decoding of a WrappedBlockHeader's inner
// bytes: one nested CBOR array of 15 header-body fields, unpacked into 17
// scalar fields, plus the derived Hash and the preserved wrapper metadata.
//
// Decoding does not validate any cryptographic signature carried alongside
// the header body on the wire — the core only computes the header hash.
type BlockHeader struct {
	BlockNumber   int64
	SlotNumber    uint64
	Hash          [32]byte // derived, not transmitted
	PrevHash      []byte
	NodeVKey      []byte
	NodeVRFVKey   []byte
	EtaVRF0       []byte
	EtaVRF1       []byte
	LeaderVRF0    []byte
	LeaderVRF1    []byte
	BlockSize     int64
	BlockBodyHash []byte
	PoolOpCert    []byte
	// Unknown0/1/2 are historically ambiguous fields, structurally
	// preserved but not interpreted. Re-serialization must reproduce
	// them bit-exactly; do not rename or infer semantics for them.
	Unknown0             int64
	Unknown1             int64
	Unknown2             []byte
	ProtocolMajorVersion int64
	ProtocolMinorVersion int64

	era int64  // preserved from the WrappedBlockHeader for round-tripping
	raw []byte // the exact wrapped bytes this header was decoded from
}

// ToWrapped reconstructs the WrappedBlockHeader this BlockHeader was
// decoded from. Because decoding never discards or reorders the original
// bytes, this always reproduces byte-identical output, which is what lets
// Hash stay derived rather than carried: WrappedBlockHeader -> BlockHeader
// -> WrappedBlockHeader round-trips for every valid header.
func (h BlockHeader) ToWrapped() WrappedBlockHeader {
	return WrappedBlockHeader{Era: h.era, Bytes: h.raw}
}

// DecodeBlockHeader parses w's inner bytes into a BlockHeader, computing
// Hash from w.Bytes and keeping w itself so ToWrapped can reproduce it
// exactly.
func DecodeBlockHeader(w WrappedBlockHeader) (BlockHeader, error) {
	outer, err := cborcodec.NewIterator(w.Bytes)
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: header body: %w", err)
	}
	body, err := outer.Array()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: header body array: %w", err)
	}
	// outer[1] carries the body signature; the core does not validate
	// signatures, so it is intentionally left unread here.

	h := BlockHeader{Hash: w.Hash(), era: w.Era, raw: w.Bytes}

	blockNumber, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: block_number: %w", err)
	}
	h.BlockNumber = blockNumber

	slotNumber, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: slot_number: %w", err)
	}
	h.SlotNumber = uint64(slotNumber)

	if h.PrevHash, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: prev_hash: %w", err)
	}
	if h.NodeVKey, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: node_vkey: %w", err)
	}
	if h.NodeVRFVKey, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: node_vrf_vkey: %w", err)
	}

	etaArr, err := body.Array()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: eta_vrf: %w", err)
	}
	if h.EtaVRF0, err = etaArr.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: eta_vrf_0: %w", err)
	}
	if h.EtaVRF1, err = etaArr.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: eta_vrf_1: %w", err)
	}
	if err := etaArr.End(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: eta_vrf: %w", err)
	}

	leaderArr, err := body.Array()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: leader_vrf: %w", err)
	}
	if h.LeaderVRF0, err = leaderArr.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: leader_vrf_0: %w", err)
	}
	if h.LeaderVRF1, err = leaderArr.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: leader_vrf_1: %w", err)
	}
	if err := leaderArr.End(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: leader_vrf: %w", err)
	}

	blockSize, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: block_size: %w", err)
	}
	h.BlockSize = blockSize

	if h.BlockBodyHash, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: block_body_hash: %w", err)
	}
	if h.PoolOpCert, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: pool_opcert: %w", err)
	}

	unknown0, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: unknown_0: %w", err)
	}
	h.Unknown0 = unknown0

	unknown1, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: unknown_1: %w", err)
	}
	h.Unknown1 = unknown1

	if h.Unknown2, err = body.Bytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: unknown_2: %w", err)
	}

	protoMajor, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: protocol_major_version: %w", err)
	}
	h.ProtocolMajorVersion = protoMajor

	protoMinor, err := body.Integer()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: protocol_minor_version: %w", err)
	}
	h.ProtocolMinorVersion = protoMinor

	if err := body.End(); err != nil {
		return BlockHeader{}, fmt.Errorf("ouroboros: header body: %w", err)
	}
	return h, nil
}
