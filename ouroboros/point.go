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

// Package ouroboros holds the protocol-agnostic data model shared by the
// mini-protocols: Point, Tip, BlockHeader and their CBOR conversions (C8).
package ouroboros

import (
	"encoding/hex"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
)

// Point identifies a position on the chain: a slot and the 32-byte blake2b
// header hash at that slot.
type Point struct {
	Slot uint64
	Hash [32]byte
}

// String renders a Point for logging.
func (p Point) String() string {
	return fmt.Sprintf("Point{slot=%d, hash=%s}", p.Slot, hex.EncodeToString(p.Hash[:]))
}

// Encode renders Point as its wire shape: [slot, hash].
func (p Point) Encode() ([]byte, error) {
	return cborcodec.Array(p.Slot, p.Hash[:])
}

// DecodePoint parses a [slot, hash] array, consuming it from it.
func DecodePoint(it *cborcodec.Iterator) (Point, error) {
	slot, err := it.Integer()
	if err != nil {
		return Point{}, fmt.Errorf("ouroboros: point slot: %w", err)
	}
	hashBytes, err := it.Bytes()
	if err != nil {
		return Point{}, fmt.Errorf("ouroboros: point hash: %w", err)
	}
	var p Point
	p.Slot = uint64(slot)
	if len(hashBytes) != 32 {
		return Point{}, fmt.Errorf("ouroboros: point hash must be 32 bytes, got %d", len(hashBytes))
	}
	copy(p.Hash[:], hashBytes)
	return p, nil
}

// DecodePointFromArray decodes a standalone [slot, hash] CBOR array.
func DecodePointFromArray(raw []byte) (Point, error) {
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return Point{}, err
	}
	p, err := DecodePoint(it)
	if err != nil {
		return Point{}, err
	}
	return p, it.End()
}
