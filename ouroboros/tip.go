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

	"github.com/probeum/go-ouroboros/cborcodec"
)

// Tip is the peer's best-known head: a block number plus the Point it sits
// at.
type Tip struct {
	BlockNumber int64
	Slot        uint64
	Hash        [32]byte
}

// Point projects a Tip down to the Point it sits at, preserving slot and
// hash identically.
func (t Tip) Point() Point {
	return Point{Slot: t.Slot, Hash: t.Hash}
}

// Encode renders Tip as its wire shape: [[slot, hash], block_number].
func (t Tip) Encode() ([]byte, error) {
	return cborcodec.Array([]interface{}{t.Slot, t.Hash[:]}, t.BlockNumber)
}

// DecodeTip parses a [[slot, hash], block_number] array, consuming it from
// it.
func DecodeTip(it *cborcodec.Iterator) (Tip, error) {
	pointIt, err := it.Array()
	if err != nil {
		return Tip{}, fmt.Errorf("ouroboros: tip point: %w", err)
	}
	point, err := DecodePoint(pointIt)
	if err != nil {
		return Tip{}, fmt.Errorf("ouroboros: tip point: %w", err)
	}
	if err := pointIt.End(); err != nil {
		return Tip{}, fmt.Errorf("ouroboros: tip point: %w", err)
	}
	blockNumber, err := it.Integer()
	if err != nil {
		return Tip{}, fmt.Errorf("ouroboros: tip block number: %w", err)
	}
	return Tip{BlockNumber: blockNumber, Slot: point.Slot, Hash: point.Hash}, nil
}

// DecodeTipFromArray decodes a standalone [[slot, hash], block_number] CBOR
// array.
func DecodeTipFromArray(raw []byte) (Tip, error) {
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return Tip{}, err
	}
	t, err := DecodeTip(it)
	if err != nil {
		return Tip{}, err
	}
	return t, it.End()
}
