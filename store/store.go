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

// Package store declares the two capability contracts ChainSync's Follower
// consumes from an external caller (C10); BlockFetch does not use them.
// Neither backend nor
// persistence format is part of this module; callers supply their own
// implementation (SQL, embedded KV, in-memory, ...).
package store

import "github.com/probeum/go-ouroboros/ouroboros"

// SlotHash is one entry of the recent-chain seed list LoadBlocks returns.
type SlotHash struct {
	Slot uint64
	Hash [32]byte
}

// BlockStore persists the headers ChainSync observes and seeds future
// FindIntersect calls.
type BlockStore interface {
	// SaveBlock durably records a batch of BlockHeaders observed for
	// networkMagic.
	// ChainSync calls this from its periodic flush, not once per header.
	SaveBlock(batch []ouroboros.BlockHeader, networkMagic uint32) error

	// LoadBlocks returns the most recent known slot/hash pairs, newest
	// first, used to seed FindIntersect when a caller has no better
	// candidate list of its own.
	LoadBlocks() ([]SlotHash, error)
}

// ChainListener observes chain-tip events as ChainSync advances.
type ChainListener interface {
	// HandleTip fires exactly once for each RollForward ChainSync applies
	// whose (slot, hash) matches the tip reported alongside it.
	HandleTip(header ouroboros.BlockHeader) error
}
