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

// Package testutil holds small in-memory fakes shared by the protocols/*
// test suites: a store.BlockStore and store.ChainListener that just
// record what they were called with, so a test can assert on them
// without standing up anything real.
package testutil

import (
	"sync"

	"github.com/probeum/go-ouroboros/ouroboros"
	"github.com/probeum/go-ouroboros/store"
)

// MemStore is a store.BlockStore that appends every saved batch to an
// in-memory slice.
type MemStore struct {
	mu    sync.Mutex
	Saved []ouroboros.BlockHeader
}

var _ store.BlockStore = (*MemStore)(nil)

func (m *MemStore) SaveBlock(batch []ouroboros.BlockHeader, networkMagic uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, batch...)
	return nil
}

func (m *MemStore) LoadBlocks() ([]store.SlotHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SlotHash, len(m.Saved))
	for i, h := range m.Saved {
		out[len(m.Saved)-1-i] = store.SlotHash{Slot: h.SlotNumber, Hash: h.Hash}
	}
	return out, nil
}

// Len reports how many headers have been saved so far.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}

// MemListener is a store.ChainListener that records every HandleTip call.
type MemListener struct {
	mu    sync.Mutex
	Calls []ouroboros.BlockHeader
}

var _ store.ChainListener = (*MemListener)(nil)

func (m *MemListener) HandleTip(h ouroboros.BlockHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, h)
	return nil
}

// Len reports how many times HandleTip has fired.
func (m *MemListener) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
