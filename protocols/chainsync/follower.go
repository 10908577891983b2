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

package chainsync

import (
	"context"
	"time"

	"github.com/probeum/go-ouroboros/log"
	"github.com/probeum/go-ouroboros/ouroboros"
	"github.com/probeum/go-ouroboros/store"
)

// flushInterval bounds how long buffered headers may sit before Follower
// writes them to the BlockStore.
const flushInterval = 5 * time.Second

// Follower drives a ChainSync session indefinitely, buffering observed
// headers into a store.BlockStore and notifying a store.ChainListener of
// tip events, per the consumer-interface contract (C10).
type Follower struct {
	cs      *ChainSync
	store   store.BlockStore
	listen  store.ChainListener
	magic   uint32
	pending []ouroboros.BlockHeader
	lastFlush time.Time
}

// NewFollower builds a Follower over an already-constructed ChainSync
// client, writing to bs and notifying listener for network magic magic.
// listener may be nil if the caller doesn't care about tip events.
func NewFollower(cs *ChainSync, bs store.BlockStore, listener store.ChainListener, magic uint32) *Follower {
	return &Follower{cs: cs, store: bs, listen: listener, magic: magic, lastFlush: time.Now()}
}

// Run loops RequestNext until ctx is cancelled or the peer closes the
// connection, buffering RollForward headers and flushing them to the store
// on the 5-second policy or immediately at tip. It does not call
// FindIntersect; the caller does that on the ChainSync before Run.
func (f *Follower) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return f.flush()
		default:
		}
		reply, err := f.cs.RequestNext(ctx)
		if err != nil {
			_ = f.flush()
			return err
		}
		if !reply.Forward {
			// A rollback invalidates any unflushed headers past the new
			// point; the caller's own BlockStore is responsible for
			// reconciling its tail against Rollback if it needs to.
			f.pending = nil
			continue
		}
		f.pending = append(f.pending, reply.Header)

		atTip := reply.Header.SlotNumber == reply.Tip.Slot && reply.Header.Hash == reply.Tip.Hash
		if atTip && f.listen != nil {
			if err := f.listen.HandleTip(reply.Header); err != nil {
				log.Warn("chainsync: listener HandleTip failed", "err", err)
			}
		}

		if atTip || time.Since(f.lastFlush) >= flushInterval {
			if err := f.flush(); err != nil {
				return err
			}
		}
	}
}

func (f *Follower) flush() error {
	if len(f.pending) == 0 {
		f.lastFlush = time.Now()
		return nil
	}
	if f.store != nil {
		if err := f.store.SaveBlock(f.pending, f.magic); err != nil {
			return err
		}
	}
	f.pending = nil
	f.lastFlush = time.Now()
	return nil
}
