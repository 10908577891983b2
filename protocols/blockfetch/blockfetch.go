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

// Package blockfetch implements the BlockFetch mini-protocol (C6): ranged
// full-block retrieval with server-streamed batches.
package blockfetch

import (
	"context"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
	"github.com/probeum/go-ouroboros/ouroboros"
)

const (
	msgRequestRange = 0
	msgClientDone   = 1
	msgStartBatch   = 2
	msgNoBlocks     = 3
	msgBlock        = 4
	msgBatchDone    = 5
)

// ProtocolID is BlockFetch's low-15-bit protocol identifier.
const ProtocolID = 3

type state int

const (
	stIdle state = iota
	stBusy
	stStreaming
	stDone
)

type phase int

const (
	phaseNone phase = iota
	phaseRequesting
	phaseStreaming
	phaseClosing
)

// BlockFetch drives one BlockFetch session over a Channel: RequestRange
// followed by a streamed batch of Block payloads, or ClientDone to close
// the session for good. Not safe for concurrent use.
type BlockFetch struct {
	ch     *muxer.Channel
	driver *driver.Driver

	state state
	phase phase

	first, last ouroboros.Point
	pending     [][]byte // buffered Block payloads not yet drained by Next
	ended       bool     // true once BatchDone/NoBlocks has closed the batch
}

// New creates a BlockFetch client over ch.
func New(ch *muxer.Channel) *BlockFetch {
	bf := &BlockFetch{ch: ch, state: stIdle}
	bf.driver = driver.New(ch, bf)
	return bf
}

func (bf *BlockFetch) Role() muxer.Role { return muxer.RoleClient }

func (bf *BlockFetch) Agency() driver.Agency {
	if bf.phase == phaseNone {
		return driver.AgencyNone
	}
	switch bf.state {
	case stIdle:
		return driver.AgencyClient
	case stBusy, stStreaming:
		return driver.AgencyServer
	default:
		return driver.AgencyNone
	}
}

func (bf *BlockFetch) State() string {
	switch bf.state {
	case stIdle:
		return "Idle"
	case stBusy:
		return "Busy"
	case stStreaming:
		return "Streaming"
	default:
		return "Done"
	}
}

func (bf *BlockFetch) NextMessage(ctx context.Context) ([]byte, error) {
	switch bf.phase {
	case phaseRequesting:
		bf.state = stBusy
		return cborcodec.Array(msgRequestRange,
			[]interface{}{bf.first.Slot, bf.first.Hash[:]},
			[]interface{}{bf.last.Slot, bf.last.Hash[:]},
		)
	case phaseClosing:
		bf.state = stDone
		return cborcodec.Array(msgClientDone)
	default:
		return nil, fmt.Errorf("blockfetch: no outbound message in state %s", bf.State())
	}
}

func (bf *BlockFetch) HandleMessage(ctx context.Context, raw []byte) error {
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return err
	}
	kind, err := it.Integer()
	if err != nil {
		return fmt.Errorf("blockfetch: message discriminator: %w", err)
	}

	switch kind {
	case msgNoBlocks:
		if bf.state != stBusy {
			return fmt.Errorf("blockfetch: NoBlocks in state %s", bf.State())
		}
		if err := it.End(); err != nil {
			return err
		}
		bf.state = stIdle
		bf.ended = true
		bf.phase = phaseNone
		return nil

	case msgStartBatch:
		if bf.state != stBusy {
			return fmt.Errorf("blockfetch: StartBatch in state %s", bf.State())
		}
		if err := it.End(); err != nil {
			return err
		}
		bf.state = stStreaming
		bf.phase = phaseNone // one driver.Run per frame; Next() re-arms it
		return nil

	case msgBlock:
		if bf.state != stStreaming {
			return fmt.Errorf("blockfetch: Block in state %s", bf.State())
		}
		payload, err := it.Bytes()
		if err != nil {
			return fmt.Errorf("blockfetch: block payload: %w", err)
		}
		if err := it.End(); err != nil {
			return err
		}
		bf.pending = append(bf.pending, payload)
		bf.phase = phaseNone
		return nil

	case msgBatchDone:
		if bf.state != stStreaming {
			return fmt.Errorf("blockfetch: BatchDone in state %s", bf.State())
		}
		if err := it.End(); err != nil {
			return err
		}
		bf.state = stIdle
		bf.ended = true
		bf.phase = phaseNone
		return nil

	default:
		return fmt.Errorf("blockfetch: unexpected message id %d in state %s", kind, bf.State())
	}
}

// RequestRange starts a new range fetch. It is a caller error to call
// this before a previous range has reached Idle (NoBlocks or BatchDone).
func (bf *BlockFetch) RequestRange(ctx context.Context, first, last ouroboros.Point) error {
	if bf.state != stIdle {
		return fmt.Errorf("blockfetch: RequestRange called outside Idle (in %s)", bf.State())
	}
	bf.first, bf.last = first, last
	bf.ended = false
	bf.pending = nil
	bf.phase = phaseRequesting
	return bf.driver.Run(ctx)
}

// Next returns the next Block payload, or (nil, false) once the batch has
// ended (either immediately, via NoBlocks, or after the last Block via
// BatchDone).
func (bf *BlockFetch) Next(ctx context.Context) ([]byte, bool, error) {
	for len(bf.pending) == 0 && !bf.ended {
		// Agency sits with the server throughout Streaming regardless of
		// phase's value; phaseStreaming only needs to be non-zero so the
		// driver keeps looping instead of treating this as AgencyNone.
		bf.phase = phaseStreaming
		if err := bf.driver.Run(ctx); err != nil {
			return nil, false, err
		}
	}
	if len(bf.pending) == 0 {
		return nil, false, nil
	}
	v := bf.pending[0]
	bf.pending = bf.pending[1:]
	return v, true, nil
}

// Done sends ClientDone, permanently ending the BlockFetch session.
func (bf *BlockFetch) Done(ctx context.Context) error {
	if bf.state != stIdle {
		return fmt.Errorf("blockfetch: Done called outside Idle (in %s)", bf.State())
	}
	bf.phase = phaseClosing
	return bf.driver.Run(ctx)
}
