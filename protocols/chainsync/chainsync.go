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

// Package chainsync implements the ChainSync mini-protocol (C5): intersect
// discovery against a remote chain, then forward/backward header
// streaming.
package chainsync

import (
	"context"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
	"github.com/probeum/go-ouroboros/ouroboros"
)

const (
	msgRequestNext       = 0
	msgAwaitReply        = 1
	msgRollForward       = 2
	msgRollBackward      = 3
	msgFindIntersect     = 4
	msgIntersectFound    = 5
	msgIntersectNotFound = 6
	msgDone              = 7
)

// ProtocolID is ChainSync's low-15-bit protocol identifier.
const ProtocolID = 2

type state int

const (
	stIdle state = iota
	stIntersect
	stCanAwait
	stMustReply
	stDone
)

type queryKind int

const (
	queryNone queryKind = iota
	queryIntersect
	queryReply
)

// Intersect is the outcome of FindIntersect.
type Intersect struct {
	Found bool
	Point ouroboros.Point // zero unless Found
	Tip   ouroboros.Tip
}

// Reply is the outcome of RequestNext: either a forward header or a
// rollback point, always paired with the peer's current tip.
type Reply struct {
	Forward  bool // false means this is a rollback
	Header   ouroboros.BlockHeader
	Rollback ouroboros.Point
	Tip      ouroboros.Tip
}

// ChainSync drives one ChainSync session over a Channel. It is not safe
// for concurrent use: FindIntersect, RequestNext and Done must be called
// sequentially.
type ChainSync struct {
	ch     *muxer.Channel
	driver *driver.Driver

	state state
	query queryKind

	points    []ouroboros.Point
	intersect Intersect
	reply     Reply
}

// New creates a ChainSync client over ch, which the caller must have
// opened with ProtocolID (optionally OR-ed with the role bit by the
// Connection).
func New(ch *muxer.Channel) *ChainSync {
	cs := &ChainSync{ch: ch, state: stIdle}
	cs.driver = driver.New(ch, cs)
	return cs
}

func (cs *ChainSync) Role() muxer.Role { return muxer.RoleClient }

func (cs *ChainSync) Agency() driver.Agency {
	if cs.query == queryNone {
		return driver.AgencyNone
	}
	switch cs.state {
	case stIdle:
		return driver.AgencyClient
	case stIntersect, stCanAwait, stMustReply:
		return driver.AgencyServer
	default:
		return driver.AgencyNone
	}
}

func (cs *ChainSync) State() string {
	switch cs.state {
	case stIdle:
		return "Idle"
	case stIntersect:
		return "Intersect"
	case stCanAwait:
		return "CanAwait"
	case stMustReply:
		return "MustReply"
	default:
		return "Done"
	}
}

func (cs *ChainSync) NextMessage(ctx context.Context) ([]byte, error) {
	switch cs.state {
	case stIdle:
		switch cs.query {
		case queryIntersect:
			cs.state = stIntersect
			return encodeFindIntersect(cs.points)
		case queryReply:
			cs.state = stCanAwait
			return encodeRequestNext()
		}
	}
	return nil, fmt.Errorf("chainsync: no outbound message in state %s", cs.State())
}

func (cs *ChainSync) HandleMessage(ctx context.Context, raw []byte) error {
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return err
	}
	kind, err := it.Integer()
	if err != nil {
		return fmt.Errorf("chainsync: message discriminator: %w", err)
	}

	switch kind {
	case msgAwaitReply:
		if cs.state != stCanAwait {
			return fmt.Errorf("chainsync: AwaitReply in state %s", cs.State())
		}
		if err := it.End(); err != nil {
			return err
		}
		cs.state = stMustReply
		return nil

	case msgRollForward:
		if cs.state != stCanAwait && cs.state != stMustReply {
			return fmt.Errorf("chainsync: RollForward in state %s", cs.State())
		}
		wrappedIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: roll_forward header: %w", err)
		}
		wrapped, err := ouroboros.DecodeWrappedHeader(wrappedIt)
		if err != nil {
			return err
		}
		if err := wrappedIt.End(); err != nil {
			return err
		}
		tipIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: roll_forward tip: %w", err)
		}
		tip, err := ouroboros.DecodeTip(tipIt)
		if err != nil {
			return err
		}
		if err := tipIt.End(); err != nil {
			return err
		}
		if err := it.End(); err != nil {
			return err
		}
		header, err := ouroboros.DecodeBlockHeader(wrapped)
		if err != nil {
			return err
		}
		cs.reply = Reply{Forward: true, Header: header, Tip: tip}
		cs.query = queryNone
		cs.state = stIdle
		return nil

	case msgRollBackward:
		if cs.state != stCanAwait && cs.state != stMustReply {
			return fmt.Errorf("chainsync: RollBackward in state %s", cs.State())
		}
		pointIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: roll_backward point: %w", err)
		}
		point, err := ouroboros.DecodePoint(pointIt)
		if err != nil {
			return err
		}
		if err := pointIt.End(); err != nil {
			return err
		}
		tipIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: roll_backward tip: %w", err)
		}
		tip, err := ouroboros.DecodeTip(tipIt)
		if err != nil {
			return err
		}
		if err := tipIt.End(); err != nil {
			return err
		}
		if err := it.End(); err != nil {
			return err
		}
		// A rollback to the caller's current head is a valid no-op; the
		// caller observes it as an ordinary Reply with Forward=false and
		// may compare Rollback against what it already has.
		cs.reply = Reply{Forward: false, Rollback: point, Tip: tip}
		cs.query = queryNone
		cs.state = stIdle
		return nil

	case msgIntersectFound:
		if cs.state != stIntersect {
			return fmt.Errorf("chainsync: IntersectFound in state %s", cs.State())
		}
		pointIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: intersect_found point: %w", err)
		}
		point, err := ouroboros.DecodePoint(pointIt)
		if err != nil {
			return err
		}
		if err := pointIt.End(); err != nil {
			return err
		}
		tipIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: intersect_found tip: %w", err)
		}
		tip, err := ouroboros.DecodeTip(tipIt)
		if err != nil {
			return err
		}
		if err := tipIt.End(); err != nil {
			return err
		}
		if err := it.End(); err != nil {
			return err
		}
		cs.intersect = Intersect{Found: true, Point: point, Tip: tip}
		cs.query = queryNone
		cs.state = stIdle
		return nil

	case msgIntersectNotFound:
		if cs.state != stIntersect {
			return fmt.Errorf("chainsync: IntersectNotFound in state %s", cs.State())
		}
		tipIt, err := it.Array()
		if err != nil {
			return fmt.Errorf("chainsync: intersect_not_found tip: %w", err)
		}
		tip, err := ouroboros.DecodeTip(tipIt)
		if err != nil {
			return err
		}
		if err := tipIt.End(); err != nil {
			return err
		}
		if err := it.End(); err != nil {
			return err
		}
		cs.intersect = Intersect{Found: false, Tip: tip}
		cs.query = queryNone
		cs.state = stIdle
		return nil

	default:
		return fmt.Errorf("chainsync: unexpected message id %d in state %s", kind, cs.State())
	}
}

func encodeRequestNext() ([]byte, error) {
	return cborcodec.Array(msgRequestNext)
}

func encodeFindIntersect(points []ouroboros.Point) ([]byte, error) {
	encodedPoints := make([]interface{}, len(points))
	for i, p := range points {
		encodedPoints[i] = []interface{}{p.Slot, p.Hash[:]}
	}
	return cborcodec.Array(msgFindIntersect, encodedPoints)
}

// FindIntersect asks the peer to find the first of points (in order) that
// is on its chain.
func (cs *ChainSync) FindIntersect(ctx context.Context, points []ouroboros.Point) (Intersect, error) {
	if cs.state != stIdle {
		return Intersect{}, fmt.Errorf("chainsync: FindIntersect called outside Idle (in %s)", cs.State())
	}
	cs.points = points
	cs.query = queryIntersect
	if err := cs.driver.Run(ctx); err != nil {
		return Intersect{}, err
	}
	return cs.intersect, nil
}

// RequestNext asks the peer for the next chain update, transparently
// waiting through an AwaitReply if the peer needs to.
func (cs *ChainSync) RequestNext(ctx context.Context) (Reply, error) {
	if cs.state != stIdle {
		return Reply{}, fmt.Errorf("chainsync: RequestNext called outside Idle (in %s)", cs.State())
	}
	cs.query = queryReply
	if err := cs.driver.Run(ctx); err != nil {
		return Reply{}, err
	}
	return cs.reply, nil
}

// Done sends the terminal Done message, ending the ChainSync session.
func (cs *ChainSync) Done(ctx context.Context) error {
	if cs.state != stIdle {
		return fmt.Errorf("chainsync: Done called outside Idle (in %s)", cs.State())
	}
	raw, err := cborcodec.Array(msgDone)
	if err != nil {
		return err
	}
	if err := cs.ch.Send(ctx, raw); err != nil {
		return err
	}
	cs.state = stDone
	cs.query = queryNone
	return nil
}
