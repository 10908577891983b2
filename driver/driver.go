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

// Package driver implements the generic mini-protocol engine (C3): it
// translates between a StateMachine's typed messages and a muxer.Channel's
// framed CBOR bytes, enforcing agency so exactly one side ever speaks at a
// time.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/muxer"
)

// Agency identifies which side may send the next message in a
// mini-protocol's current state.
type Agency int

const (
	// AgencyNone marks a terminal state: neither side may send again.
	AgencyNone Agency = iota
	AgencyClient
	AgencyServer
)

// StateMachine is one mini-protocol's pure logic: given its current
// state, it knows who may speak, what to send if it is asked to, and how
// to fold an incoming message into its next state.
//
// Implementations are not expected to be safe for concurrent use; a
// Driver only ever calls into one from a single goroutine.
type StateMachine interface {
	// Role reports whether this instance plays the mini-protocol's client
	// or server side.
	Role() muxer.Role

	// Agency reports which side may send next in the current state.
	Agency() Agency

	// State names the current state, for logging and error messages.
	State() string

	// NextMessage is called when Agency() equals Role(): it must return
	// the CBOR-encoded bytes of the message to send and advance the
	// machine's internal state accordingly.
	NextMessage(ctx context.Context) ([]byte, error)

	// HandleMessage is called with one fully reassembled incoming
	// message's raw CBOR bytes when Agency() does not equal Role(). It
	// must decode the message, apply it, and advance state accordingly.
	HandleMessage(ctx context.Context, raw []byte) error
}

// Driver runs a StateMachine to completion over a muxer.Channel: it loops
// agency, sending when it is this side's turn and otherwise reassembling
// the next complete message out of however many frames it takes, until
// the machine reaches AgencyNone.
type Driver struct {
	ch *muxer.Channel
	sm StateMachine

	carry []byte // bytes read but not yet consumed by a complete message
}

// New builds a Driver for sm over ch.
func New(ch *muxer.Channel, sm StateMachine) *Driver {
	return &Driver{ch: ch, sm: sm}
}

// Run drives sm to completion, returning nil once it reaches AgencyNone,
// ctx's error if ctx is cancelled first, or the first transport/protocol
// error encountered.
func (d *Driver) Run(ctx context.Context) error {
	for {
		agency := d.sm.Agency()
		if agency == AgencyNone {
			return nil
		}
		if agency == agencyFor(d.sm.Role()) {
			msg, err := d.sm.NextMessage(ctx)
			if err != nil {
				return fmt.Errorf("driver: %s: next message: %w", d.sm.State(), err)
			}
			if err := d.ch.Send(ctx, msg); err != nil {
				return fmt.Errorf("driver: %s: send: %w", d.sm.State(), err)
			}
			continue
		}

		raw, err := d.nextMessage(ctx)
		if err != nil {
			return fmt.Errorf("driver: %s: receive: %w", d.sm.State(), err)
		}
		if err := d.sm.HandleMessage(ctx, raw); err != nil {
			return fmt.Errorf("driver: %s: handle message: %w", d.sm.State(), err)
		}
	}
}

// nextMessage returns the bytes of the next complete CBOR value in the
// stream, reading additional frames from the channel as needed and
// retaining any bytes read past the value's end for the following call.
// A zero-length frame arriving with nothing carried over is returned as an
// empty message of its own (PingPong's Ping and Pong).
func (d *Driver) nextMessage(ctx context.Context) ([]byte, error) {
	for {
		if len(d.carry) > 0 {
			n, value, err := cborcodec.SplitFirstValue(d.carry)
			switch {
			case err == nil:
				d.carry = d.carry[n:]
				return value, nil
			case errors.Is(err, cborcodec.ErrIncomplete):
				// fall through to read another frame
			default:
				return nil, err
			}
		}
		frame, err := d.ch.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if len(frame) == 0 && len(d.carry) == 0 {
			return frame, nil
		}
		d.carry = append(d.carry, frame...)
	}
}

func agencyFor(r muxer.Role) Agency {
	if r == muxer.RoleServer {
		return AgencyServer
	}
	return AgencyClient
}
