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

// Package pingpong implements the trivial symmetric PingPong mini-protocol
// (C9), used mainly for transport-level testing. Both sides run the same
// PingPong type; which one initiates is decided entirely by Role.
package pingpong

import (
	"context"
	"fmt"

	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

type state int

const (
	stIdle state = iota
	stBusy
	stDone
)

// PingPong is one side of a PingPong session: a client side that
// initiates each round and a server side that answers it. Every message
// is a zero-length frame; state alone (not any CBOR discriminator)
// decides whether a frame means Ping or Pong.
type PingPong struct {
	role muxer.Role

	state  state
	active bool // true for the duration of exactly one Ping/Pong round
}

var _ driver.StateMachine = (*PingPong)(nil)

// NewClient builds the initiating side of PingPong.
func NewClient() *PingPong { return &PingPong{role: muxer.RoleClient} }

// NewServer builds the answering side of PingPong.
func NewServer() *PingPong { return &PingPong{role: muxer.RoleServer} }

func (p *PingPong) Role() muxer.Role { return p.role }

func (p *PingPong) Agency() driver.Agency {
	if !p.active {
		return driver.AgencyNone
	}
	switch p.state {
	case stIdle:
		return driver.AgencyClient
	case stBusy:
		return driver.AgencyServer
	default:
		return driver.AgencyNone
	}
}

func (p *PingPong) State() string {
	switch p.state {
	case stIdle:
		return "Idle"
	case stBusy:
		return "Busy"
	default:
		return "Done"
	}
}

func (p *PingPong) NextMessage(ctx context.Context) ([]byte, error) {
	switch p.state {
	case stIdle:
		p.state = stBusy
		return nil, nil // Ping
	case stBusy:
		p.state = stIdle
		p.active = false
		return nil, nil // Pong
	default:
		return nil, fmt.Errorf("pingpong: no outbound message in state %s", p.State())
	}
}

func (p *PingPong) HandleMessage(ctx context.Context, raw []byte) error {
	if len(raw) != 0 {
		return fmt.Errorf("pingpong: unexpected non-empty payload (%d bytes)", len(raw))
	}
	switch p.state {
	case stIdle:
		p.state = stBusy
		return nil // received Ping
	case stBusy:
		p.state = stIdle
		p.active = false
		return nil // received Pong
	default:
		return fmt.Errorf("pingpong: unexpected message in state %s", p.State())
	}
}

// Exchange runs exactly one Ping/Pong round: the client side sends Ping
// and waits for Pong; the server side waits for Ping and sends Pong.
// Calling it repeatedly runs N exchanges, per the mini-protocol's design.
func (p *PingPong) Exchange(ctx context.Context, ch *muxer.Channel) error {
	if p.state == stDone {
		return fmt.Errorf("pingpong: Exchange called after Done")
	}
	p.active = true
	return driver.New(ch, p).Run(ctx)
}

// Done marks the session over. No wire message is sent: PingPong's
// frames carry no CBOR body and state alone distinguishes Ping from Pong,
// so there is no room left in the wire format for a third message type —
// the caller ending the session is signaled by closing the Channel.
func (p *PingPong) Done() {
	p.state = stDone
}
