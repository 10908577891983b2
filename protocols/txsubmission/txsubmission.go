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

// Package txsubmission implements the TxSubmission mini-protocol (C7):
// server-pulled transaction-id announcements. This client's policy is
// intentionally trivial: it always tells the server it has nothing to
// send.
package txsubmission

import (
	"context"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

const (
	msgRequestTxIds = 0
	msgReplyTxIds   = 1
)

// ProtocolID is TxSubmission's low-15-bit protocol identifier.
const ProtocolID = 4

// replyTxIdsEmpty is the hand-crafted 4-byte ReplyTxIds([]) frame: a
// definite-length-2 array [1, <indefinite empty array>]. Canonical CBOR
// encoding cannot express an indefinite-length array by value through
// the regular codec, so this one message bypasses it entirely.
var replyTxIdsEmpty = []byte{0x82, 0x01, 0x9f, 0xff}

type state int

const (
	stWaiting state = iota
	stReplying
	stIdleForever
)

// TxSubmission drives the client side of one TxSubmission session: it
// waits for the server's RequestTxIds, and either answers with an empty
// ReplyTxIds (non-blocking round) or yields agency for good (a blocking
// round, per this client's policy of never producing transactions).
type TxSubmission struct {
	state state

	LastBlocking bool
	LastAck      int64
	LastReq      int64
}

var _ driver.StateMachine = (*TxSubmission)(nil)

// New creates a TxSubmission client, to be driven over a Channel with Run
// (or driver.New(ch, t).Run): one Run call answers every non-blocking
// RequestTxIds round and returns once a blocking round parks it for good.
func New() *TxSubmission { return &TxSubmission{state: stWaiting} }

func (t *TxSubmission) Role() muxer.Role { return muxer.RoleClient }

func (t *TxSubmission) Agency() driver.Agency {
	switch t.state {
	case stWaiting:
		return driver.AgencyServer
	case stReplying:
		return driver.AgencyClient
	default:
		return driver.AgencyNone
	}
}

func (t *TxSubmission) State() string {
	switch t.state {
	case stWaiting:
		return "Waiting"
	case stReplying:
		return "Replying"
	default:
		return "IdleForever"
	}
}

func (t *TxSubmission) NextMessage(ctx context.Context) ([]byte, error) {
	if t.state != stReplying {
		return nil, fmt.Errorf("txsubmission: no outbound message in state %s", t.State())
	}
	t.state = stWaiting
	return replyTxIdsEmpty, nil
}

func (t *TxSubmission) HandleMessage(ctx context.Context, raw []byte) error {
	if t.state != stWaiting {
		return fmt.Errorf("txsubmission: unexpected inbound message in state %s", t.State())
	}
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return err
	}
	kind, err := it.Integer()
	if err != nil {
		return fmt.Errorf("txsubmission: message discriminator: %w", err)
	}
	if kind != msgRequestTxIds {
		return fmt.Errorf("txsubmission: unexpected message id %d", kind)
	}
	blocking, err := it.Bool()
	if err != nil {
		return fmt.Errorf("txsubmission: blocking flag: %w", err)
	}
	ack, err := it.Integer()
	if err != nil {
		return fmt.Errorf("txsubmission: ack count: %w", err)
	}
	req, err := it.Integer()
	if err != nil {
		return fmt.Errorf("txsubmission: req count: %w", err)
	}
	if err := it.End(); err != nil {
		return err
	}

	t.LastBlocking, t.LastAck, t.LastReq = blocking, ack, req
	if blocking {
		// The server will wait forever for a reply it will never get;
		// this client's policy never produces transactions, so there is
		// nothing to gain by replying.
		t.state = stIdleForever
		return nil
	}
	t.state = stReplying
	return nil
}

// Run drives t to completion over ch: the generic driver loop answers
// every non-blocking RequestTxIds round (Agency keeps cycling
// Server->Client->Server) until the server issues a blocking round, at
// which point t settles into IdleForever, Agency reports AgencyNone, and
// Run returns nil.
func Run(ctx context.Context, ch *muxer.Channel, t *TxSubmission) error {
	return driver.New(ch, t).Run(ctx)
}
