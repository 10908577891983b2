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

// Package handshake implements the Handshake mini-protocol (C4): version
// and network-magic negotiation, run once at the start of every
// connection before any other mini-protocol may proceed.
package handshake

import (
	"context"
	"fmt"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

// Family distinguishes the two version numberings Handshake negotiates
// over. A node-to-node peer and a node-to-client peer never interoperate,
// so a single Handshake instance only ever proposes one family.
type Family int

const (
	NodeToNode Family = iota
	NodeToClient
)

// clientToNodeBit is OR-ed into a node-to-client version's wire number.
const clientToNodeBit = uint16(0x8000)

// Version is one offered or negotiated (family, number) pair, independent
// of the network magic it was offered alongside.
type Version struct {
	Family Family
	Number uint16
}

func (v Version) wireNumber() uint16 {
	if v.Family == NodeToClient {
		return v.Number | clientToNodeBit
	}
	return v.Number
}

func versionFromWire(n uint16) Version {
	if n&clientToNodeBit != 0 {
		return Version{Family: NodeToClient, Number: n &^ clientToNodeBit}
	}
	return Version{Family: NodeToNode, Number: n}
}

func (v Version) String() string {
	switch v.Family {
	case NodeToClient:
		return fmt.Sprintf("N2C(%d)", v.Number)
	default:
		return fmt.Sprintf("N2N(%d)", v.Number)
	}
}

// Negotiated is the outcome of a successful Handshake: the agreed version
// and the magic both sides confirmed.
type Negotiated struct {
	Version Version
	Magic   uint32
}

const (
	msgProposeVersions = 0
	msgAcceptVersion   = 1
	msgRefuse          = 2
)

// encodeParams renders one version's parameter block. Node-to-node
// version 4 and later carries [magic, bool]; node-to-node before 4 and
// every node-to-client version carries a bare magic integer. The bool is
// the initiator-and-responder diffusion-mode flag; both Client and Server
// always send it as false, and the value a peer sends is not checked.
func encodeParams(v Version, magic uint32) interface{} {
	if v.Family == NodeToNode && v.Number >= 4 {
		return []interface{}{magic, false}
	}
	return magic
}

func decodeParams(v Version, raw interface{}) (uint32, error) {
	if v.Family == NodeToNode && v.Number >= 4 {
		arr, ok := raw.([]interface{})
		if !ok || len(arr) != 2 {
			return 0, fmt.Errorf("handshake: malformed parameter block for %s", v)
		}
		magic, err := asUint32(arr[0])
		if err != nil {
			return 0, fmt.Errorf("handshake: %s magic: %w", v, err)
		}
		return magic, nil
	}
	magic, err := asUint32(raw)
	if err != nil {
		return 0, fmt.Errorf("handshake: %s magic: %w", v, err)
	}
	return magic, nil
}

func asUint32(raw interface{}) (uint32, error) {
	switch n := raw.(type) {
	case uint64:
		return uint32(n), nil
	case int64:
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

// encodeProposeVersions builds the ProposeVersions wire message for a set
// of (version, magic) offers.
func encodeProposeVersions(offers map[Version]uint32) ([]byte, error) {
	m := make(map[interface{}]interface{}, len(offers))
	for v, magic := range offers {
		m[v.wireNumber()] = encodeParams(v, magic)
	}
	return cborcodec.Array(msgProposeVersions, m)
}

// encodeAcceptVersion builds the AcceptVersion wire message.
func encodeAcceptVersion(v Version, magic uint32) ([]byte, error) {
	return cborcodec.Array(msgAcceptVersion, v.wireNumber(), encodeParams(v, magic))
}

// encodeRefuse builds a Refuse message. The detailed shape of the refusal
// reason is not interpreted by either side of this implementation; it is
// carried as free-form text for diagnostics.
func encodeRefuse(reason string) ([]byte, error) {
	return cborcodec.Array(msgRefuse, reason)
}

type decodedMessage struct {
	kind    int64
	propose map[Version]uint32
	version Version
	magic   uint32
	reason  string
}

func decodeMessage(raw []byte) (decodedMessage, error) {
	it, err := cborcodec.NewIterator(raw)
	if err != nil {
		return decodedMessage{}, err
	}
	kind, err := it.Integer()
	if err != nil {
		return decodedMessage{}, fmt.Errorf("handshake: message discriminator: %w", err)
	}
	switch kind {
	case msgProposeVersions:
		raw, err := it.Map()
		if err != nil {
			return decodedMessage{}, fmt.Errorf("handshake: propose_versions body: %w", err)
		}
		if err := it.End(); err != nil {
			return decodedMessage{}, err
		}
		offers := make(map[Version]uint32, len(raw))
		for k, v := range raw {
			wireNum, err := asUint32(k)
			if err != nil {
				return decodedMessage{}, fmt.Errorf("handshake: version key: %w", err)
			}
			ver := versionFromWire(uint16(wireNum))
			magic, err := decodeParams(ver, v)
			if err != nil {
				return decodedMessage{}, err
			}
			offers[ver] = magic
		}
		return decodedMessage{kind: kind, propose: offers}, nil

	case msgAcceptVersion:
		wireNum, err := it.Integer()
		if err != nil {
			return decodedMessage{}, fmt.Errorf("handshake: accept_version number: %w", err)
		}
		ver := versionFromWire(uint16(wireNum))
		var magic uint32
		if ver.Family == NodeToNode && ver.Number >= 4 {
			var paramsIt *cborcodec.Iterator
			if paramsIt, err = it.Array(); err == nil {
				magic, err = decodeParamsFromIterator(ver, paramsIt)
			}
		} else {
			// bare-integer parameter shape, as encodeParams writes it.
			magic, err = decodeBareParam(it, ver)
		}
		if err != nil {
			return decodedMessage{}, err
		}
		if err := it.End(); err != nil {
			return decodedMessage{}, err
		}
		return decodedMessage{kind: kind, version: ver, magic: magic}, nil

	case msgRefuse:
		reason, err := it.Text()
		if err != nil {
			return decodedMessage{}, fmt.Errorf("handshake: refuse reason: %w", err)
		}
		return decodedMessage{kind: kind, reason: reason}, nil

	default:
		return decodedMessage{}, fmt.Errorf("handshake: unknown message id %d", kind)
	}
}

func decodeParamsFromIterator(v Version, arr *cborcodec.Iterator) (uint32, error) {
	magic, err := arr.Integer()
	if err != nil {
		return 0, fmt.Errorf("handshake: %s magic: %w", v, err)
	}
	if _, err := arr.Bool(); err != nil {
		return 0, fmt.Errorf("handshake: %s diffusion flag: %w", v, err)
	}
	if err := arr.End(); err != nil {
		return 0, err
	}
	return uint32(magic), nil
}

func decodeBareParam(it *cborcodec.Iterator, v Version) (uint32, error) {
	magic, err := it.Integer()
	if err != nil {
		return 0, fmt.Errorf("handshake: %s magic: %w", v, err)
	}
	return uint32(magic), nil
}

// ErrRefused is returned when the peer refuses the handshake.
type ErrRefused struct{ Reason string }

func (e *ErrRefused) Error() string { return fmt.Sprintf("handshake: refused: %s", e.Reason) }

// ErrMagicMismatch is returned when the peer's confirmed magic does not
// match what was offered.
type ErrMagicMismatch struct{ Offered, Got uint32 }

func (e *ErrMagicMismatch) Error() string {
	return fmt.Sprintf("handshake: magic mismatch: offered %d, peer confirmed %d", e.Offered, e.Got)
}

// ErrVersionNotOffered is returned when the peer accepts a version the
// client never proposed.
type ErrVersionNotOffered struct{ Version Version }

func (e *ErrVersionNotOffered) Error() string {
	return fmt.Sprintf("handshake: peer accepted unoffered version %s", e.Version)
}

type state int

const (
	stPropose state = iota
	stConfirm
	stDone
)

// Client runs the client side of Handshake: propose every version in
// Offers at Magic, then validate whatever the server accepts.
type Client struct {
	Offers []Version
	Magic  uint32

	state  state
	Result Negotiated
}

var _ driver.StateMachine = (*Client)(nil)

func (c *Client) Role() muxer.Role { return muxer.RoleClient }

func (c *Client) Agency() driver.Agency {
	switch c.state {
	case stPropose:
		return driver.AgencyClient
	case stConfirm:
		return driver.AgencyServer
	default:
		return driver.AgencyNone
	}
}

func (c *Client) State() string {
	switch c.state {
	case stPropose:
		return "Propose"
	case stConfirm:
		return "Confirm"
	default:
		return "Done"
	}
}

func (c *Client) NextMessage(ctx context.Context) ([]byte, error) {
	offers := make(map[Version]uint32, len(c.Offers))
	for _, v := range c.Offers {
		offers[v] = c.Magic
	}
	c.state = stConfirm
	return encodeProposeVersions(offers)
}

func (c *Client) HandleMessage(ctx context.Context, raw []byte) error {
	msg, err := decodeMessage(raw)
	if err != nil {
		c.state = stDone
		return err
	}
	c.state = stDone
	switch msg.kind {
	case msgAcceptVersion:
		if !contains(c.Offers, msg.version) {
			return &ErrVersionNotOffered{Version: msg.version}
		}
		if msg.magic != c.Magic {
			return &ErrMagicMismatch{Offered: c.Magic, Got: msg.magic}
		}
		c.Result = Negotiated{Version: msg.version, Magic: msg.magic}
		return nil
	case msgRefuse:
		return &ErrRefused{Reason: msg.reason}
	default:
		return fmt.Errorf("handshake: unexpected message id %d in Confirm", msg.kind)
	}
}

func contains(offers []Version, v Version) bool {
	for _, o := range offers {
		if o == v {
			return true
		}
	}
	return false
}

// Server runs the server side of Handshake: wait for a ProposeVersions,
// pick the highest common version whose offered magic matches Magic, and
// confirm or refuse.
type Server struct {
	Supported []Version
	Magic     uint32

	state   state
	decided Negotiated
	refusal string
	Result  Negotiated
}

var _ driver.StateMachine = (*Server)(nil)

func (s *Server) Role() muxer.Role { return muxer.RoleServer }

func (s *Server) Agency() driver.Agency {
	switch s.state {
	case stPropose:
		return driver.AgencyClient
	case stConfirm:
		return driver.AgencyServer
	default:
		return driver.AgencyNone
	}
}

func (s *Server) State() string {
	switch s.state {
	case stPropose:
		return "Propose"
	case stConfirm:
		return "Confirm"
	default:
		return "Done"
	}
}

func (s *Server) HandleMessage(ctx context.Context, raw []byte) error {
	msg, err := decodeMessage(raw)
	if err != nil {
		return err
	}
	if msg.kind != msgProposeVersions {
		return fmt.Errorf("handshake: unexpected message id %d in Propose", msg.kind)
	}

	var best *Version
	for _, v := range s.Supported {
		magic, offered := msg.propose[v]
		if !offered || magic != s.Magic {
			continue
		}
		if best == nil || higherThan(v, *best) {
			cp := v
			best = &cp
		}
	}
	if best == nil {
		s.refusal = "no common version with matching magic"
	} else {
		s.decided = Negotiated{Version: *best, Magic: s.Magic}
	}
	s.state = stConfirm
	return nil
}

func higherThan(a, b Version) bool {
	if a.Family != b.Family {
		return false
	}
	return a.Number > b.Number
}

func (s *Server) NextMessage(ctx context.Context) ([]byte, error) {
	s.state = stDone
	if s.refusal != "" {
		return encodeRefuse(s.refusal)
	}
	s.Result = s.decided
	return encodeAcceptVersion(s.decided.Version, s.decided.Magic)
}
