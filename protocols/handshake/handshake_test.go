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

package handshake

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

func runPair(t *testing.T, client driver.StateMachine, server driver.StateMachine) (clientErr, serverErr error) {
	t.Helper()
	a, b := net.Pipe()
	clientConn := muxer.New(a, muxer.RoleClient)
	serverConn := muxer.New(b, muxer.RoleServer)
	defer clientConn.Close()
	defer serverConn.Close()

	clientCh := clientConn.Open(0)
	serverCh := serverConn.Open(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- driver.New(clientCh, client).Run(ctx) }()
	go func() { errs <- driver.New(serverCh, server).Run(ctx) }()
	first := <-errs
	second := <-errs
	return first, second
}

func TestHandshakeNodeToNodeV7OK(t *testing.T) {
	magic := uint32(0xDDDDDDDD)
	client := &Client{
		Offers: []Version{{Family: NodeToNode, Number: 6}, {Family: NodeToNode, Number: 7}},
		Magic:  magic,
	}
	server := &Server{
		Supported: []Version{{Family: NodeToNode, Number: 6}, {Family: NodeToNode, Number: 7}},
		Magic:     magic,
	}

	clientErr, serverErr := runPair(t, client, server)
	require.NoError(t, clientErr)
	require.NoError(t, serverErr)

	require.Equal(t, Version{Family: NodeToNode, Number: 7}, client.Result.Version)
	require.Equal(t, magic, client.Result.Magic)
	require.Equal(t, client.Result, server.Result)
}

func TestHandshakeMagicMismatchFailsClient(t *testing.T) {
	client := &Client{
		Offers: []Version{{Family: NodeToNode, Number: 7}},
		Magic:  0xAAAAAAAA,
	}
	server := &Server{
		Supported: []Version{{Family: NodeToNode, Number: 7}},
		Magic:     0xBBBBBBBB,
	}

	clientErr, _ := runPair(t, client, server)
	require.Error(t, clientErr)
	var mismatch *ErrMagicMismatch
	require.ErrorAs(t, clientErr, &mismatch)
}

func TestHandshakeRefusedWhenNoCommonVersion(t *testing.T) {
	client := &Client{
		Offers: []Version{{Family: NodeToNode, Number: 3}},
		Magic:  42,
	}
	server := &Server{
		Supported: []Version{{Family: NodeToNode, Number: 7}},
		Magic:     42,
	}

	clientErr, _ := runPair(t, client, server)
	require.Error(t, clientErr)
	var refused *ErrRefused
	require.ErrorAs(t, clientErr, &refused)
}

func TestHandshakeAcceptUnofferedVersionFailsClient(t *testing.T) {
	client := &Client{
		Offers: []Version{{Family: NodeToNode, Number: 6}},
		Magic:  7,
	}
	// Feed HandleMessage an AcceptVersion for a version the client never
	// offered directly, independent of any real server's negotiation
	// policy (a conforming server never produces this on its own).
	raw, err := encodeAcceptVersion(Version{Family: NodeToNode, Number: 99}, 7)
	require.NoError(t, err)

	err = client.HandleMessage(context.Background(), raw)
	require.Error(t, err)
	var notOffered *ErrVersionNotOffered
	require.ErrorAs(t, err, &notOffered)
}

func TestEncodeProposeVersionsWireShape(t *testing.T) {
	raw, err := encodeProposeVersions(map[Version]uint32{
		{Family: NodeToNode, Number: 6}: 0xDDDDDDDD,
		{Family: NodeToNode, Number: 7}: 0xDDDDDDDD,
	})
	require.NoError(t, err)

	msg, err := decodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, int64(msgProposeVersions), msg.kind)
	require.Len(t, msg.propose, 2)
	require.Equal(t, uint32(0xDDDDDDDD), msg.propose[Version{Family: NodeToNode, Number: 6}])
	require.Equal(t, uint32(0xDDDDDDDD), msg.propose[Version{Family: NodeToNode, Number: 7}])
}

func TestClientToNodeVersionWireBit(t *testing.T) {
	v := Version{Family: NodeToClient, Number: 9}
	require.Equal(t, uint16(0x8009), v.wireNumber())
	require.Equal(t, v, versionFromWire(0x8009))
}
