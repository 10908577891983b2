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

package pingpong

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

const protocolID = 8

func testPair(t *testing.T) (*muxer.Channel, *muxer.Channel, func()) {
	t.Helper()
	a, b := net.Pipe()
	clientConn := muxer.New(a, muxer.RoleClient)
	serverConn := muxer.New(b, muxer.RoleServer)
	return clientConn.Open(protocolID), serverConn.Open(protocolID), func() {
		clientConn.Close()
		serverConn.Close()
	}
}

func TestPingPongSingleExchange(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	client := NewClient()
	server := NewServer()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		server.active = true
		serverDone <- driver.New(serverCh, server).Run(ctx)
	}()

	require.NoError(t, client.Exchange(ctx, clientCh))
	require.NoError(t, <-serverDone)

	require.Equal(t, "Idle", client.State())
	require.Equal(t, "Idle", server.State())
	require.Equal(t, driver.AgencyNone, client.Agency())
	require.Equal(t, driver.AgencyNone, server.Agency())
}

func TestPingPongMultipleExchanges(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	client := NewClient()
	server := NewServer()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const rounds = 5
	serverDone := make(chan error, 1)
	go func() {
		for i := 0; i < rounds; i++ {
			server.active = true
			if err := driver.New(serverCh, server).Run(ctx); err != nil {
				serverDone <- err
				return
			}
		}
		serverDone <- nil
	}()

	for i := 0; i < rounds; i++ {
		require.NoError(t, client.Exchange(ctx, clientCh))
	}
	require.NoError(t, <-serverDone)
}

func TestPingPongDoneRejectsFurtherExchange(t *testing.T) {
	client := NewClient()
	client.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := client.Exchange(ctx, nil)
	require.Error(t, err)
}

func TestPingPongHandleMessageRejectsNonEmptyPayload(t *testing.T) {
	client := NewClient()
	client.active = true
	err := client.HandleMessage(context.Background(), []byte{0x01})
	require.Error(t, err)
}
