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

package txsubmission

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/muxer"
)

func testPair(t *testing.T) (*muxer.Channel, *muxer.Channel, func()) {
	t.Helper()
	a, b := net.Pipe()
	clientConn := muxer.New(a, muxer.RoleClient)
	serverConn := muxer.New(b, muxer.RoleServer)
	return clientConn.Open(ProtocolID), serverConn.Open(ProtocolID), func() {
		clientConn.Close()
		serverConn.Close()
	}
}

func TestReplyTxIdsEmptyIsHandCraftedBytes(t *testing.T) {
	require.Equal(t, []byte{0x82, 0x01, 0x9f, 0xff}, replyTxIdsEmpty)
}

func TestNonBlockingRoundRepliesEmptyAndReturnsToWaiting(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	client := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	recvd := make(chan []byte, 1)
	go func() {
		raw, _ := cborcodec.Array(msgRequestTxIds, false, int64(0), int64(10))
		_ = serverCh.Send(ctx, raw)
		v, _ := serverCh.Recv(ctx)
		recvd <- v
	}()

	// A non-blocking round leaves Agency cycling back to the server, so a
	// bounded ctx is what actually stops Run here; the reply itself
	// happens inside the same Run call before the server sends anything
	// further.
	shortCtx, shortCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer shortCancel()
	err := Run(shortCtx, clientCh, client)
	require.Error(t, err) // deadline exceeded waiting for the next round

	reply := <-recvd
	require.Equal(t, replyTxIdsEmpty, reply)
	require.False(t, client.LastBlocking)
	require.Equal(t, int64(0), client.LastAck)
	require.Equal(t, int64(10), client.LastReq)
}

func TestBlockingRoundYieldsAgencyForever(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	client := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		raw, _ := cborcodec.Array(msgRequestTxIds, true, int64(5), int64(20))
		_ = serverCh.Send(ctx, raw)
	}()

	require.NoError(t, Run(ctx, clientCh, client))
	require.True(t, client.LastBlocking)
	require.Equal(t, "IdleForever", client.State())
	require.Equal(t, driver.AgencyNone, client.Agency())
}
