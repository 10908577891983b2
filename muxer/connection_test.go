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

package muxer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipe builds two Connections, client and server, wired together by an
// in-process net.Pipe, so tests never touch a real socket.
func pipe() (*Connection, *Connection) {
	a, b := net.Pipe()
	return New(a, RoleClient), New(b, RoleServer)
}

func TestChannelSendRecvRoundTrip(t *testing.T) {
	client, server := pipe()
	defer client.Close()
	defer server.Close()

	clientCh := client.Open(3)
	serverCh := server.Open(3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- clientCh.Send(ctx, []byte("hello")) }()

	got, err := serverCh.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
	require.NoError(t, <-done)
}

func TestChannelSendChunksOversizedPayload(t *testing.T) {
	client, server := pipe()
	defer client.Close()
	defer server.Close()

	clientCh := client.Open(2)
	serverCh := server.Open(2)

	payload := make([]byte, 150000)
	for i := range payload {
		payload[i] = byte(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- clientCh.Send(ctx, payload) }()

	var reassembled []byte
	for len(reassembled) < len(payload) {
		frame, err := serverCh.Recv(ctx)
		require.NoError(t, err)
		reassembled = append(reassembled, frame...)
	}
	require.Equal(t, payload, reassembled)
	require.NoError(t, <-done)
}

// TestNoSubscriberDoesNotDisturbOtherChannels models scenario 6: frames
// for an unregistered protocol id are dropped by the demultiplexer
// without affecting FIFO delivery to channels that are registered.
func TestNoSubscriberDoesNotDisturbOtherChannels(t *testing.T) {
	client, server := pipe()
	defer client.Close()
	defer server.Close()

	clientChainSync := client.Open(2)
	clientBlockFetch := client.Open(3)
	serverChainSync := server.Open(2)
	serverBlockFetch := server.Open(3)
	// clientTxSub (id 4) is deliberately never Open'd on the server side,
	// so server-bound frames for protocol 4 land with no subscriber.
	_ = serverBlockFetch

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errs := make(chan error, 3)
	go func() { errs <- clientChainSync.Send(ctx, []byte("A")) }()
	go func() { errs <- client.Open(4).Send(ctx, []byte("dropped")) }()
	go func() { errs <- clientBlockFetch.Send(ctx, []byte("B")) }()

	results := recvEither(ctx, serverChainSync, serverBlockFetch)
	var gotChainSync, gotBlockFetch []byte
	for gotChainSync == nil || gotBlockFetch == nil {
		select {
		case v, ok := <-results:
			if !ok {
				t.Fatal("unexpected channel close")
			}
			if v.fromChainSync {
				gotChainSync = v.payload
			} else {
				gotBlockFetch = v.payload
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}
	require.Equal(t, []byte("A"), gotChainSync)
	require.Equal(t, []byte("B"), gotBlockFetch)
	for i := 0; i < 3; i++ {
		require.NoError(t, <-errs)
	}
}

type tagged struct {
	payload       []byte
	fromChainSync bool
}

// recvEither fans in one Recv from each of two channels onto a single
// result channel, for use in a select loop.
func recvEither(ctx context.Context, chainSync, blockFetch *Channel) <-chan tagged {
	out := make(chan tagged, 2)
	go func() {
		if v, err := chainSync.Recv(ctx); err == nil {
			out <- tagged{payload: v, fromChainSync: true}
		}
	}()
	go func() {
		if v, err := blockFetch.Recv(ctx); err == nil {
			out <- tagged{payload: v, fromChainSync: false}
		}
	}()
	return out
}

func TestConnectionCloseUnblocksChannelRecv(t *testing.T) {
	client, server := pipe()
	defer client.Close()

	serverCh := server.Open(8)

	require.NoError(t, server.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := serverCh.Recv(ctx)
	require.Error(t, err)
}

func TestChannelCloseUnregistersAndStopsDelivery(t *testing.T) {
	client, server := pipe()
	defer client.Close()
	defer server.Close()

	clientCh := client.Open(8)
	serverCh := server.Open(8)
	serverCh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, clientCh.Send(ctx, []byte("ping")))

	_, err := serverCh.Recv(ctx)
	require.Error(t, err)
}
