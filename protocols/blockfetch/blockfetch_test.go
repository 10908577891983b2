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

package blockfetch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probeum/go-ouroboros/cborcodec"
	"github.com/probeum/go-ouroboros/muxer"
	"github.com/probeum/go-ouroboros/ouroboros"
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

// TestBlockFetchHappyPath models scenario 3: StartBatch, three Blocks,
// BatchDone, and exactly those three payloads in order.
func TestBlockFetchHappyPath(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	bf := New(clientCh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- func() error {
			if _, err := serverCh.Recv(ctx); err != nil {
				return err
			}
			msgs := [][]byte{
				must(cborcodec.Array(msgStartBatch)),
				must(cborcodec.Array(msgBlock, []byte("mock-block-1"))),
				must(cborcodec.Array(msgBlock, []byte("mock-block-2"))),
				must(cborcodec.Array(msgBlock, []byte("mock-block-3"))),
				must(cborcodec.Array(msgBatchDone)),
			}
			for _, m := range msgs {
				if err := serverCh.Send(ctx, m); err != nil {
					return err
				}
			}
			return nil
		}()
	}()

	first := ouroboros.Point{Slot: 42, Hash: [32]byte{1}}
	last := ouroboros.Point{Slot: 44, Hash: [32]byte{3}}
	require.NoError(t, bf.RequestRange(ctx, first, last))

	var got [][]byte
	for {
		block, ok, err := bf.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, block)
	}
	require.Equal(t, [][]byte{[]byte("mock-block-1"), []byte("mock-block-2"), []byte("mock-block-3")}, got)
	require.Equal(t, stIdle, bf.state)
	require.NoError(t, <-serverDone)
}

// TestBlockFetchEmptyRange models scenario 4: NoBlocks yields end-of-stream
// immediately.
func TestBlockFetchEmptyRange(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	bf := New(clientCh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		_, _ = serverCh.Recv(ctx)
		raw, _ := cborcodec.Array(msgNoBlocks)
		_ = serverCh.Send(ctx, raw)
	}()

	first := ouroboros.Point{Slot: 42, Hash: [32]byte{1}}
	last := ouroboros.Point{Slot: 44, Hash: [32]byte{3}}
	require.NoError(t, bf.RequestRange(ctx, first, last))

	_, ok, err := bf.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, stIdle, bf.state)
}

func TestBlockFetchRejectsSecondRangeBeforeIdle(t *testing.T) {
	clientCh, serverCh, closeFn := testPair(t)
	defer closeFn()

	bf := New(clientCh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		_, _ = serverCh.Recv(ctx)
		raw, _ := cborcodec.Array(msgStartBatch)
		_ = serverCh.Send(ctx, raw)
	}()

	p := ouroboros.Point{Slot: 1, Hash: [32]byte{1}}
	require.NoError(t, bf.RequestRange(ctx, p, p))
	require.Equal(t, stStreaming, bf.state)

	err := bf.RequestRange(ctx, p, p)
	require.Error(t, err)
}

func must(b []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return b
}
