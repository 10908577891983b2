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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnboundedQueueFIFOOrder(t *testing.T) {
	q := newUnboundedQueue()
	defer q.close()

	for i := 0; i < 5; i++ {
		require.True(t, q.push([]byte{byte(i)}))
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, err := q.pop(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, v)
	}
}

func TestUnboundedQueuePopAfterClose(t *testing.T) {
	q := newUnboundedQueue()
	require.True(t, q.push([]byte("a")))
	q.close()

	// The buffered item must still be observable...
	v, err := q.pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("a"), v)

	// ...and a further pop reports the queue closed.
	_, err = q.pop(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestUnboundedQueueDoubleCloseDoesNotPanic(t *testing.T) {
	q := newUnboundedQueue()
	q.close()
	require.NotPanics(t, func() { q.close() })
}

func TestUnboundedQueuePopRespectsContext(t *testing.T) {
	q := newUnboundedQueue()
	defer q.close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnboundedQueuePushAfterCloseReportsDropped(t *testing.T) {
	q := newUnboundedQueue()
	q.close()
	require.False(t, q.push([]byte("late")))
}
