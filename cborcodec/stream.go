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

package cborcodec

import (
	"bytes"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrIncomplete is returned by SplitFirstValue when buf does not yet
// contain one whole top-level CBOR value. The caller should read more
// bytes from the transport and retry; a logical message may straddle
// several frames.
var ErrIncomplete = errors.New("cborcodec: incomplete CBOR value")

// SplitFirstValue decodes the first complete top-level CBOR value from the
// front of buf and reports how many bytes it occupied. It returns
// ErrIncomplete if buf's prefix is a well-formed-so-far but truncated
// value, so the driver can keep accumulating frames and retry.
func SplitFirstValue(buf []byte) (consumed int, value []byte, err error) {
	if len(buf) == 0 {
		return 0, nil, ErrIncomplete
	}
	dec := decMode.NewDecoder(bytes.NewReader(buf))
	var raw cbor.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return 0, nil, ErrIncomplete
		}
		return 0, nil, err
	}
	n := dec.NumBytesRead()
	return n, buf[:n], nil
}
