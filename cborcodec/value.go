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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode produces canonical, definite-length CBOR: sorted map keys,
// shortest-form integers, no indefinite-length containers. Every message
// encoder in this module goes through it so two processes serializing the
// same value always produce the same bytes.
var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err) // cbor.CanonicalEncOptions() is always a valid option set
	}
	return m
}()

// decMode rejects duplicate map keys and other malformed input up front,
// rather than silently taking the last value.
var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}
	m, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Marshal encodes v as canonical CBOR.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Array builds a CBOR array literal from Go values (a []byte element is
// encoded as a byte string); message encoders call this once per message
// with the discriminator as the first element.
func Array(elems ...interface{}) ([]byte, error) {
	return Marshal(elems)
}

// Iterator walks the elements of one decoded CBOR array in order, failing
// with a descriptive error the moment an element doesn't have the shape
// the caller asked for. This gives every message decoder strict,
// zero-positional-guessing validation: walk the iterator in the documented
// field order and call End() to confirm nothing was left over.
type Iterator struct {
	elems []interface{}
	pos   int
}

// NewIterator decodes raw as a single top-level CBOR array and returns an
// Iterator over its elements.
func NewIterator(raw []byte) (*Iterator, error) {
	var v interface{}
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cborcodec: decode top-level value: %w", err)
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cborcodec: expected array at top level, got %T", v)
	}
	return &Iterator{elems: arr}, nil
}

func (it *Iterator) next() (interface{}, error) {
	if it.pos >= len(it.elems) {
		return nil, fmt.Errorf("cborcodec: unexpected end of message, want element %d", it.pos)
	}
	v := it.elems[it.pos]
	it.pos++
	return v, nil
}

// Integer extracts the next element as a signed integer. CBOR's two
// integer major types decode into uint64 or int64 depending on sign; both
// are accepted here.
func (it *Iterator) Integer() (int64, error) {
	v, err := it.next()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint64:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("cborcodec: expected integer at element %d, got %T", it.pos-1, v)
	}
}

// Bytes extracts the next element as a byte string.
func (it *Iterator) Bytes() ([]byte, error) {
	v, err := it.next()
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("cborcodec: expected byte string at element %d, got %T", it.pos-1, v)
	}
	return b, nil
}

// Text extracts the next element as a text string.
func (it *Iterator) Text() (string, error) {
	v, err := it.next()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("cborcodec: expected text string at element %d, got %T", it.pos-1, v)
	}
	return s, nil
}

// Bool extracts the next element as a boolean.
func (it *Iterator) Bool() (bool, error) {
	v, err := it.next()
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("cborcodec: expected bool at element %d, got %T", it.pos-1, v)
	}
	return b, nil
}

// Array extracts the next element as a nested array and returns an
// Iterator over it.
func (it *Iterator) Array() (*Iterator, error) {
	v, err := it.next()
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cborcodec: expected array at element %d, got %T", it.pos-1, v)
	}
	return &Iterator{elems: arr}, nil
}

// Map extracts the next element as a CBOR map.
func (it *Iterator) Map() (map[interface{}]interface{}, error) {
	v, err := it.next()
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("cborcodec: expected map at element %d, got %T", it.pos-1, v)
	}
	return m, nil
}

// Len reports how many elements remain unconsumed.
func (it *Iterator) Len() int { return len(it.elems) - it.pos }

// End fails if any element of the array was left unconsumed.
func (it *Iterator) End() error {
	if it.pos != len(it.elems) {
		return fmt.Errorf("cborcodec: %d unconsumed element(s) in message", len(it.elems)-it.pos)
	}
	return nil
}
