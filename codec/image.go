// Copyright 2025 The go-lumen Authors
// This file is part of the go-lumen library.
//
// The go-lumen library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-lumen library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-lumen library. If not, see <http://www.gnu.org/licenses/>.

package codec

import "fmt"

// An image is the portable container for a set of encoded values, the
// form programs take on disk.  Store handles are process-local, so the
// object pointer fields inside image values (thunk targets, partial code
// pointers and arguments, code constants) hold 1-based indexes into the
// image's own value list instead.  The store rewrites them to real
// pointers at load time.
//
// Layout: [magic, count, then per value: payloadLen, payload...].

// imageMagic is "lumenimg" packed little-endian.
const imageMagic Word = 0x676d696e656d756c

// EncodeImage serializes values into image words.
func EncodeImage(values []*Value) ([]Word, error) {
	w := []Word{imageMagic, Word(len(values))}
	for _, v := range values {
		payload, err := EncodeValue(v)
		if err != nil {
			return nil, err
		}
		w = append(w, Word(len(payload)))
		w = append(w, payload...)
	}
	return w, nil
}

// DecodeImage parses image words back into values.
func DecodeImage(w []Word) ([]*Value, error) {
	if len(w) < 2 || w[0] != imageMagic {
		return nil, fmt.Errorf("%w: not an image", ErrEncoding)
	}
	count := w[1]
	pos := 2
	out := make([]*Value, 0, count)
	for i := Word(0); i < count; i++ {
		if pos >= len(w) {
			return nil, fmt.Errorf("%w: image truncated at value %d", ErrEncoding, i)
		}
		payloadLen := int(w[pos])
		pos++
		if pos+payloadLen > len(w) {
			return nil, fmt.Errorf("%w: image value %d overruns container", ErrEncoding, i)
		}
		v, err := DecodeValue(w[pos : pos+payloadLen])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos += payloadLen
	}
	if pos != len(w) {
		return nil, fmt.Errorf("%w: %d trailing words after image", ErrEncoding, len(w)-pos)
	}
	return out, nil
}
