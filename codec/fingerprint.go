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

import "golang.org/x/crypto/sha3"

// FingerprintSize is the byte length of a record fingerprint.
const FingerprintSize = 32

// Fingerprint is the content address of a canonical record: equal values
// encode identically, so they share a fingerprint.
type Fingerprint [FingerprintSize]byte

// FingerprintWords hashes a canonical word sequence.
func FingerprintWords(w []Word) Fingerprint {
	return sha3.Sum256(WordsToBytes(w))
}

// FingerprintValue encodes v canonically and hashes the result.
func FingerprintValue(v *Value) (Fingerprint, error) {
	w, err := EncodeValue(v)
	if err != nil {
		return Fingerprint{}, err
	}
	return FingerprintWords(w), nil
}
