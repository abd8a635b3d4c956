// Copyright 2024 The evmodin-test Authors
// This file is part of the evmodin-test library.
//
// The evmodin-test library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evmodin-test library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evmodin-test library. If not, see <http://www.gnu.org/licenses/>.

// Package abicodec builds call payloads for contract functions and decodes the
// data returned by reverted executions.
//
// Arguments are always encoded by the encoder matching the declared parameter
// type, so callers never choose between left and right padding themselves.
package abicodec

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SelectorLength is the number of bytes identifying a function in call data.
const SelectorLength = 4

// Selector is the first four bytes of the keccak256 hash of a canonical
// function signature.
type Selector [SelectorLength]byte

var (
	// ErrorSelector prefixes revert data produced by require/revert with a
	// reason string.
	ErrorSelector = SelectorOf("Error(string)")

	// PanicSelector prefixes revert data produced by failed assertions and
	// arithmetic checks.
	PanicSelector = SelectorOf("Panic(uint256)")
)

// SelectorOf computes the selector of a canonical signature such as
// "transfer(address,uint256)". The signature is hashed verbatim.
func SelectorOf(signature string) Selector {
	var sel Selector
	copy(sel[:], crypto.Keccak256([]byte(signature))[:SelectorLength])
	return sel
}

// Bytes returns the selector as a fresh byte slice.
func (s Selector) Bytes() []byte {
	return append([]byte(nil), s[:]...)
}

// Hex returns the 0x-prefixed hex form of the selector.
func (s Selector) Hex() string {
	return hexutil.Encode(s[:])
}

func (s Selector) String() string {
	return s.Hex()
}

// Matches reports whether data starts with the selector.
func (s Selector) Matches(data []byte) bool {
	return len(data) >= SelectorLength && Selector(data[:SelectorLength]) == s
}
