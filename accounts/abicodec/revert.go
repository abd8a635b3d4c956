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

package abicodec

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

var (
	ErrShortData        = errors.New("data too short")
	ErrSelectorMismatch = errors.New("unexpected selector")
	ErrBadOffset        = errors.New("invalid offset")
	ErrBadLength        = errors.New("invalid length")
	ErrInvalidUTF8      = errors.New("reason is not valid utf-8")
)

// DecodeError is returned when revert data does not have the expected layout.
type DecodeError struct {
	Data []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode revert data %s: %v", hexutil.Encode(e.Data), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(data []byte, err error) *DecodeError {
	return &DecodeError{Data: append([]byte(nil), data...), Err: err}
}

// EncodeErrorString returns the revert data produced by revert(reason).
func EncodeErrorString(reason string) []byte {
	out := ErrorSelector.Bytes()
	out = append(out, math.PaddedBigBytes(big.NewInt(WordSize), WordSize)...)
	return append(out, EncodeString(reason)...)
}

// DecodeRevertReason decodes Error(string) revert data: the selector, an
// offset word, a length word at that offset and the UTF-8 payload.
func DecodeRevertReason(data []byte) (string, error) {
	if len(data) < SelectorLength {
		return "", decodeError(data, ErrShortData)
	}
	if !ErrorSelector.Matches(data) {
		return "", decodeError(data, fmt.Errorf("%w %x", ErrSelectorMismatch, data[:SelectorLength]))
	}
	body := data[SelectorLength:]
	if len(body) < 2*WordSize {
		return "", decodeError(data, ErrShortData)
	}
	offset, ok := readWord(body[:WordSize])
	if !ok || offset > uint64(len(body)-WordSize) {
		return "", decodeError(data, ErrBadOffset)
	}
	size, ok := readWord(body[offset : offset+WordSize])
	start := offset + WordSize
	if !ok || size > uint64(len(body))-start {
		return "", decodeError(data, ErrBadLength)
	}
	reason := body[start : start+size]
	if !utf8.Valid(reason) {
		return "", decodeError(data, ErrInvalidUTF8)
	}
	return string(reason), nil
}

// readWord interprets a word as an unsigned integer, failing if it does not
// fit in 64 bits.
func readWord(word []byte) (uint64, bool) {
	n := new(big.Int).SetBytes(word)
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

var panicReasons = map[uint64]string{
	0x00: "generic panic",
	0x01: "assert(false)",
	0x11: "arithmetic underflow or overflow",
	0x12: "division or modulo by zero",
	0x21: "enum overflow",
	0x22: "invalid encoded storage byte array accessed",
	0x31: "out-of-bounds array access; popping on an empty array",
	0x32: "out-of-bounds access of an array or bytesN",
	0x41: "out of memory",
	0x51: "uninitialized function",
}

// DecodePanic decodes Panic(uint256) revert data into the panic code and a
// description of it.
func DecodePanic(data []byte) (uint64, string, error) {
	if !PanicSelector.Matches(data) {
		if len(data) < SelectorLength {
			return 0, "", decodeError(data, ErrShortData)
		}
		return 0, "", decodeError(data, fmt.Errorf("%w %x", ErrSelectorMismatch, data[:SelectorLength]))
	}
	if len(data) != SelectorLength+WordSize {
		return 0, "", decodeError(data, ErrBadLength)
	}
	code, ok := readWord(data[SelectorLength:])
	if !ok {
		return 0, "", decodeError(data, ErrBadLength)
	}
	reason, ok := panicReasons[code]
	if !ok {
		reason = fmt.Sprintf("unknown panic code: %#x", code)
	}
	return code, reason, nil
}
