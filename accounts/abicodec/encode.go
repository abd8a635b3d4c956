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
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

// WordSize is the size of one ABI slot.
const WordSize = 32

var (
	errNegativeUint  = errors.New("negative value for unsigned type")
	errIntOverflow   = errors.New("value out of range")
	errFixedBytesLen = errors.New("fixed bytes length mismatch")
	errArgCount      = errors.New("argument count mismatch")
)

// EncodeAddress left-pads an address to a full word: 12 zero bytes followed by
// the 20 address bytes.
func EncodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), WordSize)
}

// EncodeUint encodes v as a big-endian word after checking it fits in bits.
func EncodeUint(bits int, v *big.Int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, errNegativeUint
	}
	if v.BitLen() > bits {
		return nil, fmt.Errorf("%w: %v does not fit uint%d", errIntOverflow, v, bits)
	}
	return math.PaddedBigBytes(v, WordSize), nil
}

// EncodeInt encodes v as a two's complement word after checking it fits in
// bits.
func EncodeInt(bits int, v *big.Int) ([]byte, error) {
	limit := new(big.Int).Lsh(common.Big1, uint(bits-1))
	if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("%w: %v does not fit int%d", errIntOverflow, v, bits)
	}
	return math.U256Bytes(new(big.Int).Set(v)), nil
}

// EncodeBool encodes a boolean as the word 0 or 1.
func EncodeBool(b bool) []byte {
	word := make([]byte, WordSize)
	if b {
		word[WordSize-1] = 1
	}
	return word
}

// EncodeFixedBytes right-pads a bytesN value to a full word. The input must be
// exactly size bytes long.
func EncodeFixedBytes(size int, b []byte) ([]byte, error) {
	if size < 1 || size > WordSize || len(b) != size {
		return nil, fmt.Errorf("%w: bytes%d with %d bytes", errFixedBytesLen, size, len(b))
	}
	return common.RightPadBytes(common.CopyBytes(b), WordSize), nil
}

// EncodeDynamicBytes encodes the tail of a bytes value: a length word followed
// by the payload right-padded to a word boundary.
func EncodeDynamicBytes(b []byte) []byte {
	out := math.PaddedBigBytes(big.NewInt(int64(len(b))), WordSize)
	return append(out, common.RightPadBytes(b, paddedLen(len(b)))...)
}

// EncodeString encodes the tail of a string value. It is laid out exactly
// like dynamic bytes.
func EncodeString(s string) []byte {
	return EncodeDynamicBytes([]byte(s))
}

func paddedLen(n int) int {
	return (n + WordSize - 1) / WordSize * WordSize
}

// EncodeCall parses signature and encodes a call to it with args.
func EncodeCall(signature string, args ...interface{}) ([]byte, error) {
	fn, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	return fn.Encode(args...)
}

// Encode returns selector ++ head ++ tail for the given arguments.
func (fn FunctionSignature) Encode(args ...interface{}) ([]byte, error) {
	params, err := EncodeArgs(fn.Inputs, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fn.Canonical(), err)
	}
	return append(fn.Selector.Bytes(), params...), nil
}

// EncodeArgs encodes args according to types. Static values are placed inline
// in the head; dynamic values get an offset word in the head and their data in
// the tail.
func EncodeArgs(types []abi.Type, args ...interface{}) ([]byte, error) {
	if len(types) != len(args) {
		return nil, fmt.Errorf("%w: want %d, have %d", errArgCount, len(types), len(args))
	}
	var (
		heads   = make([][]byte, len(types))
		tails   = make([][]byte, len(types))
		headLen int
	)
	for i, typ := range types {
		enc, err := encodeValue(typ, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, typ.String(), err)
		}
		if isDynamic(typ) {
			tails[i] = enc
			headLen += WordSize
		} else {
			heads[i] = enc
			headLen += len(enc)
		}
	}
	var (
		out    = make([]byte, 0, headLen)
		offset = headLen
	)
	for i, typ := range types {
		if !isDynamic(typ) {
			out = append(out, heads[i]...)
			continue
		}
		out = append(out, math.PaddedBigBytes(big.NewInt(int64(offset)), WordSize)...)
		offset += len(tails[i])
	}
	for _, tail := range tails {
		out = append(out, tail...)
	}
	return out, nil
}

// encodeValue returns the inline encoding of a static value or the tail
// encoding of a dynamic one.
func encodeValue(typ abi.Type, v interface{}) ([]byte, error) {
	switch typ.T {
	case abi.AddressTy:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, typeError(typ, v)
		}
		return EncodeAddress(addr), nil
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		if typ.T == abi.UintTy {
			return EncodeUint(typ.Size, n)
		}
		return EncodeInt(typ.Size, n)
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(typ, v)
		}
		return EncodeBool(b), nil
	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return EncodeFixedBytes(typ.Size, b)
	case abi.BytesTy:
		b, ok := v.([]byte)
		if !ok {
			return nil, typeError(typ, v)
		}
		return EncodeDynamicBytes(b), nil
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, typeError(typ, v)
		}
		return EncodeString(s), nil
	}
	// Arrays, slices and tuples go through the generic packer. A single
	// dynamic argument packs as an offset word followed by its tail.
	packed, err := abi.Arguments{{Type: typ}}.Pack(v)
	if err != nil {
		return nil, err
	}
	if isDynamic(typ) {
		return packed[WordSize:], nil
	}
	return packed, nil
}

func isDynamic(typ abi.Type) bool {
	switch typ.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		return true
	case abi.ArrayTy:
		return isDynamic(*typ.Elem)
	case abi.TupleTy:
		for _, elem := range typ.TupleElems {
			if isDynamic(*elem) {
				return true
			}
		}
	}
	return false
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case *uint256.Int:
		return n.ToBig(), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case int64:
		return big.NewInt(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}

// toBytes accepts byte slices and byte arrays of any length.
func toBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case common.Hash:
		return b.Bytes(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %T as fixed bytes", v)
}

func typeError(typ abi.Type, v interface{}) error {
	return fmt.Errorf("cannot use %T as %s", v, typ.String())
}
