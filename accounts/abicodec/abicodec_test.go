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
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustType(t *testing.T, typ string) abi.Type {
	t.Helper()
	ty, err := abi.NewType(typ, "", nil)
	require.NoError(t, err)
	return ty
}

func TestSelectorOf(t *testing.T) {
	tests := []struct {
		sig  string
		want string
	}{
		{"setGreeting(bytes32)", "0x50513b4f"},
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"Error(string)", "0x08c379a0"},
		{"Panic(uint256)", "0x4e487b71"},
		{"setCalleeTarget(address)", "0x23d4cfc6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SelectorOf(tt.sig).Hex(), tt.sig)
		// Stable across calls.
		assert.Equal(t, SelectorOf(tt.sig), SelectorOf(tt.sig))
	}
	assert.Equal(t, []byte{0x50, 0x51, 0x3b, 0x4f}, SelectorOf("setGreeting(bytes32)").Bytes())
}

func TestParseSignature(t *testing.T) {
	fn, err := ParseSignature("transfer(address, uint256)")
	require.NoError(t, err)
	assert.Equal(t, "transfer", fn.Name)
	assert.Equal(t, "transfer(address,uint256)", fn.Canonical())
	assert.Equal(t, "0xa9059cbb", fn.Selector.Hex())

	fn, err = ParseSignature("testFoo()")
	require.NoError(t, err)
	assert.Empty(t, fn.Inputs)

	fn, err = ParseSignature("f((uint256,address)[],bytes)")
	require.NoError(t, err)
	require.Len(t, fn.Inputs, 2)
	assert.Equal(t, "f((uint256,address)[],bytes)", fn.Canonical())

	for _, bad := range []string{"", "noparens", "(uint256)", "f(uint256", "f(uint256,)", "f((uint256)", "f(notatype)"} {
		_, err := ParseSignature(bad)
		assert.Error(t, err, bad)
	}
}

func TestEncodeAddress(t *testing.T) {
	addr := common.HexToAddress("0x1000000000000000000000000000000000000000")
	enc := EncodeAddress(addr)
	require.Len(t, enc, 32)
	assert.Equal(t, make([]byte, 12), enc[:12])
	assert.Equal(t, addr.Bytes(), enc[12:])

	call, err := EncodeCall("setCalleeTarget(address)", addr)
	require.NoError(t, err)
	assert.Equal(t, "0x23d4cfc6"+"0000000000000000000000001000000000000000000000000000000000000000", hexutil.Encode(call))
}

func TestEncodeFixedBytesRightPadded(t *testing.T) {
	enc, err := EncodeFixedBytes(5, []byte("hello"))
	require.NoError(t, err)
	require.Len(t, enc, 32)
	assert.Equal(t, []byte("hello"), enc[:5])
	assert.Equal(t, make([]byte, 27), enc[5:])

	_, err = EncodeFixedBytes(4, []byte("hello"))
	assert.True(t, errors.Is(err, errFixedBytesLen))
}

func TestEncodeIntegers(t *testing.T) {
	enc, err := EncodeUint(256, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes([]byte{1}, 32), enc)

	enc, err = EncodeInt(256, big.NewInt(-1))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 32), enc)

	_, err = EncodeUint(8, big.NewInt(256))
	assert.ErrorIs(t, err, errIntOverflow)
	_, err = EncodeUint(256, big.NewInt(-1))
	assert.ErrorIs(t, err, errNegativeUint)
	_, err = EncodeInt(8, big.NewInt(128))
	assert.ErrorIs(t, err, errIntOverflow)
	_, err = EncodeInt(8, big.NewInt(-128))
	assert.NoError(t, err)
}

// The hand-rolled encoders must agree with go-ethereum's generic packer.
func TestEncodeArgsMatchesPacker(t *testing.T) {
	var (
		addr   = common.HexToAddress("0xdeadbeef00000000000000000000000000000001")
		greet  = [32]byte{'h', 'i'}
		amount = big.NewInt(-12345)
		types  = []abi.Type{
			mustType(t, "address"),
			mustType(t, "string"),
			mustType(t, "bytes32"),
			mustType(t, "int64"),
			mustType(t, "bytes"),
			mustType(t, "bool"),
			mustType(t, "uint256[]"),
		}
		list = []*big.Int{big.NewInt(1), big.NewInt(2)}
	)
	args := abi.Arguments{}
	for _, typ := range types {
		args = append(args, abi.Argument{Type: typ})
	}
	want, err := args.Pack(addr, "a string longer than thirty-two bytes, spanning words", greet, amount.Int64(), []byte{1, 2, 3}, true, list)
	require.NoError(t, err)

	have, err := EncodeArgs(types, addr, "a string longer than thirty-two bytes, spanning words", greet, amount, []byte{1, 2, 3}, true, list)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(want), hexutil.Encode(have))
}

func TestEncodeArgsCount(t *testing.T) {
	_, err := EncodeCall("setGreeting(bytes32)")
	assert.ErrorIs(t, err, errArgCount)
	_, err = EncodeCall("setGreeting(bytes32)", "not bytes")
	assert.Error(t, err)
}

func TestRevertReasonRoundTrip(t *testing.T) {
	for _, reason := range []string{
		"",
		"boom",
		"a reason that is definitely longer than a single thirty-two byte word",
		"héllo wörld ✓ 日本語",
	} {
		data := EncodeErrorString(reason)
		assert.True(t, ErrorSelector.Matches(data))
		assert.Zero(t, (len(data)-SelectorLength)%WordSize)

		got, err := DecodeRevertReason(data)
		require.NoError(t, err, reason)
		assert.Equal(t, reason, got)

		// Agrees with go-ethereum's own decoder.
		unpacked, err := abi.UnpackRevert(data)
		require.NoError(t, err)
		assert.Equal(t, reason, unpacked)
	}
}

func TestDecodeRevertReasonMalformed(t *testing.T) {
	valid := EncodeErrorString("boom")

	badUTF8 := EncodeErrorString("boom")
	badUTF8[SelectorLength+2*WordSize] = 0xff

	longLen := common.CopyBytes(valid)
	longLen[SelectorLength+2*WordSize-1] = 0x40

	badOffset := common.CopyBytes(valid)
	badOffset[SelectorLength+WordSize-1] = 0xff

	hugeOffset := common.CopyBytes(valid)
	hugeOffset[SelectorLength] = 0x01

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortData},
		{"selector only", valid[:SelectorLength], ErrShortData},
		{"truncated", valid[:SelectorLength+WordSize], ErrShortData},
		{"wrong selector", append(PanicSelector.Bytes(), valid[SelectorLength:]...), ErrSelectorMismatch},
		{"offset out of range", badOffset, ErrBadOffset},
		{"offset overflow", hugeOffset, ErrBadOffset},
		{"length too long", longLen, ErrBadLength},
		{"invalid utf8", badUTF8, ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRevertReason(tt.data)
			require.Error(t, err)
			var derr *DecodeError
			require.True(t, errors.As(err, &derr))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, []byte(tt.data), []byte(derr.Data))
		})
	}
}

func TestDecodePanic(t *testing.T) {
	data := append(PanicSelector.Bytes(), common.LeftPadBytes([]byte{0x11}, 32)...)
	code, reason, err := DecodePanic(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11), code)
	assert.Equal(t, "arithmetic underflow or overflow", reason)

	_, _, err = DecodePanic(EncodeErrorString("boom"))
	assert.ErrorIs(t, err, ErrSelectorMismatch)
	_, _, err = DecodePanic(data[:10])
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestParseABI(t *testing.T) {
	const definition = `[
		{"type":"constructor","inputs":[]},
		{"type":"function","name":"testFoo","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
		{"type":"event","name":"Greeted","inputs":[{"name":"who","type":"address","indexed":true}]},
		{"type":"function","name":"setCalleeTarget","inputs":[{"name":"target","type":"address","internalType":"address"}],"outputs":[]},
		{"type":"function","name":"testFailFoo","inputs":[],"outputs":[]},
		{"type":"function","name":"setPair","inputs":[{"name":"p","type":"tuple","components":[{"name":"a","type":"uint256"},{"name":"b","type":"address"}]}]}
	]`
	fns, err := ParseABI([]byte(definition))
	require.NoError(t, err)

	var names []string
	for _, fn := range fns {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"testFoo", "setCalleeTarget", "testFailFoo", "setPair"}, names)
	assert.Equal(t, "nonpayable", fns[0].Mutability)

	fn, ok := fns.Lookup("setCalleeTarget")
	require.True(t, ok)
	assert.Equal(t, "0x23d4cfc6", fn.Selector.Hex())

	fn, ok = fns.Lookup("setPair")
	require.True(t, ok)
	assert.Equal(t, "setPair((uint256,address))", fn.Canonical())

	assert.Len(t, fns.WithPrefix("test"), 2)

	_, err = ParseABI([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		typ  string
		text string
		want interface{}
	}{
		{"address", "0x1000000000000000000000000000000000000000", common.HexToAddress("0x1000000000000000000000000000000000000000")},
		{"uint256", "42", big.NewInt(42)},
		{"uint256", "0x2a", big.NewInt(42)},
		{"int8", "-3", big.NewInt(-3)},
		{"bool", "true", true},
		{"bytes4", "0x0102", []byte{1, 2, 0, 0}},
		{"bytes", "0x0102", []byte{1, 2}},
		{"bytes", "", []byte{}},
		{"string", " spaced ", " spaced "},
	}
	for _, tt := range tests {
		got, err := ParseArg(mustType(t, tt.typ), tt.text)
		require.NoError(t, err, "%s %q", tt.typ, tt.text)
		assert.Equal(t, tt.want, got, "%s %q", tt.typ, tt.text)
	}

	for _, bad := range []struct{ typ, text string }{
		{"address", "0x12"},
		{"uint256", "forty-two"},
		{"bool", "maybe"},
		{"bytes2", "0x010203"},
		{"uint256[]", "[1,2]"},
	} {
		_, err := ParseArg(mustType(t, bad.typ), bad.text)
		assert.Error(t, err, "%s %q", bad.typ, bad.text)
	}
}

func TestParseArgsEncode(t *testing.T) {
	fn, err := ParseSignature("setGreeting(bytes32)")
	require.NoError(t, err)
	args, err := fn.ParseArgs([]string{"0x68656c6c6f"})
	require.NoError(t, err)
	call, err := fn.Encode(args...)
	require.NoError(t, err)
	require.Len(t, call, SelectorLength+WordSize)
	assert.Equal(t, []byte("hello"), call[SelectorLength:SelectorLength+5])

	_, err = fn.ParseArgs(nil)
	assert.ErrorIs(t, err, errArgCount)
}
