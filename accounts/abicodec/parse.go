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
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseArg converts the textual form of an argument, as found in
// configuration files and on the command line, into a value the encoders
// accept. Integers may be decimal or 0x-prefixed hex; byte values are hex.
func ParseArg(typ abi.Type, text string) (interface{}, error) {
	if typ.T == abi.StringTy {
		return text, nil
	}
	text = strings.TrimSpace(text)
	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(text) {
			return nil, fmt.Errorf("invalid address %q", text)
		}
		return common.HexToAddress(text), nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(text, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return n, nil
	case abi.BoolTy:
		return strconv.ParseBool(text)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", typ.String(), text, err)
		}
		if len(b) > typ.Size {
			return nil, fmt.Errorf("%w: %s with %d bytes", errFixedBytesLen, typ.String(), len(b))
		}
		// Short values are treated like string literals and right-padded.
		return common.RightPadBytes(b, typ.Size), nil
	case abi.BytesTy:
		if text == "" || text == "0x" {
			return []byte{}, nil
		}
		b, err := hexutil.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q: %w", text, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("textual arguments of type %s are not supported", typ.String())
}

// ParseArgs converts one textual argument per parameter of fn.
func (fn FunctionSignature) ParseArgs(texts []string) ([]interface{}, error) {
	if len(texts) != len(fn.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, have %d", errArgCount, fn.Canonical(), len(fn.Inputs), len(texts))
	}
	args := make([]interface{}, len(texts))
	for i, text := range texts {
		arg, err := ParseArg(fn.Inputs[i], text)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, fn.Name, err)
		}
		args[i] = arg
	}
	return args, nil
}
