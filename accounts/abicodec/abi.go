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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Functions is an ordered list of function signatures. The order is the one
// in which the ABI lists them.
type Functions []FunctionSignature

// Lookup returns the first function with the given name.
func (fns Functions) Lookup(name string) (FunctionSignature, bool) {
	for _, fn := range fns {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionSignature{}, false
}

// WithPrefix returns the functions whose name begins with prefix, in order.
func (fns Functions) WithPrefix(prefix string) Functions {
	var out Functions
	for _, fn := range fns {
		if strings.HasPrefix(fn.Name, prefix) {
			out = append(out, fn)
		}
	}
	return out
}

type abiEntry struct {
	Type            string                   `json:"type"`
	Name            string                   `json:"name"`
	Inputs          []abi.ArgumentMarshaling `json:"inputs"`
	StateMutability string                   `json:"stateMutability,omitempty"`
}

// ParseABI extracts the function list from a JSON ABI definition. Entries
// other than functions are skipped. Unlike abi.JSON, the original order of the
// functions is kept.
func ParseABI(data []byte) (Functions, error) {
	var entries []abiEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid abi: %w", err)
	}
	var fns Functions
	for _, entry := range entries {
		// Solidity < 0.5 omitted the type for functions.
		if entry.Type != "function" && entry.Type != "" {
			continue
		}
		inputs := make([]abi.Type, 0, len(entry.Inputs))
		for _, input := range entry.Inputs {
			typ, err := abi.NewType(input.Type, input.InternalType, input.Components)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", entry.Name, err)
			}
			inputs = append(inputs, typ)
		}
		fn := NewFunctionSignature(entry.Name, inputs)
		fn.Mutability = entry.StateMutability
		fns = append(fns, fn)
	}
	return fns, nil
}
