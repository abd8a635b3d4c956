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
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var errMalformedSignature = errors.New("malformed signature")

// FunctionSignature describes a contract function by name and ordered
// parameter types.
type FunctionSignature struct {
	Name     string
	Inputs   []abi.Type
	Selector Selector

	// Mutability is the stateMutability reported by the ABI, if any.
	Mutability string
}

// NewFunctionSignature builds a signature from its parts, computing the
// selector from the canonical form.
func NewFunctionSignature(name string, inputs []abi.Type) FunctionSignature {
	fn := FunctionSignature{Name: name, Inputs: inputs}
	fn.Selector = SelectorOf(fn.Canonical())
	return fn
}

// ParseSignature parses a signature like "setGreeting(bytes32)". Parameter
// names are not allowed; tuple parameters are written in their canonical
// parenthesised form, e.g. "f((uint256,address)[])".
func ParseSignature(sig string) (FunctionSignature, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return FunctionSignature{}, fmt.Errorf("%w: %q", errMalformedSignature, sig)
	}
	name := sig[:open]
	if strings.ContainsAny(name, " \t,)") {
		return FunctionSignature{}, fmt.Errorf("%w: invalid name %q", errMalformedSignature, name)
	}
	params, err := splitTypes(sig[open+1 : len(sig)-1])
	if err != nil {
		return FunctionSignature{}, fmt.Errorf("%w: %q: %v", errMalformedSignature, sig, err)
	}
	inputs := make([]abi.Type, 0, len(params))
	for _, param := range params {
		typ, err := parseType(param)
		if err != nil {
			return FunctionSignature{}, fmt.Errorf("parameter %q of %s: %w", param, name, err)
		}
		inputs = append(inputs, typ)
	}
	return NewFunctionSignature(name, inputs), nil
}

// Canonical returns the signature string the selector is derived from.
func (fn FunctionSignature) Canonical() string {
	types := make([]string, len(fn.Inputs))
	for i, typ := range fn.Inputs {
		types[i] = typ.String()
	}
	return fn.Name + "(" + strings.Join(types, ",") + ")"
}

func (fn FunctionSignature) String() string {
	return fn.Canonical()
}

// splitTypes splits a comma separated type list, respecting parentheses.
func splitTypes(list string) ([]string, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	var (
		types []string
		depth int
		start int
	)
	for i, c := range list {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				types = append(types, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	types = append(types, strings.TrimSpace(list[start:]))
	for _, typ := range types {
		if typ == "" {
			return nil, errors.New("empty parameter type")
		}
	}
	return types, nil
}

// parseType turns a canonical type string into an abi.Type. Tuples are
// rewritten into the component form abi.NewType expects.
func parseType(typ string) (abi.Type, error) {
	if !strings.HasPrefix(typ, "(") {
		return abi.NewType(typ, "", nil)
	}
	marshaling, err := tupleMarshaling(typ)
	if err != nil {
		return abi.Type{}, err
	}
	return abi.NewType(marshaling.Type, "", marshaling.Components)
}

func tupleMarshaling(typ string) (abi.ArgumentMarshaling, error) {
	closing := strings.LastIndexByte(typ, ')')
	if closing < 0 {
		return abi.ArgumentMarshaling{}, errors.New("unbalanced parentheses")
	}
	elems, err := splitTypes(typ[1:closing])
	if err != nil {
		return abi.ArgumentMarshaling{}, err
	}
	if len(elems) == 0 {
		return abi.ArgumentMarshaling{}, errors.New("empty tuple")
	}
	arg := abi.ArgumentMarshaling{Type: "tuple" + typ[closing+1:]}
	for i, elem := range elems {
		comp := abi.ArgumentMarshaling{Name: fmt.Sprintf("field%d", i), Type: elem}
		if strings.HasPrefix(elem, "(") {
			inner, err := tupleMarshaling(elem)
			if err != nil {
				return abi.ArgumentMarshaling{}, err
			}
			comp.Type, comp.Components = inner.Type, inner.Components
		}
		arg.Components = append(arg.Components, comp)
	}
	return arg, nil
}
