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

package evmasm

import (
	"encoding/json"
	"fmt"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
)

// Function is one externally callable function of a test contract.
type Function struct {
	Signature string
	Body      func(p *Program)
}

// Contract is assembled test contract code together with its ABI.
type Contract struct {
	Name    string
	Init    []byte
	Runtime []byte
	ABI     []byte
}

type abiParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type abiFunction struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Inputs          []abiParam `json:"inputs"`
	Outputs         []abiParam `json:"outputs"`
	StateMutability string     `json:"stateMutability"`
}

// Build assembles a contract that dispatches on the selectors of fns. The ABI
// lists the functions in the given order.
func Build(name string, fns []Function) (Contract, error) {
	var (
		p      = New()
		routes = make([]Route, len(fns))
		defs   = make([]abiFunction, len(fns))
	)
	for i, fn := range fns {
		sig, err := abicodec.ParseSignature(fn.Signature)
		if err != nil {
			return Contract{}, err
		}
		routes[i] = Route{Selector: sig.Selector, Label: fmt.Sprintf("fn_%d", i)}
		defs[i] = abiFunction{
			Type:            "function",
			Name:            sig.Name,
			Inputs:          make([]abiParam, len(sig.Inputs)),
			Outputs:         []abiParam{},
			StateMutability: "nonpayable",
		}
		for j, input := range sig.Inputs {
			defs[i].Inputs[j] = abiParam{Name: fmt.Sprintf("arg%d", j), Type: input.String()}
		}
	}
	p.Dispatch(routes)
	for i, fn := range fns {
		p.Label(routes[i].Label)
		fn.Body(p)
	}
	runtime, err := p.Bytes()
	if err != nil {
		return Contract{}, fmt.Errorf("assembling %s: %w", name, err)
	}
	blob, err := json.Marshal(defs)
	if err != nil {
		return Contract{}, err
	}
	return Contract{Name: name, Init: InitCode(runtime), Runtime: runtime, ABI: blob}, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(name string, fns []Function) Contract {
	c, err := Build(name, fns)
	if err != nil {
		panic(err)
	}
	return c
}
