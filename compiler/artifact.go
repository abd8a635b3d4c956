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

// Package compiler obtains contract artifacts from the Solidity compiler,
// either by invoking solc or by loading its combined-json output.
package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
)

// Artifact is the compiled form of one contract.
type Artifact struct {
	Name      string
	Source    string // source unit the contract was declared in, if known
	Deploy    []byte // deployment bytecode
	Runtime   []byte // runtime bytecode
	ABI       []byte // JSON ABI
	Functions abicodec.Functions
}

// CollaboratorError is returned when the compiler cannot produce a requested
// contract. It is fatal to a test run.
type CollaboratorError struct {
	Contract string
	Err      error
}

func (e *CollaboratorError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("compiler: %v", e.Err)
	}
	return fmt.Sprintf("compiler: contract %s: %v", e.Contract, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

var (
	errNotFound  = errors.New("not found")
	errAmbiguous = errors.New("declared in more than one source unit")
)

// Artifacts holds compiled contracts keyed by their qualified name
// "source:Name", or by the bare name when the source unit is unknown.
type Artifacts map[string]*Artifact

func (as Artifacts) add(a *Artifact) {
	as[a.qualifiedName()] = a
}

func (a *Artifact) qualifiedName() string {
	if a.Source == "" {
		return a.Name
	}
	return a.Source + ":" + a.Name
}

// Lookup returns the named contract. The name may be qualified with its
// source unit as in "src/Foo.sol:Foo"; a bare name must be unique across
// source units.
func (as Artifacts) Lookup(name string) (*Artifact, error) {
	source, contract := splitName(name)
	if source != "" {
		if a, ok := as[name]; ok {
			return a, nil
		}
		return nil, &CollaboratorError{Contract: name, Err: errNotFound}
	}
	var found []*Artifact
	for _, a := range as {
		if a.Name == contract {
			found = append(found, a)
		}
	}
	switch len(found) {
	case 0:
		return nil, &CollaboratorError{Contract: name, Err: errNotFound}
	case 1:
		return found[0], nil
	}
	sources := make([]string, len(found))
	for i, a := range found {
		sources[i] = a.Source
	}
	slices.Sort(sources)
	return nil, &CollaboratorError{Contract: name, Err: fmt.Errorf("%w: %s", errAmbiguous, strings.Join(sources, ", "))}
}

// Names returns the sorted, distinct contract names.
func (as Artifacts) Names() []string {
	names := make([]string, 0, len(as))
	for _, a := range as {
		names = append(names, a.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// splitName splits "path:Name" into its source unit and contract name.
func splitName(name string) (string, string) {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
