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

// Package backend executes messages against a ledger.
//
// Two interchangeable engines are provided. StackBackend runs the metered
// interpreter over a throwaway state database seeded from the ledger, relying
// on the interpreter's call stack and substate snapshots for nested rollback.
// AnalyzedBackend runs the optimizing interpreter over a host view that reads
// and writes the ledger directly, with every code object analyzed once and
// cached by code hash.
package backend

import (
	"errors"
	"fmt"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrInvalidMessage = errors.New("invalid message")
)

// Kind selects between message calls and contract creations.
type Kind int

const (
	Call Kind = iota
	Create
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Create:
		return "create"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the classification of an execution.
type Status int

const (
	// Success means the code halted normally.
	Success Status = iota
	// Revert means the code executed an explicit REVERT.
	Revert
	// Failure covers every other abnormal halt: out of gas, invalid opcodes,
	// invalid jumps, state writes in a static context, call depth and
	// insufficient balance.
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Revert:
		return "Revert"
	case Failure:
		return "Failure"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s > Failure {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

// Message is a single simulated call or creation.
type Message struct {
	Kind        Kind
	Sender      common.Address
	Destination common.Address // ignored for Create
	Value       *uint256.Int   // nil means zero
	Input       []byte         // call data, or init code for Create
	Gas         uint64
	Depth       int
	Static      bool
}

// Outcome is the result of executing a message.
type Outcome struct {
	Status  Status
	Output  []byte
	GasUsed uint64

	// Err is the engine's halt reason for Revert and Failure outcomes.
	Err error

	// Created is the address of the new contract for successful Create
	// messages.
	Created common.Address
}

// Backend executes messages against a ledger. Engine halts are reported
// through Outcome.Status; the error return is reserved for messages that
// cannot be executed at all.
//
// A successful message leaves all its effects, including those of nested
// calls, in the ledger. A message that does not succeed leaves the ledger
// exactly as it was.
type Backend interface {
	Name() string
	Execute(l *ledger.Ledger, msg *Message) (*Outcome, error)
}

// New creates the backend with the given name.
func New(name string, cfg Config) (Backend, error) {
	switch name {
	case StackName:
		return NewStack(cfg), nil
	case AnalyzedName:
		return NewAnalyzed(cfg)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, name)
}

// Names lists the available backends.
func Names() []string {
	return []string{StackName, AnalyzedName}
}

func validate(l *ledger.Ledger, msg *Message) error {
	switch {
	case l == nil:
		return fmt.Errorf("%w: nil ledger", ErrInvalidMessage)
	case msg == nil:
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	case msg.Kind != Call && msg.Kind != Create:
		return fmt.Errorf("%w: %v", ErrInvalidMessage, msg.Kind)
	case msg.Kind == Create && msg.Static:
		return fmt.Errorf("%w: static create", ErrInvalidMessage)
	case msg.Depth < 0:
		return fmt.Errorf("%w: negative depth %d", ErrInvalidMessage, msg.Depth)
	}
	return nil
}
