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

package backend

import (
	"math/big"
	"time"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// StackName is the name of the metered call-stack backend.
const StackName = "stack"

// StackBackend executes every message on a fresh state database seeded from
// the ledger. Nested frames are isolated by the database's own journal; the
// ledger is only written once the whole message has succeeded.
type StackBackend struct {
	cfg Config
}

// NewStack creates a metered call-stack backend.
func NewStack(cfg Config) *StackBackend {
	cfg.setDefaults()
	return &StackBackend{cfg: cfg}
}

func (b *StackBackend) Name() string { return StackName }

// Execute implements Backend.
func (b *StackBackend) Execute(l *ledger.Ledger, msg *Message) (*Outcome, error) {
	if err := validate(l, msg); err != nil {
		return nil, err
	}
	defer stackExecuteTimer.UpdateSince(time.Now())

	statedb, err := seed(l)
	if err != nil {
		return nil, err
	}
	touched := newTouchSet()
	touched.addAccount(msg.Sender)
	if msg.Kind == Call {
		touched.addAccount(msg.Destination)
	}
	evm := newEVM(&b.cfg, statedb, msg, vm.Config{Tracer: touched.hooks(b.cfg.Tracer)})
	prepare(&b.cfg, statedb, msg)

	ret, leftOver, created, err := run(evm, msg)
	out := newOutcome(msg, ret, leftOver, created, err)
	if out.Status == Success {
		commit(l, statedb, touched)
	}
	countStatus(out.Status)
	return out, nil
}

// seed copies the ledger into an in-memory state database. The seeded values
// become the committed state, so storage gas is charged against them.
func seed(l *ledger.Ledger) (*state.StateDB, error) {
	statedb, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, err
	}
	for _, addr := range l.Addresses() {
		acct := l.Get(addr)
		statedb.CreateAccount(addr)
		statedb.SetNonce(addr, acct.Nonce, tracing.NonceChangeUnspecified)
		statedb.SetBalance(addr, acct.Balance, tracing.BalanceChangeUnspecified)
		if len(acct.Code) > 0 {
			statedb.SetCode(addr, acct.Code, tracing.CodeChangeGenesis)
		}
		for key, value := range acct.Storage {
			statedb.SetState(addr, key, value)
		}
	}
	statedb.IntermediateRoot(false)
	return statedb, nil
}

// commit writes every account the message touched back into the ledger.
func commit(l *ledger.Ledger, statedb *state.StateDB, touched *touchSet) {
	statedb.Finalise(true)
	for addr, slots := range touched.accounts {
		if !statedb.Exist(addr) {
			l.Delete(addr)
			continue
		}
		acct := l.GetOrCreate(addr)
		acct.Nonce = statedb.GetNonce(addr)
		acct.Balance = new(uint256.Int).Set(statedb.GetBalance(addr))
		acct.Code = common.CopyBytes(statedb.GetCode(addr))
		for key := range slots {
			l.SetState(addr, key, statedb.GetState(addr, key))
		}
	}
}

// touchSet collects the accounts and storage slots a message may have
// modified, as observed through the tracing hooks.
type touchSet struct {
	accounts map[common.Address]map[common.Hash]struct{}
}

func newTouchSet() *touchSet {
	return &touchSet{accounts: make(map[common.Address]map[common.Hash]struct{})}
}

func (t *touchSet) addAccount(addr common.Address) map[common.Hash]struct{} {
	slots, ok := t.accounts[addr]
	if !ok {
		slots = make(map[common.Hash]struct{})
		t.accounts[addr] = slots
	}
	return slots
}

func (t *touchSet) addSlot(addr common.Address, key common.Hash) {
	t.addAccount(addr)[key] = struct{}{}
}

// hooks returns tracing hooks that record touched state and forward every
// event to user, if set.
func (t *touchSet) hooks(user *tracing.Hooks) *tracing.Hooks {
	hooks := new(tracing.Hooks)
	if user != nil {
		*hooks = *user
	}
	onEnter, onOpcode := hooks.OnEnter, hooks.OnOpcode

	hooks.OnEnter = func(depth int, typ byte, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
		t.addAccount(from)
		t.addAccount(to)
		if onEnter != nil {
			onEnter(depth, typ, from, to, input, gas, value)
		}
	}
	hooks.OnOpcode = func(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
		if vm.OpCode(op) == vm.SSTORE {
			stack := scope.StackData()
			if len(stack) > 0 {
				t.addSlot(scope.Address(), common.Hash(stack[len(stack)-1].Bytes32()))
			}
		}
		if onOpcode != nil {
			onOpcode(pc, op, gas, cost, scope, rData, depth, err)
		}
	}
	return hooks
}
