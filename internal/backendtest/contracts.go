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

package backendtest

import (
	"math/big"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/WilfredTA/evmodin-test/internal/evmasm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

var (
	// CalleeAddress hosts the Callee contract.
	CalleeAddress = common.HexToAddress("0x1000000000000000000000000000000000000000")

	// CallerAddress hosts the Caller contract, which holds the tests.
	CallerAddress = common.HexToAddress("0x2000000000000000000000000000000000000000")

	// Sender is the origin of every test message.
	Sender = common.Address{}
)

const (
	// DefaultNonce and DefaultBalance are given to every deployed fixture.
	DefaultNonce   = 1
	DefaultBalance = 10_000_000

	// DefaultGas is the gas budget of fixture messages.
	DefaultGas = 15_000_000
)

// Storage layout of the fixtures.
const (
	TargetSlot    = 0 // Caller: address set by setCalleeTarget
	SetUpSlot     = 1 // Caller: set to 1 by setUp
	BeforeSlot    = 2 // Caller: written before the nested call in callAndSurvive
	NestedErrSlot = 3 // Caller: 1 when the nested call in callAndSurvive failed
	StoreSlot     = 0 // Callee: written by store(uint256)
	RevertedSlot  = 5 // Callee: written by writeAndRevert before it reverts
)

// Boom is the revert reason of the failing fixtures.
const Boom = "boom"

func sel(sig string) []byte {
	return abicodec.SelectorOf(sig).Bytes()
}

func stop(p *evmasm.Program) { p.Op(vm.STOP) }

// Callee is the contract deployed at CalleeAddress. It is the target of the
// nested calls made by Caller and of direct backend tests.
func Callee() evmasm.Contract {
	return evmasm.MustBuild("Callee", []evmasm.Function{
		{Signature: "ping()", Body: stop},
		{Signature: "fail()", Body: func(p *evmasm.Program) {
			p.Revert(abicodec.EncodeErrorString(Boom))
		}},
		{Signature: "writeAndRevert()", Body: func(p *evmasm.Program) {
			p.Push(1).Push(RevertedSlot).Op(vm.SSTORE)
			p.Push(0).Push(0).Op(vm.REVERT)
		}},
		{Signature: "store(uint256)", Body: func(p *evmasm.Program) {
			p.StoreArg(0, StoreSlot).Op(vm.STOP)
		}},
		{Signature: "load()", Body: func(p *evmasm.Program) {
			p.ReturnSlot(StoreSlot)
		}},
		{Signature: "loop()", Body: func(p *evmasm.Program) {
			p.Label("callee_loop").Jump("callee_loop")
		}},
		{Signature: "invalid()", Body: func(p *evmasm.Program) {
			p.Op(vm.INVALID)
		}},
	})
}

// Caller is the contract deployed at CallerAddress. Its test functions all
// pass once setCalleeTarget(CalleeAddress) has been applied.
func Caller() evmasm.Contract {
	return evmasm.MustBuild("Caller", []evmasm.Function{
		{Signature: "setUp()", Body: func(p *evmasm.Program) {
			p.Push(1).Push(SetUpSlot).Op(vm.SSTORE, vm.STOP)
		}},
		{Signature: "setCalleeTarget(address)", Body: func(p *evmasm.Program) {
			p.StoreArg(0, TargetSlot).Op(vm.STOP)
		}},
		{Signature: "calleeTarget()", Body: func(p *evmasm.Program) {
			p.ReturnSlot(TargetSlot)
		}},
		{Signature: "testFoo()", Body: stop},
		{Signature: "testFailFoo()", Body: func(p *evmasm.Program) {
			p.Revert(abicodec.EncodeErrorString(Boom))
		}},
		{Signature: "testSetUpRan()", Body: func(p *evmasm.Program) {
			p.Push(SetUpSlot).Op(vm.SLOAD).JumpIf("setup_ok")
			p.Revert(abicodec.EncodeErrorString("setUp not run"))
			p.Label("setup_ok").Op(vm.STOP)
		}},
		{Signature: "testCallsTarget()", Body: func(p *evmasm.Program) {
			p.CallSlot(TargetSlot, sel("ping()")).JumpIf("call_ok")
			p.Revert(abicodec.EncodeErrorString("nested call failed"))
			p.Label("call_ok").Op(vm.STOP)
		}},
		{Signature: "testFailBubblesRevert()", Body: func(p *evmasm.Program) {
			p.CallSlot(TargetSlot, sel("fail()")).Op(vm.POP).BubbleRevert()
		}},
		{Signature: "callAndSurvive()", Body: func(p *evmasm.Program) {
			p.Push(0x11).Push(BeforeSlot).Op(vm.SSTORE)
			p.CallSlot(TargetSlot, sel("writeAndRevert()"))
			p.Op(vm.ISZERO).Push(NestedErrSlot).Op(vm.SSTORE, vm.STOP)
		}},
	})
}

// Edge holds test functions whose classification is surprising: the first
// returns normally but is expected to revert because its name contains
// "testFail", the others halt abnormally instead of reverting.
func Edge() evmasm.Contract {
	return evmasm.MustBuild("Edge", []evmasm.Function{
		{Signature: "testRuntestFailover()", Body: stop},
		{Signature: "testFailOutOfGas()", Body: func(p *evmasm.Program) {
			p.Label("edge_loop").Jump("edge_loop")
		}},
		{Signature: "testFailInvalid()", Body: func(p *evmasm.Program) {
			p.Op(vm.INVALID)
		}},
	})
}

// Deploy installs Callee and Caller at their addresses with the default
// balance and nonce.
func Deploy(l *ledger.Ledger) {
	balance := uint256.NewInt(DefaultBalance)
	l.Deploy(CalleeAddress, Callee().Runtime, balance, DefaultNonce)
	l.Deploy(CallerAddress, Caller().Runtime, balance, DefaultNonce)
}

// SetTarget wires the Caller to the Callee directly in storage, bypassing
// execution.
func SetTarget(l *ledger.Ledger) {
	l.SetState(CallerAddress, Slot(TargetSlot), common.BytesToHash(CalleeAddress.Bytes()))
}

// Slot returns the storage key of a numbered slot.
func Slot(n int) common.Hash {
	return common.BigToHash(big.NewInt(int64(n)))
}
