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
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/program"
)

// Mstore writes data to memory at offset.
func (p *Program) Mstore(data []byte, offset int) *Program {
	p.prog.Mstore(data, uint32(offset))
	return p
}

// Return halts, returning data.
func (p *Program) Return(data []byte) *Program {
	p.prog.ReturnData(data)
	return p
}

// Revert halts with an explicit revert carrying data.
func (p *Program) Revert(data []byte) *Program {
	return p.Mstore(data, 0).Push(len(data)).Push(0).Op(vm.REVERT)
}

// ReturnSlot returns the value of a storage slot of the executing contract.
func (p *Program) ReturnSlot(slot int) *Program {
	p.Push(slot).Op(vm.SLOAD).Push(0).Op(vm.MSTORE)
	p.prog.Return(0, 32)
	return p
}

// StoreArg copies the n-th static call argument into a storage slot.
func (p *Program) StoreArg(n, slot int) *Program {
	return p.Push(4 + 32*n).Op(vm.CALLDATALOAD).Push(slot).Op(vm.SSTORE)
}

// CallSlot calls the address held in a storage slot with input as call data,
// forwarding all gas and no value. It leaves the success flag on the stack.
func (p *Program) CallSlot(slot int, input []byte) *Program {
	p.Mstore(input, 0)
	p.Push(0).Push(0)          // retSize, retOffset
	p.Push(len(input)).Push(0) // argsSize, argsOffset
	p.Push(0)                  // value
	return p.Push(slot).Op(vm.SLOAD, vm.GAS, vm.CALL)
}

// BubbleRevert reverts with the return data of the last call.
func (p *Program) BubbleRevert() *Program {
	return p.Op(vm.RETURNDATASIZE).Push(0).Push(0).Op(vm.RETURNDATACOPY).
		Op(vm.RETURNDATASIZE).Push(0).Op(vm.REVERT)
}

// Route maps a selector to the label of the function body.
type Route struct {
	Selector [4]byte
	Label    string
}

// Dispatch emits a selector switch over routes. Unknown selectors revert
// without data. Bodies are entered with the selector still on the stack.
func (p *Program) Dispatch(routes []Route) *Program {
	p.Push(0).Op(vm.CALLDATALOAD).Push(0xe0).Op(vm.SHR)
	for _, route := range routes {
		p.Op(vm.DUP1).Push(route.Selector[:]).Op(vm.EQ).JumpIf(route.Label)
	}
	return p.Push(0).Op(vm.DUP1, vm.REVERT)
}

// InitCode wraps runtime code into deployment code that copies it to memory
// and returns it.
func InitCode(runtime []byte) []byte {
	return program.New().ReturnViaCodeCopy(runtime).Bytes()
}
