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

// Package evmasm builds contract bytecode for tests. Instructions are emitted
// by the engine's program builder; this package adds named labels that may be
// referenced before they are defined, and selector dispatch.
package evmasm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/program"
)

// labelSize is the width of label references. Every program built here stays
// below 64KiB.
const labelSize = 2

type fixup struct {
	pos   int
	label string
}

// Program accumulates bytecode. Methods return the program so calls can be
// chained; errors are reported by Bytes.
type Program struct {
	prog   *program.Program
	labels map[string]int
	fixups []fixup
	err    error
}

// New returns an empty program.
func New() *Program {
	return &Program{prog: program.New(), labels: make(map[string]int)}
}

// Op appends raw opcodes.
func (p *Program) Op(ops ...vm.OpCode) *Program {
	p.prog.Op(ops...)
	return p
}

// Push appends the shortest PUSHn of the value of v. Byte slices are read as
// big-endian numbers, so leading zeros are dropped. PUSH0 is never emitted so
// the output runs on pre-Shanghai rules as well.
func (p *Program) Push(v interface{}) *Program {
	if b, ok := v.([]byte); ok && len(b) > 32 {
		p.fail(fmt.Errorf("push of %d bytes", len(b)))
		return p
	}
	p.emit(func() { p.prog.Push(v) })
	return p
}

// emit runs a builder call, turning its panics into a program error.
func (p *Program) emit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(fmt.Errorf("%v", r))
		}
	}()
	fn()
}

// Label marks the current position as a jump destination.
func (p *Program) Label(name string) *Program {
	p.Mark(name)
	p.prog.Jumpdest()
	return p
}

// Mark records the current position under name without emitting anything.
// It is used for data offsets, e.g. the start of runtime code in init code.
func (p *Program) Mark(name string) *Program {
	if _, ok := p.labels[name]; ok {
		p.fail(fmt.Errorf("duplicate label %q", name))
		return p
	}
	p.labels[name] = int(p.prog.Label())
	return p
}

// PushLabel pushes the position of a label, which may be defined later.
func (p *Program) PushLabel(name string) *Program {
	p.prog.Op(vm.PUSH2)
	p.fixups = append(p.fixups, fixup{pos: p.prog.Size(), label: name})
	p.prog.Append(make([]byte, labelSize))
	return p
}

// Jump jumps unconditionally to a label.
func (p *Program) Jump(name string) *Program {
	return p.PushLabel(name).Op(vm.JUMP)
}

// JumpIf jumps to a label if the top stack item is non-zero.
func (p *Program) JumpIf(name string) *Program {
	return p.PushLabel(name).Op(vm.JUMPI)
}

// Append appends raw bytes, typically data following the executable code.
func (p *Program) Append(data []byte) *Program {
	p.prog.Append(data)
	return p
}

// Len returns the current code size.
func (p *Program) Len() int {
	return p.prog.Size()
}

func (p *Program) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Bytes resolves label references and returns a copy of the code.
func (p *Program) Bytes() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	code := common.CopyBytes(p.prog.Bytes())
	for _, f := range p.fixups {
		pos, ok := p.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		if pos >= 1<<(8*labelSize) {
			return nil, fmt.Errorf("label %q out of range: %d", f.label, pos)
		}
		code[f.pos] = byte(pos >> 8)
		code[f.pos+1] = byte(pos)
	}
	return code, nil
}

// MustBytes is like Bytes but panics on error.
func (p *Program) MustBytes() []byte {
	code, err := p.Bytes()
	if err != nil {
		panic(err)
	}
	return code
}
