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
	"errors"
	"math/big"
	"testing"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/WilfredTA/evmodin-test/internal/backendtest"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/opcodeCompiler/compiler"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, name string, cfg Config) Backend {
	t.Helper()
	b, err := New(name, cfg)
	require.NoError(t, err)
	require.Equal(t, name, b.Name())
	return b
}

// newTestLedger deploys both fixtures and points the caller at the callee.
func newTestLedger() *ledger.Ledger {
	l := ledger.New()
	backendtest.Deploy(l)
	backendtest.SetTarget(l)
	return l
}

func callMsg(t *testing.T, to common.Address, sig string, args ...interface{}) *Message {
	t.Helper()
	input, err := abicodec.EncodeCall(sig, args...)
	require.NoError(t, err)
	return &Message{
		Kind:        Call,
		Sender:      backendtest.Sender,
		Destination: to,
		Input:       input,
		Gas:         backendtest.DefaultGas,
	}
}

func execute(t *testing.T, b Backend, l *ledger.Ledger, msg *Message) *Outcome {
	t.Helper()
	out, err := b.Execute(l, msg)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func requireUnchanged(t *testing.T, want, have *ledger.Ledger) {
	t.Helper()
	require.Equal(t, want.Dump(), have.Dump(), "ledger modified:\n%s", spew.Sdump(have.Dump()))
}

func TestCallWritesStorage(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()

			out := execute(t, b, l, callMsg(t, backendtest.CalleeAddress, "store(uint256)", uint64(42)))
			require.Equal(t, Success, out.Status, "err: %v", out.Err)
			assert.NoError(t, out.Err)
			assert.NotZero(t, out.GasUsed)
			assert.Equal(t, common.BigToHash(big.NewInt(42)), l.GetState(backendtest.CalleeAddress, backendtest.Slot(backendtest.StoreSlot)))

			out = execute(t, b, l, callMsg(t, backendtest.CalleeAddress, "load()"))
			require.Equal(t, Success, out.Status)
			assert.Equal(t, common.LeftPadBytes([]byte{42}, 32), out.Output)
		})
	}
}

func TestExplicitRevert(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()
			before := l.Copy()

			out := execute(t, b, l, callMsg(t, backendtest.CalleeAddress, "fail()"))
			require.Equal(t, Revert, out.Status)
			assert.ErrorIs(t, out.Err, vm.ErrExecutionReverted)

			reason, err := abicodec.DecodeRevertReason(out.Output)
			require.NoError(t, err)
			assert.Equal(t, backendtest.Boom, reason)
			requireUnchanged(t, before, l)
		})
	}
}

func TestNestedFailureRollsBackInnerFrameOnly(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()

			out := execute(t, b, l, callMsg(t, backendtest.CallerAddress, "callAndSurvive()"))
			require.Equal(t, Success, out.Status, "err: %v", out.Err)

			// The outer frame's writes before and after the call survive.
			assert.Equal(t, common.BigToHash(big.NewInt(0x11)), l.GetState(backendtest.CallerAddress, backendtest.Slot(backendtest.BeforeSlot)))
			assert.Equal(t, common.BigToHash(common.Big1), l.GetState(backendtest.CallerAddress, backendtest.Slot(backendtest.NestedErrSlot)))
			// The reverted frame's write does not.
			assert.Equal(t, common.Hash{}, l.GetState(backendtest.CalleeAddress, backendtest.Slot(backendtest.RevertedSlot)))
		})
	}
}

func TestFailedMessageLeavesLedgerUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		msg    func(t *testing.T) *Message
		status Status
		err    error
	}{
		{
			name: "out of gas",
			msg: func(t *testing.T) *Message {
				m := callMsg(t, backendtest.CalleeAddress, "loop()")
				m.Gas = 50_000
				return m
			},
			status: Failure,
			err:    vm.ErrOutOfGas,
		},
		{
			name:   "invalid opcode",
			msg:    func(t *testing.T) *Message { return callMsg(t, backendtest.CalleeAddress, "invalid()") },
			status: Failure,
		},
		{
			name:   "unknown selector",
			msg:    func(t *testing.T) *Message { return callMsg(t, backendtest.CalleeAddress, "missing()") },
			status: Revert,
			err:    vm.ErrExecutionReverted,
		},
		{
			name: "insufficient balance",
			msg: func(t *testing.T) *Message {
				m := callMsg(t, backendtest.CalleeAddress, "ping()")
				m.Value = uint256.NewInt(1)
				return m
			},
			status: Failure,
			err:    vm.ErrInsufficientBalance,
		},
		{
			name: "nested revert bubbled up",
			msg: func(t *testing.T) *Message {
				return callMsg(t, backendtest.CallerAddress, "testFailBubblesRevert()")
			},
			status: Revert,
			err:    vm.ErrExecutionReverted,
		},
	}
	for _, name := range backendtest.Backends() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				b, l := newTestBackend(t, name, Config{}), newTestLedger()
				before := l.Copy()

				msg := tt.msg(t)
				out := execute(t, b, l, msg)
				require.Equal(t, tt.status, out.Status, "err: %v", out.Err)
				require.Error(t, out.Err)
				if tt.err != nil {
					assert.True(t, errors.Is(out.Err, tt.err), "have %v, want %v", out.Err, tt.err)
				}
				if tt.status == Failure && tt.err == vm.ErrOutOfGas {
					assert.Equal(t, msg.Gas, out.GasUsed)
				}
				requireUnchanged(t, before, l)
			})
		}
	}
}

func TestStaticMessage(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()
			before := l.Copy()

			msg := callMsg(t, backendtest.CalleeAddress, "store(uint256)", uint64(7))
			msg.Static = true
			out := execute(t, b, l, msg)
			require.Equal(t, Failure, out.Status)
			assert.ErrorIs(t, out.Err, vm.ErrWriteProtection)
			requireUnchanged(t, before, l)

			msg = callMsg(t, backendtest.CallerAddress, "calleeTarget()")
			msg.Static = true
			out = execute(t, b, l, msg)
			require.Equal(t, Success, out.Status)
			assert.Equal(t, common.LeftPadBytes(backendtest.CalleeAddress.Bytes(), 32), out.Output)
		})
	}
}

func TestDepthLimit(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()
			before := l.Copy()

			msg := callMsg(t, backendtest.CalleeAddress, "store(uint256)", uint64(1))
			msg.Depth = 1025
			out := execute(t, b, l, msg)
			require.Equal(t, Failure, out.Status)
			assert.ErrorIs(t, out.Err, vm.ErrDepth)
			assert.Zero(t, out.GasUsed)
			requireUnchanged(t, before, l)
		})
	}
}

func TestValueTransfer(t *testing.T) {
	sender := common.HexToAddress("0x3000000000000000000000000000000000000000")
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()
			l.Deploy(sender, nil, uint256.NewInt(1000), 0)

			msg := callMsg(t, backendtest.CalleeAddress, "ping()")
			msg.Sender = sender
			msg.Value = uint256.NewInt(100)
			out := execute(t, b, l, msg)
			require.Equal(t, Success, out.Status, "err: %v", out.Err)

			assert.Equal(t, uint64(900), l.Get(sender).Balance.Uint64())
			assert.Equal(t, uint64(backendtest.DefaultBalance+100), l.Get(backendtest.CalleeAddress).Balance.Uint64())
		})
	}
}

func TestCreate(t *testing.T) {
	callee := backendtest.Callee()
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), ledger.New()

			out := execute(t, b, l, &Message{Kind: Create, Sender: backendtest.Sender, Input: callee.Init, Gas: backendtest.DefaultGas})
			require.Equal(t, Success, out.Status, "err: %v", out.Err)
			assert.Equal(t, crypto.CreateAddress(backendtest.Sender, 0), out.Created)
			assert.Equal(t, callee.Runtime, out.Output)

			acct := l.Get(out.Created)
			assert.Equal(t, callee.Runtime, acct.Code)
			assert.Equal(t, uint64(1), acct.Nonce)
			assert.Equal(t, uint64(1), l.Get(backendtest.Sender).Nonce)

			// The new contract is callable.
			out = execute(t, b, l, callMsg(t, out.Created, "ping()"))
			assert.Equal(t, Success, out.Status)
		})
	}
}

func TestFailedCreate(t *testing.T) {
	init := backendtest.Callee().Runtime // reverts: no selector matches empty call data
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), newTestLedger()
			before := l.Copy()

			out := execute(t, b, l, &Message{Kind: Create, Sender: backendtest.Sender, Input: init, Gas: backendtest.DefaultGas})
			require.Equal(t, Revert, out.Status)
			assert.Equal(t, common.Address{}, out.Created)
			requireUnchanged(t, before, l)
		})
	}
}

func TestInvalidMessages(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			b, l := newTestBackend(t, name, Config{}), ledger.New()

			_, err := b.Execute(l, nil)
			assert.ErrorIs(t, err, ErrInvalidMessage)
			_, err = b.Execute(nil, &Message{})
			assert.ErrorIs(t, err, ErrInvalidMessage)
			_, err = b.Execute(l, &Message{Kind: Create, Static: true})
			assert.ErrorIs(t, err, ErrInvalidMessage)
			_, err = b.Execute(l, &Message{Kind: Kind(7)})
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
	_, err := New("bogus", Config{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

// Both backends must leave identical ledgers behind for the same messages.
func TestBackendsAgree(t *testing.T) {
	script := []struct {
		to  common.Address
		sig string
	}{
		{backendtest.CallerAddress, "setUp()"},
		{backendtest.CallerAddress, "testCallsTarget()"},
		{backendtest.CallerAddress, "callAndSurvive()"},
		{backendtest.CallerAddress, "testFailFoo()"},
		{backendtest.CalleeAddress, "writeAndRevert()"},
		{backendtest.CalleeAddress, "invalid()"},
	}
	var (
		ledgers  []*ledger.Ledger
		statuses [][]Status
		outputs  [][]string
	)
	for _, name := range Names() {
		b, l := newTestBackend(t, name, Config{}), newTestLedger()
		var (
			st  []Status
			out []string
		)
		for _, step := range script {
			res := execute(t, b, l, callMsg(t, step.to, step.sig))
			st = append(st, res.Status)
			out = append(out, common.Bytes2Hex(res.Output))
		}
		ledgers = append(ledgers, l)
		statuses = append(statuses, st)
		outputs = append(outputs, out)
	}
	assert.Equal(t, []Status{Success, Success, Success, Revert, Revert, Failure}, statuses[0])
	for i := 1; i < len(ledgers); i++ {
		assert.Equal(t, statuses[0], statuses[i])
		assert.Equal(t, outputs[0], outputs[i])
		requireUnchanged(t, ledgers[0], ledgers[i])
	}
}

func TestTracerPassthrough(t *testing.T) {
	for _, name := range backendtest.Backends() {
		t.Run(name, func(t *testing.T) {
			var enters, exits int
			tracer := &tracing.Hooks{
				OnEnter: func(depth int, typ byte, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
					enters++
				},
				OnExit: func(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
					exits++
				},
			}
			b, l := newTestBackend(t, name, Config{Tracer: tracer}), newTestLedger()

			out := execute(t, b, l, callMsg(t, backendtest.CallerAddress, "callAndSurvive()"))
			require.Equal(t, Success, out.Status)
			assert.Equal(t, 2, enters)
			assert.Equal(t, 2, exits)
			assert.Equal(t, common.BigToHash(big.NewInt(0x11)), l.GetState(backendtest.CallerAddress, backendtest.Slot(backendtest.BeforeSlot)))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "Revert", Revert.String())
	assert.Equal(t, "Failure", Failure.String())
	assert.Equal(t, "Status(9)", Status(9).String())

	text, err := Revert.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Revert", string(text))
	_, err = Status(9).MarshalText()
	assert.Error(t, err)

	assert.Equal(t, Success, classify(nil))
	assert.Equal(t, Revert, classify(vm.ErrExecutionReverted))
	assert.Equal(t, Failure, classify(vm.ErrOutOfGas))
	assert.Equal(t, Failure, classify(vm.ErrWriteProtection))
}

func TestAnalyzedCache(t *testing.T) {
	b, err := NewAnalyzed(Config{CacheSize: 8})
	require.NoError(t, err)
	l := newTestLedger()

	out := execute(t, b, l, callMsg(t, backendtest.CallerAddress, "testCallsTarget()"))
	require.Equal(t, Success, out.Status, "err: %v", out.Err)
	// Caller and the nested Callee.
	assert.Equal(t, 2, b.Cached())

	callee := l.Get(backendtest.CalleeAddress)
	analysis, ok := b.Analysis(callee.CodeHash())
	require.True(t, ok)
	assert.Equal(t, callee.Code, analysis.Code)
	require.NotNil(t, analysis.Optimized, "err: %v", analysis.Err)
	assert.Equal(t, analysis.Optimized, compiler.LoadOptimizedCode(callee.CodeHash()))

	execute(t, b, l, callMsg(t, backendtest.CallerAddress, "testCallsTarget()"))
	assert.Equal(t, 2, b.Cached())

	_, ok = b.Analysis(common.Hash{1})
	assert.False(t, ok)
}
