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
	"testing"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hostAddr  = common.HexToAddress("0xaa")
	otherAddr = common.HexToAddress("0xbb")
)

func newTestHost(t *testing.T) (*hostState, *ledger.Ledger) {
	t.Helper()
	a, err := newAnalyzer(4)
	require.NoError(t, err)
	l := ledger.New()
	l.Deploy(hostAddr, []byte{0x00}, uint256.NewInt(100), 1)
	l.SetState(hostAddr, common.Hash{1}, common.Hash{0x01})
	return newHostState(l, a), l
}

func TestHostRevertToSnapshot(t *testing.T) {
	h, l := newTestHost(t)
	before := l.Copy()

	snap := h.Snapshot()
	h.SetState(hostAddr, common.Hash{1}, common.Hash{0x02})
	h.SetState(hostAddr, common.Hash{2}, common.Hash{0x03})
	h.AddBalance(hostAddr, uint256.NewInt(5), tracing.BalanceChangeUnspecified)
	h.SetNonce(hostAddr, 7, tracing.NonceChangeUnspecified)
	h.CreateAccount(otherAddr)
	h.SetCode(otherAddr, []byte{0x01, 0x02}, tracing.CodeChangeUnspecified)
	h.AddRefund(10)

	assert.Equal(t, common.Hash{0x02}, l.GetState(hostAddr, common.Hash{1}))
	assert.True(t, l.Exist(otherAddr))
	// The committed value is the one the message started with.
	assert.Equal(t, common.Hash{0x01}, h.GetCommittedState(hostAddr, common.Hash{1}))

	h.RevertToSnapshot(snap)
	assert.Equal(t, before.Dump(), l.Dump())
	assert.Zero(t, h.GetRefund())
}

func TestHostNestedSnapshots(t *testing.T) {
	h, l := newTestHost(t)

	outer := h.Snapshot()
	h.SetState(hostAddr, common.Hash{1}, common.Hash{0x10})
	inner := h.Snapshot()
	h.SetState(hostAddr, common.Hash{1}, common.Hash{0x20})

	h.RevertToSnapshot(inner)
	assert.Equal(t, common.Hash{0x10}, l.GetState(hostAddr, common.Hash{1}))

	h.RevertToSnapshot(outer)
	assert.Equal(t, common.Hash{0x01}, l.GetState(hostAddr, common.Hash{1}))

	assert.Panics(t, func() { h.RevertToSnapshot(inner) })
}

func TestHostTransientStorage(t *testing.T) {
	h, _ := newTestHost(t)

	snap := h.Snapshot()
	h.SetTransientState(hostAddr, common.Hash{1}, common.Hash{0x42})
	assert.Equal(t, common.Hash{0x42}, h.GetTransientState(hostAddr, common.Hash{1}))
	h.RevertToSnapshot(snap)
	assert.Equal(t, common.Hash{}, h.GetTransientState(hostAddr, common.Hash{1}))
}

func TestHostFinaliseDropsEmptyTouched(t *testing.T) {
	h, l := newTestHost(t)

	// A zero-value transfer to a fresh address creates an empty account.
	h.AddBalance(otherAddr, new(uint256.Int), tracing.BalanceChangeTransfer)
	require.True(t, l.Exist(otherAddr))

	h.Finalise(true)
	assert.False(t, l.Exist(otherAddr))
	assert.True(t, l.Exist(hostAddr))
}

func TestHostSelfDestruct(t *testing.T) {
	h, l := newTestHost(t)

	h.SelfDestruct(hostAddr)
	assert.True(t, h.HasSelfDestructed(hostAddr))
	assert.True(t, h.GetBalance(hostAddr).IsZero())
	assert.True(t, l.Exist(hostAddr), "account lives until the message is finalised")

	h.Finalise(true)
	assert.False(t, l.Exist(hostAddr))
}

func TestHostGetCodeAnalyzes(t *testing.T) {
	h, l := newTestHost(t)

	assert.Equal(t, []byte{0x00}, h.GetCode(hostAddr))
	_, ok := h.analyzer.get(l.Get(hostAddr).CodeHash())
	assert.True(t, ok)
	assert.Empty(t, h.GetCode(otherAddr))
	assert.Equal(t, 1, h.analyzer.len())
}
