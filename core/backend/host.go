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
	"bytes"
	"fmt"
	"slices"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// hostState is the interpreter's view of the ledger. Reads and writes go
// straight to the ledger; every write is journaled so that a failing frame,
// or a failing message as a whole, can be rolled back.
//
// A hostState lives for exactly one message.
type hostState struct {
	ledger   *ledger.Ledger
	analyzer *analyzer
	journal  *journal

	refund    uint64
	logs      []*types.Log
	thash     common.Hash
	txIndex   int
	preimages map[common.Hash][]byte

	accessList map[common.Address]map[common.Hash]struct{}
	transient  map[common.Address]ledger.Storage

	// originals holds the value every written slot had when the message
	// started.
	originals  map[common.Address]ledger.Storage
	created    mapset.Set[common.Address]
	destructed mapset.Set[common.Address]
	touched    mapset.Set[common.Address]
}

func newHostState(l *ledger.Ledger, a *analyzer) *hostState {
	return &hostState{
		ledger:     l,
		analyzer:   a,
		journal:    newJournal(),
		preimages:  make(map[common.Hash][]byte),
		accessList: make(map[common.Address]map[common.Hash]struct{}),
		transient:  make(map[common.Address]ledger.Storage),
		originals:  make(map[common.Address]ledger.Storage),
		created:    mapset.NewThreadUnsafeSet[common.Address](),
		destructed: mapset.NewThreadUnsafeSet[common.Address](),
		touched:    mapset.NewThreadUnsafeSet[common.Address](),
	}
}

// account returns the live account at addr, or nil.
func (h *hostState) account(addr common.Address) *ledger.Account {
	if !h.ledger.Exist(addr) {
		return nil
	}
	return h.ledger.Get(addr)
}

// getOrCreate returns the live account at addr, creating it if needed. New
// accounts count as touched, so they are dropped again if they end up empty.
func (h *hostState) getOrCreate(addr common.Address) *ledger.Account {
	if acct := h.account(addr); acct != nil {
		return acct
	}
	h.journal.append(createAccountChange{account: addr})
	acct := &ledger.Account{}
	h.ledger.Put(addr, acct)
	h.touch(addr)
	return acct
}

func (h *hostState) touch(addr common.Address) {
	if h.touched.Contains(addr) {
		return
	}
	h.journal.append(touchChange{account: addr})
	h.touched.Add(addr)
}

func (h *hostState) NoTries() bool { return true }

func (h *hostState) CreateAccount(addr common.Address) {
	if prev := h.account(addr); prev != nil {
		h.journal.append(resetAccountChange{account: addr, prev: prev})
		h.ledger.Put(addr, &ledger.Account{})
		h.touch(addr)
		return
	}
	h.getOrCreate(addr)
}

func (h *hostState) CreateContract(addr common.Address) {
	if h.created.Contains(addr) {
		return
	}
	h.journal.append(createContractChange{account: addr})
	h.created.Add(addr)
}

func (h *hostState) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	acct := h.getOrCreate(addr)
	prev := *acct.Balance
	if amount.IsZero() {
		return prev
	}
	h.touch(addr)
	h.journal.append(balanceChange{account: addr, prev: prev})
	acct.Balance = new(uint256.Int).Sub(&prev, amount)
	return prev
}

func (h *hostState) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	acct := h.getOrCreate(addr)
	prev := *acct.Balance
	h.touch(addr)
	if amount.IsZero() {
		return prev
	}
	h.journal.append(balanceChange{account: addr, prev: prev})
	acct.Balance = new(uint256.Int).Add(&prev, amount)
	return prev
}

func (h *hostState) GetBalance(addr common.Address) *uint256.Int {
	if acct := h.account(addr); acct != nil {
		return acct.Balance
	}
	return new(uint256.Int)
}

func (h *hostState) SetBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) {
	acct := h.getOrCreate(addr)
	h.touch(addr)
	h.journal.append(balanceChange{account: addr, prev: *acct.Balance})
	acct.Balance = new(uint256.Int).Set(amount)
}

func (h *hostState) GetNonce(addr common.Address) uint64 {
	if acct := h.account(addr); acct != nil {
		return acct.Nonce
	}
	return 0
}

func (h *hostState) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	acct := h.getOrCreate(addr)
	h.touch(addr)
	h.journal.append(nonceChange{account: addr, prev: acct.Nonce})
	acct.Nonce = nonce
}

func (h *hostState) GetCodeHash(addr common.Address) common.Hash {
	if acct := h.account(addr); acct != nil {
		return acct.CodeHash()
	}
	return common.Hash{}
}

// GetCode returns the code at addr. Code handed to the interpreter is
// analyzed, or taken from the analysis cache, before it runs.
func (h *hostState) GetCode(addr common.Address) []byte {
	acct := h.account(addr)
	if acct == nil || len(acct.Code) == 0 {
		return nil
	}
	if h.analyzer != nil {
		h.analyzer.analyze(crypto.Keccak256Hash(acct.Code), acct.Code)
	}
	return acct.Code
}

func (h *hostState) SetCode(addr common.Address, code []byte, reason tracing.CodeChangeReason) []byte {
	acct := h.getOrCreate(addr)
	h.touch(addr)
	prev := acct.Code
	h.journal.append(codeChange{account: addr, prev: prev})
	acct.Code = common.CopyBytes(code)
	return prev
}

func (h *hostState) GetCodeSize(addr common.Address) int {
	if acct := h.account(addr); acct != nil {
		return len(acct.Code)
	}
	return 0
}

func (h *hostState) AddRefund(gas uint64) {
	h.journal.append(refundChange{prev: h.refund})
	h.refund += gas
}

func (h *hostState) SubRefund(gas uint64) {
	h.journal.append(refundChange{prev: h.refund})
	if gas > h.refund {
		panic(fmt.Sprintf("Refund counter below zero (gas: %d > refund: %d)", gas, h.refund))
	}
	h.refund -= gas
}

func (h *hostState) GetRefund() uint64 {
	return h.refund
}

// GetCommittedState returns the value the slot had when the message started.
func (h *hostState) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := h.originals[addr]; ok {
		if value, ok := slots[key]; ok {
			return value
		}
	}
	return h.ledger.GetState(addr, key)
}

func (h *hostState) GetState(addr common.Address, key common.Hash) common.Hash {
	return h.ledger.GetState(addr, key)
}

func (h *hostState) GetStateAndCommittedState(addr common.Address, key common.Hash) (common.Hash, common.Hash) {
	return h.GetState(addr, key), h.GetCommittedState(addr, key)
}

func (h *hostState) SetState(addr common.Address, key, value common.Hash) common.Hash {
	h.getOrCreate(addr)
	prev := h.ledger.GetState(addr, key)
	slots, ok := h.originals[addr]
	if !ok {
		slots = make(ledger.Storage)
		h.originals[addr] = slots
	}
	if _, ok := slots[key]; !ok {
		slots[key] = prev
	}
	if prev == value {
		return prev
	}
	h.touch(addr)
	h.journal.append(storageChange{account: addr, key: key, prev: prev})
	h.ledger.SetState(addr, key, value)
	return prev
}

// GetStorageRoot only distinguishes empty from non-empty storage; the ledger
// keeps no tries.
func (h *hostState) GetStorageRoot(addr common.Address) common.Hash {
	acct := h.account(addr)
	if acct == nil || len(acct.Storage) == 0 {
		return types.EmptyRootHash
	}
	keys := maps.Keys(acct.Storage)
	slices.SortFunc(keys, func(a, b common.Hash) int {
		return bytes.Compare(a[:], b[:])
	})
	hasher := crypto.NewKeccakState()
	for _, key := range keys {
		value := acct.Storage[key]
		hasher.Write(key[:])
		hasher.Write(value[:])
	}
	var root common.Hash
	hasher.Read(root[:])
	return root
}

func (h *hostState) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return h.transient[addr][key]
}

func (h *hostState) SetTransientState(addr common.Address, key, value common.Hash) {
	prev := h.GetTransientState(addr, key)
	if prev == value {
		return
	}
	h.journal.append(transientStorageChange{account: addr, key: key, prev: prev})
	h.setTransient(addr, key, value)
}

func (h *hostState) setTransient(addr common.Address, key, value common.Hash) {
	if value == (common.Hash{}) {
		delete(h.transient[addr], key)
		return
	}
	slots, ok := h.transient[addr]
	if !ok {
		slots = make(ledger.Storage)
		h.transient[addr] = slots
	}
	slots[key] = value
}

// SelfDestruct marks the account for deletion at the end of the message and
// zeroes its balance.
func (h *hostState) SelfDestruct(addr common.Address) uint256.Int {
	acct := h.account(addr)
	if acct == nil {
		return uint256.Int{}
	}
	prev := *acct.Balance
	if !prev.IsZero() {
		h.journal.append(balanceChange{account: addr, prev: prev})
		acct.Balance = new(uint256.Int)
	}
	if !h.destructed.Contains(addr) {
		h.journal.append(selfDestructChange{account: addr})
		h.destructed.Add(addr)
	}
	return prev
}

func (h *hostState) HasSelfDestructed(addr common.Address) bool {
	return h.destructed.Contains(addr)
}

// SelfDestruct6780 only destructs contracts created by the current message.
func (h *hostState) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	acct := h.account(addr)
	if acct == nil {
		return uint256.Int{}, false
	}
	if h.created.Contains(addr) {
		return h.SelfDestruct(addr), true
	}
	return *acct.Balance, false
}

func (h *hostState) Exist(addr common.Address) bool {
	return h.ledger.Exist(addr)
}

func (h *hostState) Empty(addr common.Address) bool {
	acct := h.account(addr)
	return acct == nil || acct.Empty()
}

func (h *hostState) AddressInAccessList(addr common.Address) bool {
	_, ok := h.accessList[addr]
	return ok
}

func (h *hostState) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk bool, slotOk bool) {
	slots, ok := h.accessList[addr]
	if !ok {
		return false, false
	}
	_, slotOk = slots[slot]
	return true, slotOk
}

func (h *hostState) AddAddressToAccessList(addr common.Address) {
	if _, ok := h.accessList[addr]; ok {
		return
	}
	h.journal.append(accessListAddAccountChange{address: addr})
	h.accessList[addr] = make(map[common.Hash]struct{})
}

func (h *hostState) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	h.AddAddressToAccessList(addr)
	if _, ok := h.accessList[addr][slot]; ok {
		return
	}
	h.journal.append(accessListAddSlotChange{address: addr, slot: slot})
	h.accessList[addr][slot] = struct{}{}
}

func (h *hostState) ClearAccessList() {
	h.accessList = make(map[common.Address]map[common.Hash]struct{})
}

// PointCache, Witness and AccessEvents are only used by stateless (verkle)
// execution, which is never enabled here.
func (h *hostState) PointCache() *utils.PointCache { return nil }

func (h *hostState) Witness() *stateless.Witness { return nil }

func (h *hostState) AccessEvents() *state.AccessEvents { return nil }

// Prepare resets the access list and transient storage for a new message.
func (h *hostState) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	h.accessList = make(map[common.Address]map[common.Hash]struct{})
	if rules.IsBerlin {
		add := func(addr common.Address) {
			if _, ok := h.accessList[addr]; !ok {
				h.accessList[addr] = make(map[common.Hash]struct{})
			}
		}
		add(sender)
		if dest != nil {
			add(*dest)
		}
		for _, addr := range precompiles {
			add(addr)
		}
		for _, el := range txAccesses {
			add(el.Address)
			for _, key := range el.StorageKeys {
				h.accessList[el.Address][key] = struct{}{}
			}
		}
		if rules.IsShanghai {
			add(coinbase)
		}
	}
	h.transient = make(map[common.Address]ledger.Storage)
}

func (h *hostState) SetTxContext(thash common.Hash, ti int) {
	h.thash, h.txIndex = thash, ti
}

func (h *hostState) TxIndex() int {
	return h.txIndex
}

func (h *hostState) Snapshot() int {
	return h.journal.snapshot()
}

func (h *hostState) RevertToSnapshot(revid int) {
	h.journal.revertToSnapshot(revid, h)
}

func (h *hostState) AddLog(log *types.Log) {
	h.journal.append(addLogChange{})
	log.TxHash = h.thash
	log.TxIndex = uint(h.txIndex)
	log.Index = uint(len(h.logs))
	h.logs = append(h.logs, log)
}

func (h *hostState) GetLogs(hash common.Hash, blockNumber uint64, blockHash common.Hash, blockTime uint64) []*types.Log {
	for _, l := range h.logs {
		l.BlockNumber = blockNumber
		l.BlockHash = blockHash
		l.BlockTimestamp = blockTime
	}
	return h.logs
}

func (h *hostState) AddPreimage(hash common.Hash, preimage []byte) {
	if _, ok := h.preimages[hash]; !ok {
		h.preimages[hash] = common.CopyBytes(preimage)
	}
}

// Finalise ends the message: self-destructed accounts are removed and, if
// requested, so are touched accounts left empty. The journal is discarded.
func (h *hostState) Finalise(deleteEmptyObjects bool) {
	for _, addr := range h.destructed.ToSlice() {
		h.ledger.Delete(addr)
	}
	if deleteEmptyObjects {
		for _, addr := range h.touched.ToSlice() {
			if acct := h.account(addr); acct != nil && acct.Empty() {
				h.ledger.Delete(addr)
			}
		}
	}
	h.journal.reset()
	h.refund = 0
	h.originals = make(map[common.Address]ledger.Storage)
	h.created.Clear()
	h.destructed.Clear()
	h.touched.Clear()
}

// IntermediateRoot finalises the message. The ledger has no state root, so
// the zero hash is returned.
func (h *hostState) IntermediateRoot(deleteEmptyObjects bool) common.Hash {
	h.Finalise(deleteEmptyObjects)
	return common.Hash{}
}
