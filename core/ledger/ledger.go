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

// Package ledger implements the in-memory account state that contracts are
// deployed into and executed against.
//
// A Ledger is created empty for every run, populated by deploy operations and
// mutated in place by every executed message. It is never persisted. The
// ledger is not safe for concurrent use; a run owns exactly one ledger and
// hands it to one execution backend at a time.
package ledger

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// Ledger maps addresses to accounts. There is at most one account per address.
type Ledger struct {
	accounts map[common.Address]*Account
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[common.Address]*Account)}
}

// Deploy inserts the account at addr, replacing whatever lived there before.
// Code, balance and nonce are taken from the arguments and storage starts out
// empty. No other address is affected.
func (l *Ledger) Deploy(addr common.Address, code []byte, balance *uint256.Int, nonce uint64) {
	l.deploy(addr, code, balance, nonce, false)
}

// DeployPreservingStorage is like Deploy but keeps the storage of an account
// already living at addr.
func (l *Ledger) DeployPreservingStorage(addr common.Address, code []byte, balance *uint256.Int, nonce uint64) {
	l.deploy(addr, code, balance, nonce, true)
}

func (l *Ledger) deploy(addr common.Address, code []byte, balance *uint256.Int, nonce uint64, keepStorage bool) {
	acct := newAccount()
	acct.Nonce = nonce
	acct.Code = common.CopyBytes(code)
	if balance != nil {
		acct.Balance.Set(balance)
	}
	if prev, ok := l.accounts[addr]; ok {
		if keepStorage {
			acct.Storage = prev.Storage.Copy()
		}
		log.Debug("Replacing ledger account", "address", addr, "oldcode", len(prev.Code), "newcode", len(code), "storage", keepStorage)
	}
	l.accounts[addr] = acct
}

// Get returns the account at addr. If there is none, a detached zero-value
// account is returned; modifying it does not insert it into the ledger.
func (l *Ledger) Get(addr common.Address) *Account {
	if acct, ok := l.accounts[addr]; ok {
		return acct
	}
	return newAccount()
}

// Exist reports whether an account lives at addr.
func (l *Ledger) Exist(addr common.Address) bool {
	_, ok := l.accounts[addr]
	return ok
}

// GetOrCreate returns the live account at addr, inserting a zero-value account
// if there is none.
func (l *Ledger) GetOrCreate(addr common.Address) *Account {
	acct, ok := l.accounts[addr]
	if !ok {
		acct = newAccount()
		l.accounts[addr] = acct
	}
	return acct
}

// Put stores acct at addr as-is, replacing any existing account.
func (l *Ledger) Put(addr common.Address, acct *Account) {
	if acct.Balance == nil {
		acct.Balance = new(uint256.Int)
	}
	if acct.Storage == nil {
		acct.Storage = make(Storage)
	}
	l.accounts[addr] = acct
}

// Delete removes the account at addr.
func (l *Ledger) Delete(addr common.Address) {
	delete(l.accounts, addr)
}

// GetState returns a storage slot of the account at addr.
func (l *Ledger) GetState(addr common.Address, key common.Hash) common.Hash {
	if acct, ok := l.accounts[addr]; ok {
		return acct.Storage[key]
	}
	return common.Hash{}
}

// SetState writes a storage slot of the account at addr, creating the account
// if needed. Writing the zero value deletes the slot.
func (l *Ledger) SetState(addr common.Address, key, value common.Hash) {
	acct := l.GetOrCreate(addr)
	if value == (common.Hash{}) {
		delete(acct.Storage, key)
		return
	}
	acct.Storage[key] = value
}

// Len returns the number of accounts.
func (l *Ledger) Len() int {
	return len(l.accounts)
}

// Addresses returns all addresses in ascending byte order.
func (l *Ledger) Addresses() []common.Address {
	addrs := maps.Keys(l.accounts)
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return addrs
}

// Copy returns a deep copy of the ledger.
func (l *Ledger) Copy() *Ledger {
	cpy := New()
	for addr, acct := range l.accounts {
		cpy.accounts[addr] = acct.Copy()
	}
	return cpy
}

// Restore makes l hold exactly the accounts of snapshot, a ledger previously
// obtained from Copy. The snapshot must not be used afterwards.
func (l *Ledger) Restore(snapshot *Ledger) {
	l.accounts = snapshot.accounts
}

// DumpAccount is the serialisable form of an account.
type DumpAccount struct {
	Balance string                      `json:"balance"`
	Nonce   uint64                      `json:"nonce"`
	Code    hexutil.Bytes               `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// Dump is the serialisable form of a ledger.
type Dump struct {
	Accounts map[common.Address]DumpAccount `json:"accounts"`
}

// Dump returns a serialisable snapshot of every account.
func (l *Ledger) Dump() Dump {
	dump := Dump{Accounts: make(map[common.Address]DumpAccount, len(l.accounts))}
	for addr, acct := range l.accounts {
		dump.Accounts[addr] = DumpAccount{
			Balance: acct.Balance.Dec(),
			Nonce:   acct.Nonce,
			Code:    common.CopyBytes(acct.Code),
			Storage: acct.Storage.Copy(),
		}
	}
	return dump
}
