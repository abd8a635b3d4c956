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

package ledger

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Storage is the key/value store of a single account.
type Storage map[common.Hash]common.Hash

// Copy returns a deep copy of the storage.
func (s Storage) Copy() Storage {
	cpy := make(Storage, len(s))
	for key, value := range s {
		cpy[key] = value
	}
	return cpy
}

// Account is the state of one address in the ledger. Code is set at deploy
// time (or by a contract creation) and storage is only written by executing
// the account's own code.
type Account struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
	Storage Storage
}

// newAccount returns the zero-value account: nonce 0, balance 0, no code and
// empty storage.
func newAccount() *Account {
	return &Account{
		Balance: new(uint256.Int),
		Storage: make(Storage),
	}
}

// CodeHash returns the keccak256 hash of the account code, or the empty code
// hash for accounts without code.
func (a *Account) CodeHash() common.Hash {
	if len(a.Code) == 0 {
		return types.EmptyCodeHash
	}
	return crypto.Keccak256Hash(a.Code)
}

// Empty reports whether the account is empty according to EIP-161.
func (a *Account) Empty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && len(a.Code) == 0
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	cpy := &Account{
		Nonce:   a.Nonce,
		Balance: new(uint256.Int),
		Code:    common.CopyBytes(a.Code),
		Storage: a.Storage.Copy(),
	}
	if a.Balance != nil {
		cpy.Balance.Set(a.Balance)
	}
	return cpy
}

// Equal reports whether two accounts hold identical state. Zero-valued storage
// slots are treated as absent.
func (a *Account) Equal(b *Account) bool {
	if a.Nonce != b.Nonce || a.Balance.Cmp(b.Balance) != 0 || !bytes.Equal(a.Code, b.Code) {
		return false
	}
	for key, value := range a.Storage {
		if b.Storage[key] != value {
			return false
		}
	}
	for key, value := range b.Storage {
		if a.Storage[key] != value {
			return false
		}
	}
	return true
}
