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
	"fmt"
	"sort"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification of the host state that can be undone.
type journalEntry interface {
	revert(*hostState)
}

type revision struct {
	id           int
	journalIndex int
}

// journal records every write made through the host so that the writes of a
// failed frame can be rolled back without touching the rest.
type journal struct {
	entries        []journalEntry
	validRevisions []revision
	nextRevisionID int
}

func newJournal() *journal {
	return new(journal)
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

func (j *journal) snapshot() int {
	id := j.nextRevisionID
	j.nextRevisionID++
	j.validRevisions = append(j.validRevisions, revision{id, j.length()})
	return id
}

func (j *journal) revertToSnapshot(revid int, h *hostState) {
	idx := sort.Search(len(j.validRevisions), func(i int) bool {
		return j.validRevisions[i].id >= revid
	})
	if idx == len(j.validRevisions) || j.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	index := j.validRevisions[idx].journalIndex
	for i := len(j.entries) - 1; i >= index; i-- {
		j.entries[i].revert(h)
	}
	j.entries = j.entries[:index]
	j.validRevisions = j.validRevisions[:idx]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
	j.validRevisions = j.validRevisions[:0]
	j.nextRevisionID = 0
}

type (
	// Account lifecycle.
	createAccountChange struct {
		account common.Address
	}
	resetAccountChange struct {
		account common.Address
		prev    *ledger.Account
	}
	createContractChange struct {
		account common.Address
	}
	selfDestructChange struct {
		account common.Address
	}
	touchChange struct {
		account common.Address
	}

	// Account fields.
	balanceChange struct {
		account common.Address
		prev    uint256.Int
	}
	nonceChange struct {
		account common.Address
		prev    uint64
	}
	codeChange struct {
		account common.Address
		prev    []byte
	}
	storageChange struct {
		account   common.Address
		key, prev common.Hash
	}

	// Message scoped values.
	refundChange struct {
		prev uint64
	}
	addLogChange               struct{}
	accessListAddAccountChange struct {
		address common.Address
	}
	accessListAddSlotChange struct {
		address common.Address
		slot    common.Hash
	}
	transientStorageChange struct {
		account   common.Address
		key, prev common.Hash
	}
)

func (ch createAccountChange) revert(h *hostState) {
	h.ledger.Delete(ch.account)
}

func (ch resetAccountChange) revert(h *hostState) {
	h.ledger.Put(ch.account, ch.prev)
}

func (ch createContractChange) revert(h *hostState) {
	h.created.Remove(ch.account)
}

func (ch selfDestructChange) revert(h *hostState) {
	h.destructed.Remove(ch.account)
}

func (ch touchChange) revert(h *hostState) {
	h.touched.Remove(ch.account)
}

func (ch balanceChange) revert(h *hostState) {
	h.ledger.Get(ch.account).Balance = new(uint256.Int).Set(&ch.prev)
}

func (ch nonceChange) revert(h *hostState) {
	h.ledger.Get(ch.account).Nonce = ch.prev
}

func (ch codeChange) revert(h *hostState) {
	h.ledger.Get(ch.account).Code = ch.prev
}

func (ch storageChange) revert(h *hostState) {
	h.ledger.SetState(ch.account, ch.key, ch.prev)
}

func (ch refundChange) revert(h *hostState) {
	h.refund = ch.prev
}

func (ch addLogChange) revert(h *hostState) {
	h.logs = h.logs[:len(h.logs)-1]
}

func (ch accessListAddAccountChange) revert(h *hostState) {
	delete(h.accessList, ch.address)
}

func (ch accessListAddSlotChange) revert(h *hostState) {
	delete(h.accessList[ch.address], ch.slot)
}

func (ch transientStorageChange) revert(h *hostState) {
	h.setTransient(ch.account, ch.key, ch.prev)
}
