// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification entry in the state change journal that can
// be reverted on demand.
type journalEntry interface {
	// revert undoes the changes introduced by this journal entry.
	revert(*MemoryStateDB)
}

type (
	// Changes to the account trie.
	createObjectChange struct {
		account common.Address
	}
	// resetObjectChange remembers the object replaced when an account is
	// re-created at an address that already held one.
	resetObjectChange struct {
		account common.Address
		prev    *stateObject
	}

	// Changes to individual accounts.
	balanceChange struct {
		account common.Address
		prev    uint256.Int
	}
	nonceChange struct {
		account common.Address
		prev    uint64
	}
	storageChange struct {
		account  common.Address
		key      common.Hash
		prevalue common.Hash
	}
	codeChange struct {
		account  common.Address
		prevcode []byte
		prevhash common.Hash
	}
	selfDestructChange struct {
		account     common.Address
		prev        bool // whether account had already self-destructed
		prevbalance uint256.Int
	}

	// Changes to other state values.
	refundChange struct {
		prev uint64
	}
	addLogChange struct{}

	// Changes to the access list
	accessListAddAccountChange struct {
		address common.Address
	}
	accessListAddSlotChange struct {
		address common.Address
		slot    common.Hash
	}
)

func (ch createObjectChange) revert(s *MemoryStateDB) {
	delete(s.objects, ch.account)
}

func (ch resetObjectChange) revert(s *MemoryStateDB) {
	s.objects[ch.account] = ch.prev
}

func (ch balanceChange) revert(s *MemoryStateDB) {
	s.objects[ch.account].balance = ch.prev
}

func (ch nonceChange) revert(s *MemoryStateDB) {
	s.objects[ch.account].nonce = ch.prev
}

func (ch storageChange) revert(s *MemoryStateDB) {
	s.objects[ch.account].storage[ch.key] = ch.prevalue
}

func (ch codeChange) revert(s *MemoryStateDB) {
	obj := s.objects[ch.account]
	obj.code = ch.prevcode
	obj.codeHash = ch.prevhash
}

func (ch selfDestructChange) revert(s *MemoryStateDB) {
	obj := s.objects[ch.account]
	obj.selfDestructed = ch.prev
	obj.balance = ch.prevbalance
}

func (ch refundChange) revert(s *MemoryStateDB) {
	s.refund = ch.prev
}

func (ch addLogChange) revert(s *MemoryStateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}

func (ch accessListAddAccountChange) revert(s *MemoryStateDB) {
	// One important invariant here, is that whenever a (addr, slot) is
	// added, if the addr is not already present, the add causes two
	// journal entries:
	// - one for the address,
	// - one for the (address,slot)
	// Therefore, when unrolling the change, we can always blindly delete the
	// (addr) at this point, since no storage adds can remain when come upon
	// a single (addr) change.
	s.accessList.DeleteAddress(ch.address)
}

func (ch accessListAddSlotChange) revert(s *MemoryStateDB) {
	s.accessList.DeleteSlot(ch.address, ch.slot)
}
