// Copyright 2014 The go-ethereum Authors
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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

type storage map[common.Hash]common.Hash

func (s storage) Copy() storage {
	cpy := make(storage, len(s))
	for key, value := range s {
		cpy[key] = value
	}
	return cpy
}

// stateObject is an account under modification.
type stateObject struct {
	nonce    uint64
	balance  uint256.Int
	code     []byte
	codeHash common.Hash

	// storage holds the current values, origin the values at the start of
	// the transaction. GetCommittedState reads origin.
	storage storage
	origin  storage

	selfDestructed bool
}

func newStateObject() *stateObject {
	return &stateObject{
		codeHash: types.EmptyCodeHash,
		storage:  make(storage),
		origin:   make(storage),
	}
}

// MemoryStateDB is a map-backed, journaled world state. Every mutation is
// recorded in the journal so that any prefix of the transaction can be
// unwound with RevertToSnapshot. It is the state backend for the runtime
// entry points and the test suites; it is not safe for concurrent use.
type MemoryStateDB struct {
	objects map[common.Address]*stateObject

	refund uint64
	logs   []*types.Log

	accessList *accessList

	// The journal holds one entry per mutation since the start of the
	// transaction. A snapshot is simply a journal length.
	journal []journalEntry

	dbErr error
}

// New returns an empty in-memory world state.
func New() *MemoryStateDB {
	return &MemoryStateDB{
		objects:    make(map[common.Address]*stateObject),
		accessList: newAccessList(),
	}
}

// setError remembers the first non-nil error it is called with.
func (s *MemoryStateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the memorized database failure occurred earlier.
func (s *MemoryStateDB) Error() error {
	return s.dbErr
}

func (s *MemoryStateDB) append(entry journalEntry) {
	s.journal = append(s.journal, entry)
}

func (s *MemoryStateDB) getObject(addr common.Address) *stateObject {
	return s.objects[addr]
}

func (s *MemoryStateDB) getOrNewObject(addr common.Address) *stateObject {
	obj := s.objects[addr]
	if obj == nil {
		obj = newStateObject()
		s.objects[addr] = obj
		s.append(createObjectChange{account: addr})
	}
	return obj
}

// CreateAccount explicitly creates a new state object, overwriting any
// storage the address may have held. Balance carries over, matching the
// behavior of account resurrection during creation.
func (s *MemoryStateDB) CreateAccount(addr common.Address) {
	prev := s.objects[addr]
	obj := newStateObject()
	if prev != nil {
		obj.balance = prev.balance
		s.append(resetObjectChange{account: addr, prev: prev})
	} else {
		s.append(createObjectChange{account: addr})
	}
	s.objects[addr] = obj
}

// SubBalance subtracts amount from the account associated with addr.
func (s *MemoryStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() && s.getObject(addr) == nil {
		return
	}
	obj := s.getOrNewObject(addr)
	s.append(balanceChange{account: addr, prev: obj.balance})
	obj.balance.Sub(&obj.balance, amount)
}

// AddBalance adds amount to the account associated with addr.
func (s *MemoryStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() && s.getObject(addr) == nil {
		return
	}
	obj := s.getOrNewObject(addr)
	s.append(balanceChange{account: addr, prev: obj.balance})
	obj.balance.Add(&obj.balance, amount)
}

// SetBalance overwrites the account balance, creating the account if needed.
// It is intended for test and genesis setup.
func (s *MemoryStateDB) SetBalance(addr common.Address, amount *uint256.Int) {
	obj := s.getOrNewObject(addr)
	s.append(balanceChange{account: addr, prev: obj.balance})
	obj.balance.Set(amount)
}

func (s *MemoryStateDB) GetBalance(addr common.Address) *uint256.Int {
	if obj := s.getObject(addr); obj != nil {
		return new(uint256.Int).Set(&obj.balance)
	}
	return new(uint256.Int)
}

func (s *MemoryStateDB) GetNonce(addr common.Address) uint64 {
	if obj := s.getObject(addr); obj != nil {
		return obj.nonce
	}
	return 0
}

func (s *MemoryStateDB) SetNonce(addr common.Address, nonce uint64) {
	obj := s.getOrNewObject(addr)
	s.append(nonceChange{account: addr, prev: obj.nonce})
	obj.nonce = nonce
}

func (s *MemoryStateDB) GetCodeHash(addr common.Address) common.Hash {
	if obj := s.getObject(addr); obj != nil {
		return obj.codeHash
	}
	return common.Hash{}
}

func (s *MemoryStateDB) GetCode(addr common.Address) []byte {
	if obj := s.getObject(addr); obj != nil {
		return obj.code
	}
	return nil
}

func (s *MemoryStateDB) SetCode(addr common.Address, code []byte) {
	obj := s.getOrNewObject(addr)
	s.append(codeChange{account: addr, prevcode: obj.code, prevhash: obj.codeHash})
	obj.code = code
	obj.codeHash = crypto.Keccak256Hash(code)
}

func (s *MemoryStateDB) GetCodeSize(addr common.Address) int {
	if obj := s.getObject(addr); obj != nil {
		return len(obj.code)
	}
	return 0
}

// AddRefund adds gas to the refund counter
func (s *MemoryStateDB) AddRefund(gas uint64) {
	s.append(refundChange{prev: s.refund})
	s.refund += gas
}

// SubRefund removes gas from the refund counter.
// This method will panic if the refund counter goes below zero
func (s *MemoryStateDB) SubRefund(gas uint64) {
	s.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic(fmt.Sprintf("Refund counter below zero (gas: %d > refund: %d)", gas, s.refund))
	}
	s.refund -= gas
}

// GetRefund returns the current value of the refund counter.
func (s *MemoryStateDB) GetRefund() uint64 {
	return s.refund
}

// GetCommittedState retrieves the value of a slot as it was at the start of
// the transaction.
func (s *MemoryStateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	if obj := s.getObject(addr); obj != nil {
		return obj.origin[key]
	}
	return common.Hash{}
}

func (s *MemoryStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if obj := s.getObject(addr); obj != nil {
		return obj.storage[key]
	}
	return common.Hash{}
}

func (s *MemoryStateDB) SetState(addr common.Address, key, value common.Hash) {
	obj := s.getOrNewObject(addr)
	s.append(storageChange{account: addr, key: key, prevalue: obj.storage[key]})
	obj.storage[key] = value
}

// SetStorage overwrites a committed slot, bypassing the journal. It is
// intended for test and genesis setup only.
func (s *MemoryStateDB) SetStorage(addr common.Address, key, value common.Hash) {
	obj := s.getOrNewObject(addr)
	obj.storage[key] = value
	obj.origin[key] = value
}

// SelfDestruct marks the account for destruction at the end of the
// transaction and clears its balance.
func (s *MemoryStateDB) SelfDestruct(addr common.Address) {
	obj := s.getObject(addr)
	if obj == nil {
		return
	}
	s.append(selfDestructChange{
		account:     addr,
		prev:        obj.selfDestructed,
		prevbalance: obj.balance,
	})
	obj.selfDestructed = true
	obj.balance.Clear()
}

func (s *MemoryStateDB) HasSelfDestructed(addr common.Address) bool {
	if obj := s.getObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// Exist reports whether the given account exists in state. Notably this also
// returns true for self-destructed accounts, which are removed only at the
// end of the transaction.
func (s *MemoryStateDB) Exist(addr common.Address) bool {
	return s.getObject(addr) != nil
}

// Empty returns whether the account is considered empty: no balance, no
// nonce, no code.
func (s *MemoryStateDB) Empty(addr common.Address) bool {
	obj := s.getObject(addr)
	if obj == nil {
		return true
	}
	return obj.nonce == 0 && obj.balance.IsZero() && len(obj.code) == 0
}

// AddressInAccessList returns true if the given address is in the access list.
func (s *MemoryStateDB) AddressInAccessList(addr common.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

// SlotInAccessList returns true if the given (address, slot)-tuple is in the access list.
func (s *MemoryStateDB) SlotInAccessList(addr common.Address, slot common.Hash) (addressPresent bool, slotPresent bool) {
	return s.accessList.Contains(addr, slot)
}

// AddAddressToAccessList adds the given address to the access list
func (s *MemoryStateDB) AddAddressToAccessList(addr common.Address) {
	if s.accessList.AddAddress(addr) {
		s.append(accessListAddAccountChange{address: addr})
	}
}

// AddSlotToAccessList adds the given (address, slot)-tuple to the access list
func (s *MemoryStateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	addrMod, slotMod := s.accessList.AddSlot(addr, slot)
	if addrMod {
		// In practice, this should not happen, since there is no way to enter the
		// scope of 'address' without having the 'address' become already added
		// to the access list (via call-variant, create, etc).
		// Better safe than sorry, though
		s.append(accessListAddAccountChange{address: addr})
	}
	if slotMod {
		s.append(accessListAddSlotChange{address: addr, slot: slot})
	}
}

// Snapshot returns an identifier for the current revision of the state.
func (s *MemoryStateDB) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *MemoryStateDB) RevertToSnapshot(revid int) {
	if revid < 0 || revid > len(s.journal) {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	for i := len(s.journal) - 1; i >= revid; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:revid]
}

// AddLog appends a log record emitted by the running contract.
func (s *MemoryStateDB) AddLog(log *types.Log) {
	s.append(addLogChange{})
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

// Logs returns the logs accumulated so far.
func (s *MemoryStateDB) Logs() []*types.Log {
	return s.logs
}

// Finalise clears transaction-scoped bookkeeping: self-destructed accounts
// are removed, committed storage catches up with current storage, and the
// refund counter, journal and access list reset. Call it between
// transactions.
func (s *MemoryStateDB) Finalise() {
	for addr, obj := range s.objects {
		if obj.selfDestructed {
			delete(s.objects, addr)
			continue
		}
		obj.origin = obj.storage.Copy()
	}
	s.refund = 0
	s.journal = s.journal[:0]
	s.accessList = newAccessList()
}
