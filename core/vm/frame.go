// Copyright 2015 The go-ethereum Authors
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

package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

// ContractRef is a reference to the contract's backing object
type ContractRef interface {
	Address() common.Address
}

// AccountRef implements ContractRef.
//
// Account references are used during EVM initialisation and
// its primary use is to fetch addresses. Removing this object
// proves difficult because of the cached jump destinations which
// are fetched from the parent contract (i.e. the caller), which
// is a ContractRef.
type AccountRef common.Address

// Address casts AccountRef to an Address
func (ar AccountRef) Address() common.Address { return (common.Address)(ar) }

// Frame is one activation of a contract: its translated program, register
// file, memory and remaining gas. It fills the role the stack machine's
// contract-plus-stack pair would have.
type Frame struct {
	// CallerAddress is the result of the caller which initialised this
	// frame. However when the "call method" is delegated this value
	// needs to be initialised to that of the caller's caller.
	CallerAddress common.Address
	caller        ContractRef
	self          ContractRef

	Program  *compiler.Program
	CodeHash common.Hash
	Input    []byte

	Regs   *RegisterFile
	Memory *Memory

	Gas   uint64
	value *uint256.Int
}

// NewFrame returns a new frame environment for the execution of EVM.
func NewFrame(caller ContractRef, object ContractRef, value *uint256.Int, gas uint64) *Frame {
	f := &Frame{
		CallerAddress: caller.Address(),
		caller:        caller,
		self:          object,
		value:         value,
		Gas:           gas,
		Memory:        NewMemory(),
	}
	if value == nil {
		f.value = new(uint256.Int)
	}
	return f
}

// SetProgram attaches the translated program and sizes the register file
// for it.
func (f *Frame) SetProgram(program *compiler.Program, codeHash common.Hash) {
	f.Program = program
	f.CodeHash = codeHash
	f.Regs = NewRegisterFile(program.MaxRegisters)
}

// AsDelegate sets the frame to be a delegate call and returns the frame
// (for chaining).
func (f *Frame) AsDelegate() *Frame {
	// NOTE: caller must, at all times be a contract. It should never happen
	// that caller is something other than a Frame.
	parent := f.caller.(*Frame)
	f.CallerAddress = parent.CallerAddress
	f.value = parent.value
	return f
}

// UseGas attempts the use gas and subtracts it and returns true on success
func (f *Frame) UseGas(gas uint64) bool {
	if f.Gas < gas {
		return false
	}
	f.Gas -= gas
	return true
}

// RefundGas returns gas to the frame, used when a child call leaves some of
// its allowance unspent.
func (f *Frame) RefundGas(gas uint64) {
	f.Gas += gas
}

// Address returns the frame's executing address
func (f *Frame) Address() common.Address {
	return f.self.Address()
}

// Caller returns the caller of the frame.
//
// Caller will recursively call caller when the frame is a delegate
// call, including that of caller's caller.
func (f *Frame) Caller() common.Address {
	return f.CallerAddress
}

// Value returns the frame's value (sent to it from its caller)
func (f *Frame) Value() *uint256.Int {
	return f.value
}
