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

package vm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

// Interpreter executes translated programs block by block. Within a block it
// charges and runs register instructions in bytecode order; at block exits it
// applies the canonicalizing shuffle and transfers control.
type Interpreter struct {
	evm   *EVM
	table JumpTable

	hasher    crypto.KeccakState // Keccak256 hasher instance shared across opcodes
	hasherBuf common.Hash        // Keccak256 hasher result array shared across opcodes

	readOnly   bool   // Whether to throw on stateful modifications
	returnData []byte // Last CALL's return data for subsequent reuse
}

// NewInterpreter returns a new instance of the Interpreter.
func NewInterpreter(evm *EVM) *Interpreter {
	return &Interpreter{evm: evm, table: newInstructionSet()}
}

// Run executes the frame's program with the given input and returns the
// return byte-slice and an error if one occurred.
//
// It's important to note that any errors returned by the interpreter should
// be considered a revert-and-consume-all-gas operation except for
// ErrExecutionReverted which means revert-and-keep-gas-left.
func (in *Interpreter) Run(frame *Frame, input []byte, readOnly bool) (ret []byte, err error) {
	// Increment the call depth which is restricted to 1024
	in.evm.depth++
	defer func() { in.evm.depth-- }()

	// Make sure the readOnly is only set if we aren't in readOnly yet.
	// This also makes sure that the readOnly flag isn't removed for child calls.
	if readOnly && !in.readOnly {
		in.readOnly = true
		defer func() { in.readOnly = false }()
	}

	// Reset the previous call's return data. It's unimportant to preserve the old buffer
	// as every returning call will return new data anyway.
	in.returnData = nil

	block := frame.Program.EntryBlock()
	if block == nil {
		// Don't bother with the execution if there's no code.
		return nil, nil
	}
	frame.Input = input

	for {
		// A block statically known to break the stack bounds fails the
		// frame the moment it is entered.
		if block.Fault != nil {
			return nil, block.Fault
		}
		for i := range block.Instrs {
			inst := &block.Instrs[i]
			op := in.table[inst.Op]
			if op == nil {
				return nil, &ErrInvalidOpCode{opcode: OpCode(inst.Op)}
			}
			if !frame.UseGas(op.constantGas) {
				return nil, ErrOutOfGas
			}
			// All operations with a dynamic memory usage compute the
			// required size before the dynamic gas portion is charged, so
			// that the expansion cost is part of the same charge.
			var memorySize uint64
			if op.memorySize != nil {
				memSize, overflow := op.memorySize(frame, inst)
				if overflow {
					return nil, ErrGasUintOverflow
				}
				// memory is expanded in words of 32 bytes. Gas
				// is also calculated in words.
				if memorySize, overflow = math.SafeMul(toWordSize(memSize), 32); overflow {
					return nil, ErrGasUintOverflow
				}
			}
			if op.dynamicGas != nil {
				dynamicCost, gerr := op.dynamicGas(in.evm, frame, inst, frame.Memory, memorySize)
				if gerr != nil {
					return nil, fmt.Errorf("%w: %v", ErrOutOfGas, gerr)
				}
				if !frame.UseGas(dynamicCost) {
					return nil, ErrOutOfGas
				}
			}
			if memorySize > 0 {
				frame.Memory.Resize(memorySize)
			}
			res, xerr := op.execute(in, frame, inst)
			if xerr != nil {
				if xerr == errStopToken {
					return res, nil
				}
				return res, xerr
			}
		}
		// A nested call may have surfaced a backing-store failure; those
		// abort the transaction instead of reverting the frame.
		if serr := in.evm.StateDB.Error(); serr != nil {
			return nil, &FatalError{Err: serr}
		}

		// Exit operands live in registers that the shuffle below may
		// overwrite, so they are read first.
		switch block.Exit {
		case compiler.ExitFallthrough:
			frame.Regs.Shuffle(block.Shuffle)
			next, terr := in.transfer(frame, block.Next, block.ExitDepth)
			if terr != nil {
				return nil, terr
			}
			if next == nil {
				return nil, nil // control ran off the end of the code
			}
			block = next

		case compiler.ExitJump:
			if !frame.UseGas(GasMidStep) {
				return nil, ErrOutOfGas
			}
			target := *frame.Regs.Get(block.TargetReg)
			frame.Regs.Shuffle(block.Shuffle)
			next, jerr := in.jump(frame, &target, block.ExitDepth)
			if jerr != nil {
				return nil, jerr
			}
			block = next

		case compiler.ExitCondJump:
			if !frame.UseGas(GasSlowStep) {
				return nil, ErrOutOfGas
			}
			target := *frame.Regs.Get(block.TargetReg)
			cond := *frame.Regs.Get(block.CondReg)
			frame.Regs.Shuffle(block.Shuffle)
			if cond.IsZero() {
				next, terr := in.transfer(frame, block.Next, block.ExitDepth)
				if terr != nil {
					return nil, terr
				}
				if next == nil {
					return nil, nil
				}
				block = next
			} else {
				next, jerr := in.jump(frame, &target, block.ExitDepth)
				if jerr != nil {
					return nil, jerr
				}
				block = next
			}

		default: // compiler.ExitTerminal
			// Terminal blocks end in an instruction that stops the frame,
			// so reaching this point means an implicit STOP.
			return nil, nil
		}
	}
}

// transfer resolves the block entered at pc with the given stack depth and
// makes sure the frame's register file is large enough for it. Blocks only
// reachable through computed jumps are translated here, on first arrival.
// Growing the file is safe at this point: no operand pointers are live
// across a block boundary.
func (in *Interpreter) transfer(frame *Frame, pc uint64, depth int) (*compiler.Block, error) {
	next, err := frame.Program.BlockFor(pc, depth)
	if err != nil {
		return nil, err
	}
	if next != nil {
		frame.Regs.Grow(next.Registers())
	}
	return next, nil
}

// jump resolves a register-held jump target. The destination must be a
// JUMPDEST block entered at the stack depth the jump arrives with.
func (in *Interpreter) jump(frame *Frame, target *uint256.Int, depth int) (*compiler.Block, error) {
	if !frame.Program.ValidJumpdest(target) {
		return nil, ErrInvalidJump
	}
	next, err := in.transfer(frame, target.Uint64(), depth)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, ErrInvalidJump
	}
	return next, nil
}
