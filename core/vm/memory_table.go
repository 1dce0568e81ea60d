// Copyright 2017 The go-ethereum Authors
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
	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

func memoryKeccak256(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]))
}

func memoryCallDataCopy(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[2]))
}

func memoryReturnDataCopy(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[2]))
}

func memoryCodeCopy(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[2]))
}

func memoryExtCodeCopy(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[1]), frame.Regs.Get(inst.Args[3]))
}

func memoryMLoad(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64WithUint(frame.Regs.Get(inst.Args[0]), 32)
}

func memoryMStore8(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64WithUint(frame.Regs.Get(inst.Args[0]), 1)
}

func memoryMStore(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64WithUint(frame.Regs.Get(inst.Args[0]), 32)
}

func memoryCreate(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[1]), frame.Regs.Get(inst.Args[2]))
}

func memoryCreate2(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[1]), frame.Regs.Get(inst.Args[2]))
}

func memoryCall(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	x, overflow := calcMemSize64(frame.Regs.Get(inst.Args[5]), frame.Regs.Get(inst.Args[6]))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(frame.Regs.Get(inst.Args[3]), frame.Regs.Get(inst.Args[4]))
	if overflow {
		return 0, true
	}
	if x > y {
		return x, false
	}
	return y, false
}

func memoryDelegateCall(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	x, overflow := calcMemSize64(frame.Regs.Get(inst.Args[4]), frame.Regs.Get(inst.Args[5]))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(frame.Regs.Get(inst.Args[2]), frame.Regs.Get(inst.Args[3]))
	if overflow {
		return 0, true
	}
	if x > y {
		return x, false
	}
	return y, false
}

func memoryStaticCall(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return memoryDelegateCall(frame, inst)
}

func memoryReturn(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]))
}

func memoryRevert(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]))
}

func memoryLog(frame *Frame, inst *compiler.Instruction) (uint64, bool) {
	return calcMemSize64(frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]))
}
