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
	"errors"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

// The execution functions below read their operands from the frame's register
// file. The register allocator may hand an instruction a destination register
// that is also one of its sources, so every function reads all scalar operand
// values before writing its destination. The uint256 operations themselves
// are alias safe.

func opAdd(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Add(x, y)
	return nil, nil
}

func opSub(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Sub(x, y)
	return nil, nil
}

func opMul(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Mul(x, y)
	return nil, nil
}

func opDiv(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Div(x, y)
	return nil, nil
}

func opSdiv(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).SDiv(x, y)
	return nil, nil
}

func opMod(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Mod(x, y)
	return nil, nil
}

func opSmod(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).SMod(x, y)
	return nil, nil
}

func opExp(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	base, exponent := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Exp(base, exponent)
	return nil, nil
}

func opSignExtend(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	back, num := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).ExtendSign(num, back)
	return nil, nil
}

func opNot(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).Not(frame.Regs.Get(inst.Args[0]))
	return nil, nil
}

func opLt(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	lt := x.Lt(y)
	dst := frame.Regs.Get(inst.Dst)
	if lt {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opGt(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	gt := x.Gt(y)
	dst := frame.Regs.Get(inst.Dst)
	if gt {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opSlt(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	slt := x.Slt(y)
	dst := frame.Regs.Get(inst.Dst)
	if slt {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opSgt(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	sgt := x.Sgt(y)
	dst := frame.Regs.Get(inst.Dst)
	if sgt {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opEq(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	eq := x.Eq(y)
	dst := frame.Regs.Get(inst.Dst)
	if eq {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opIszero(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	zero := frame.Regs.Get(inst.Args[0]).IsZero()
	dst := frame.Regs.Get(inst.Dst)
	if zero {
		dst.SetOne()
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opAnd(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).And(x, y)
	return nil, nil
}

func opOr(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Or(x, y)
	return nil, nil
}

func opXor(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Regs.Get(inst.Dst).Xor(x, y)
	return nil, nil
}

func opByte(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	th, val := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	i := *th // the destination register may alias th
	frame.Regs.Get(inst.Dst).Set(val).Byte(&i)
	return nil, nil
}

func opAddmod(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y, z := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]), frame.Regs.Get(inst.Args[2])
	frame.Regs.Get(inst.Dst).AddMod(x, y, z)
	return nil, nil
}

func opMulmod(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x, y, z := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1]), frame.Regs.Get(inst.Args[2])
	frame.Regs.Get(inst.Dst).MulMod(x, y, z)
	return nil, nil
}

// opSHL implements Shift Left
// The SHL instruction (shift left) pops 2 values from the stack, first arg1 and then arg2,
// and pushes on the stack arg2 shifted to the left by arg1 number of bits.
func opSHL(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	shift, value := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	dst := frame.Regs.Get(inst.Dst)
	if shift.LtUint64(256) {
		dst.Lsh(value, uint(shift.Uint64()))
	} else {
		dst.Clear()
	}
	return nil, nil
}

// opSHR implements Logical Shift Right
// The SHR instruction (logical shift right) pops 2 values from the stack, first arg1 and then arg2,
// and pushes on the stack arg2 shifted to the right by arg1 number of bits with zero fill.
func opSHR(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	shift, value := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	dst := frame.Regs.Get(inst.Dst)
	if shift.LtUint64(256) {
		dst.Rsh(value, uint(shift.Uint64()))
	} else {
		dst.Clear()
	}
	return nil, nil
}

// opSAR implements Arithmetic Shift Right
// The SAR instruction (arithmetic shift right) pops 2 values from the stack, first arg1 and then arg2,
// and pushes on the stack arg2 shifted to the right by arg1 number of bits with sign extension.
func opSAR(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	shift, value := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	dst := frame.Regs.Get(inst.Dst)
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			dst.Clear()
		} else {
			// Max negative shift: all bits set
			dst.SetAllOne()
		}
		return nil, nil
	}
	n := uint(shift.Uint64())
	dst.SRsh(value, n)
	return nil, nil
}

func opKeccak256(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	offset, size := frame.Regs.Get(inst.Args[0]).Uint64(), frame.Regs.Get(inst.Args[1]).Uint64()
	data := frame.Memory.GetPtr(offset, size)

	if in.hasher == nil {
		in.hasher = crypto.NewKeccakState()
	} else {
		in.hasher.Reset()
	}
	in.hasher.Write(data)
	in.hasher.Read(in.hasherBuf[:])

	frame.Regs.Get(inst.Dst).SetBytes(in.hasherBuf[:])
	return nil, nil
}

func opAddress(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetBytes(frame.Address().Bytes())
	return nil, nil
}

func opBalance(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	address := common.Address(frame.Regs.Get(inst.Args[0]).Bytes20())
	frame.Regs.Get(inst.Dst).Set(in.evm.StateDB.GetBalance(address))
	return nil, nil
}

func opOrigin(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetBytes(in.evm.Origin.Bytes())
	return nil, nil
}

func opCaller(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetBytes(frame.Caller().Bytes())
	return nil, nil
}

func opCallValue(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).Set(frame.Value())
	return nil, nil
}

func opCallDataLoad(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	x := frame.Regs.Get(inst.Args[0])
	dst := frame.Regs.Get(inst.Dst)
	if offset, overflow := x.Uint64WithOverflow(); !overflow {
		data := getData(frame.Input, offset, 32)
		dst.SetBytes(data)
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opCallDataSize(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(uint64(len(frame.Input)))
	return nil, nil
}

func opCallDataCopy(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	var (
		memOffset  = frame.Regs.Get(inst.Args[0])
		dataOffset = frame.Regs.Get(inst.Args[1])
		length     = frame.Regs.Get(inst.Args[2])
	)
	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}
	// These values are checked for overflow during gas cost calculation
	memOffset64 := memOffset.Uint64()
	length64 := length.Uint64()
	frame.Memory.Set(memOffset64, length64, getData(frame.Input, dataOffset64, length64))
	return nil, nil
}

func opReturnDataSize(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(uint64(len(in.returnData)))
	return nil, nil
}

func opReturnDataCopy(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	var (
		memOffset  = frame.Regs.Get(inst.Args[0])
		dataOffset = frame.Regs.Get(inst.Args[1])
		length     = frame.Regs.Get(inst.Args[2])
	)

	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return nil, ErrReturnDataOutOfBounds
	}
	// we can reuse dataOffset now (aliasing it for clarity)
	var end = new(uint256.Int).Add(dataOffset, length)
	end64, overflow := end.Uint64WithOverflow()
	if overflow || uint64(len(in.returnData)) < end64 {
		return nil, ErrReturnDataOutOfBounds
	}
	frame.Memory.Set(memOffset.Uint64(), length.Uint64(), in.returnData[offset64:end64])
	return nil, nil
}

func opExtCodeSize(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	address := common.Address(frame.Regs.Get(inst.Args[0]).Bytes20())
	frame.Regs.Get(inst.Dst).SetUint64(uint64(in.evm.StateDB.GetCodeSize(address)))
	return nil, nil
}

func opCodeSize(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(uint64(len(frame.Program.Code)))
	return nil, nil
}

func opCodeCopy(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	var (
		memOffset  = frame.Regs.Get(inst.Args[0])
		codeOffset = frame.Regs.Get(inst.Args[1])
		length     = frame.Regs.Get(inst.Args[2])
	)
	uint64CodeOffset, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		uint64CodeOffset = math.MaxUint64
	}
	codeCopy := getData(frame.Program.Code, uint64CodeOffset, length.Uint64())
	frame.Memory.Set(memOffset.Uint64(), length.Uint64(), codeCopy)
	return nil, nil
}

func opExtCodeCopy(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	var (
		address    = common.Address(frame.Regs.Get(inst.Args[0]).Bytes20())
		memOffset  = frame.Regs.Get(inst.Args[1])
		codeOffset = frame.Regs.Get(inst.Args[2])
		length     = frame.Regs.Get(inst.Args[3])
	)
	uint64CodeOffset, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		uint64CodeOffset = math.MaxUint64
	}
	codeCopy := getData(in.evm.StateDB.GetCode(address), uint64CodeOffset, length.Uint64())
	frame.Memory.Set(memOffset.Uint64(), length.Uint64(), codeCopy)
	return nil, nil
}

// opExtCodeHash returns the code hash of a specified account.
// There are several cases when the function is called, while we can relay everything
// to `state.GetCodeHash` function to ensure the correctness.
//
//  1. Caller tries to get the code hash of a normal contract account, state
//     should return the relative code hash and set it as the result.
//
//  2. Caller tries to get the code hash of a non-existent account, state should
//     return common.Hash{} and zero will be set as the result.
//
//  3. Caller tries to get the code hash for an account without contract code, state
//     should return emptyCodeHash(0xc5d246...) as the result.
//
//  4. Caller tries to get the code hash of a precompiled account, the result should be
//     zero or emptyCodeHash.
//
//  5. Caller tries to get the code hash for an account which is marked as self-destructed
//     in the current transaction, the code hash of this account should be returned.
//
//  6. Caller tries to get the code hash for an account which is marked as deleted, this
//     account should be regarded as a non-existent account and zero should be returned.
func opExtCodeHash(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	address := common.Address(frame.Regs.Get(inst.Args[0]).Bytes20())
	dst := frame.Regs.Get(inst.Dst)
	if in.evm.StateDB.Empty(address) {
		dst.Clear()
	} else {
		dst.SetBytes(in.evm.StateDB.GetCodeHash(address).Bytes())
	}
	return nil, nil
}

func opGasprice(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	v, _ := uint256.FromBig(in.evm.GasPrice)
	frame.Regs.Get(inst.Dst).Set(v)
	return nil, nil
}

func opBlockhash(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	num := frame.Regs.Get(inst.Args[0])
	num64, overflow := num.Uint64WithOverflow()
	dst := frame.Regs.Get(inst.Dst)
	if overflow {
		dst.Clear()
		return nil, nil
	}
	var upper, lower uint64
	upper = in.evm.Context.BlockNumber.Uint64()
	if upper < 257 {
		lower = 0
	} else {
		lower = upper - 256
	}
	if num64 >= lower && num64 < upper {
		res := in.evm.Context.GetHash(num64)
		dst.SetBytes(res[:])
	} else {
		dst.Clear()
	}
	return nil, nil
}

func opCoinbase(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetBytes(in.evm.Context.Coinbase.Bytes())
	return nil, nil
}

func opTimestamp(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(in.evm.Context.Time)
	return nil, nil
}

func opNumber(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	v, _ := uint256.FromBig(in.evm.Context.BlockNumber)
	frame.Regs.Get(inst.Dst).Set(v)
	return nil, nil
}

func opRandom(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetBytes(in.evm.Context.Random.Bytes())
	return nil, nil
}

func opGasLimit(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(in.evm.Context.GasLimit)
	return nil, nil
}

func opChainID(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	chainId, _ := uint256.FromBig(in.evm.ChainID())
	frame.Regs.Get(inst.Dst).Set(chainId)
	return nil, nil
}

func opSelfBalance(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).Set(in.evm.StateDB.GetBalance(frame.Address()))
	return nil, nil
}

// opBaseFee implements BASEFEE opcode
func opBaseFee(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	baseFee, _ := uint256.FromBig(in.evm.Context.BaseFee)
	frame.Regs.Get(inst.Dst).Set(baseFee)
	return nil, nil
}

func opMload(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	offset := frame.Regs.Get(inst.Args[0]).Uint64()
	frame.Regs.Get(inst.Dst).SetBytes(frame.Memory.GetPtr(offset, 32))
	return nil, nil
}

func opMstore(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	mStart, val := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Memory.Set32(mStart.Uint64(), val)
	return nil, nil
}

func opMstore8(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	off, val := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	frame.Memory.store[off.Uint64()] = byte(val.Uint64())
	return nil, nil
}

func opSload(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	loc := frame.Regs.Get(inst.Args[0])
	hash := common.Hash(loc.Bytes32())
	val := in.evm.StateDB.GetState(frame.Address(), hash)
	frame.Regs.Get(inst.Dst).SetBytes(val.Bytes())
	return nil, nil
}

func opSstore(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	loc := frame.Regs.Get(inst.Args[0])
	val := frame.Regs.Get(inst.Args[1])
	in.evm.StateDB.SetState(frame.Address(), loc.Bytes32(), val.Bytes32())
	return nil, nil
}

func opPc(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(inst.PC)
	return nil, nil
}

func opMsize(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(uint64(frame.Memory.Len()))
	return nil, nil
}

func opGas(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	frame.Regs.Get(inst.Dst).SetUint64(frame.Gas)
	return nil, nil
}

// opPush loads the instruction's immediate into its destination register.
// It covers PUSH0 through PUSH32.
func opPush(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	if inst.Immediate != nil {
		frame.Regs.Get(inst.Dst).Set(inst.Immediate)
	} else {
		frame.Regs.Get(inst.Dst).Clear()
	}
	return nil, nil
}

// opNoop covers the opcodes whose data movement the translator resolved to
// registers (POP, DUP, SWAP) and JUMPDEST. The instructions remain in the
// program solely to anchor their gas charge at the original position.
func opNoop(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	return nil, nil
}

func opCreate(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	var (
		value  = new(uint256.Int).Set(frame.Regs.Get(inst.Args[0]))
		offset = frame.Regs.Get(inst.Args[1]).Uint64()
		size   = frame.Regs.Get(inst.Args[2]).Uint64()
		input  = frame.Memory.GetCopy(offset, size)
		gas    = frame.Gas
	)
	// Apply EIP150: the caller keeps a 64th of its remaining gas.
	gas -= gas / 64
	frame.UseGas(gas)

	res, addr, returnGas, suberr := in.evm.Create(frame, input, gas, value)
	if IsFatal(suberr) {
		return nil, suberr
	}
	// Push item on the stack based on the returned error. If the ruleset is
	// homestead we must check for CodeStoreOutOfGasError (homestead only
	// rule) and treat as an error, if the ruleset is frontier we must
	// ignore this error and pretend the operation was successful.
	dst := frame.Regs.Get(inst.Dst)
	if suberr != nil && !errors.Is(suberr, ErrCodeStoreOutOfGas) {
		dst.Clear()
	} else {
		dst.SetBytes(addr.Bytes())
	}
	frame.RefundGas(returnGas)

	if errors.Is(suberr, ErrExecutionReverted) {
		in.returnData = res // set REVERT data to return data buffer
		return res, nil
	}
	in.returnData = nil // clear dirty return data buffer
	return nil, nil
}

func opCreate2(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	var (
		endowment = new(uint256.Int).Set(frame.Regs.Get(inst.Args[0]))
		offset    = frame.Regs.Get(inst.Args[1]).Uint64()
		size      = frame.Regs.Get(inst.Args[2]).Uint64()
		salt      = new(uint256.Int).Set(frame.Regs.Get(inst.Args[3]))
		input     = frame.Memory.GetCopy(offset, size)
		gas       = frame.Gas
	)
	// Apply EIP150
	gas -= gas / 64
	frame.UseGas(gas)

	res, addr, returnGas, suberr := in.evm.Create2(frame, input, gas, endowment, salt)
	if IsFatal(suberr) {
		return nil, suberr
	}
	// Push item on the stack based on the returned error.
	dst := frame.Regs.Get(inst.Dst)
	if suberr != nil {
		dst.Clear()
	} else {
		dst.SetBytes(addr.Bytes())
	}
	frame.RefundGas(returnGas)

	if errors.Is(suberr, ErrExecutionReverted) {
		in.returnData = res // set REVERT data to return data buffer
		return res, nil
	}
	in.returnData = nil // clear dirty return data buffer
	return nil, nil
}

func opCall(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	// The gas operand was consumed by the dynamic gas calculation, which
	// left the forwardable amount in callGasTemp.
	gas := in.evm.callGasTemp
	var (
		addr      = common.Address(frame.Regs.Get(inst.Args[1]).Bytes20())
		value     = new(uint256.Int).Set(frame.Regs.Get(inst.Args[2]))
		inOffset  = frame.Regs.Get(inst.Args[3]).Uint64()
		inSize    = frame.Regs.Get(inst.Args[4]).Uint64()
		retOffset = frame.Regs.Get(inst.Args[5]).Uint64()
		retSize   = frame.Regs.Get(inst.Args[6]).Uint64()
	)
	if in.readOnly && !value.IsZero() {
		return nil, ErrWriteProtection
	}
	// Get the arguments from the memory.
	args := frame.Memory.GetPtr(inOffset, inSize)

	if !value.IsZero() {
		gas += params.CallStipend
	}
	ret, returnGas, err := in.evm.Call(frame, addr, args, gas, value)
	if IsFatal(err) {
		return nil, err
	}

	dst := frame.Regs.Get(inst.Dst)
	if err != nil {
		dst.Clear()
	} else {
		dst.SetOne()
	}
	if err == nil || errors.Is(err, ErrExecutionReverted) {
		frame.Memory.Set(retOffset, retSize, ret)
	}
	frame.RefundGas(returnGas)

	in.returnData = ret
	return ret, nil
}

func opCallCode(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	gas := in.evm.callGasTemp
	var (
		addr      = common.Address(frame.Regs.Get(inst.Args[1]).Bytes20())
		value     = new(uint256.Int).Set(frame.Regs.Get(inst.Args[2]))
		inOffset  = frame.Regs.Get(inst.Args[3]).Uint64()
		inSize    = frame.Regs.Get(inst.Args[4]).Uint64()
		retOffset = frame.Regs.Get(inst.Args[5]).Uint64()
		retSize   = frame.Regs.Get(inst.Args[6]).Uint64()
	)
	args := frame.Memory.GetPtr(inOffset, inSize)

	if !value.IsZero() {
		gas += params.CallStipend
	}
	ret, returnGas, err := in.evm.CallCode(frame, addr, args, gas, value)
	if IsFatal(err) {
		return nil, err
	}

	dst := frame.Regs.Get(inst.Dst)
	if err != nil {
		dst.Clear()
	} else {
		dst.SetOne()
	}
	if err == nil || errors.Is(err, ErrExecutionReverted) {
		frame.Memory.Set(retOffset, retSize, ret)
	}
	frame.RefundGas(returnGas)

	in.returnData = ret
	return ret, nil
}

func opDelegateCall(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	gas := in.evm.callGasTemp
	var (
		addr      = common.Address(frame.Regs.Get(inst.Args[1]).Bytes20())
		inOffset  = frame.Regs.Get(inst.Args[2]).Uint64()
		inSize    = frame.Regs.Get(inst.Args[3]).Uint64()
		retOffset = frame.Regs.Get(inst.Args[4]).Uint64()
		retSize   = frame.Regs.Get(inst.Args[5]).Uint64()
	)
	args := frame.Memory.GetPtr(inOffset, inSize)

	ret, returnGas, err := in.evm.DelegateCall(frame, addr, args, gas)
	if IsFatal(err) {
		return nil, err
	}

	dst := frame.Regs.Get(inst.Dst)
	if err != nil {
		dst.Clear()
	} else {
		dst.SetOne()
	}
	if err == nil || errors.Is(err, ErrExecutionReverted) {
		frame.Memory.Set(retOffset, retSize, ret)
	}
	frame.RefundGas(returnGas)

	in.returnData = ret
	return ret, nil
}

func opStaticCall(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	gas := in.evm.callGasTemp
	var (
		addr      = common.Address(frame.Regs.Get(inst.Args[1]).Bytes20())
		inOffset  = frame.Regs.Get(inst.Args[2]).Uint64()
		inSize    = frame.Regs.Get(inst.Args[3]).Uint64()
		retOffset = frame.Regs.Get(inst.Args[4]).Uint64()
		retSize   = frame.Regs.Get(inst.Args[5]).Uint64()
	)
	args := frame.Memory.GetPtr(inOffset, inSize)

	ret, returnGas, err := in.evm.StaticCall(frame, addr, args, gas)
	if IsFatal(err) {
		return nil, err
	}

	dst := frame.Regs.Get(inst.Dst)
	if err != nil {
		dst.Clear()
	} else {
		dst.SetOne()
	}
	if err == nil || errors.Is(err, ErrExecutionReverted) {
		frame.Memory.Set(retOffset, retSize, ret)
	}
	frame.RefundGas(returnGas)

	in.returnData = ret
	return ret, nil
}

func opReturn(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	offset, size := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	ret := frame.Memory.GetCopy(offset.Uint64(), size.Uint64())
	return ret, errStopToken
}

func opRevert(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	offset, size := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
	ret := frame.Memory.GetCopy(offset.Uint64(), size.Uint64())
	in.returnData = ret
	return ret, ErrExecutionReverted
}

func opUndefined(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	return nil, &ErrInvalidOpCode{opcode: OpCode(inst.Op)}
}

func opStop(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	return nil, errStopToken
}

func opSelfdestruct(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	beneficiary := frame.Regs.Get(inst.Args[0])
	balance := in.evm.StateDB.GetBalance(frame.Address())
	in.evm.StateDB.AddBalance(common.Address(beneficiary.Bytes20()), balance)
	in.evm.StateDB.SelfDestruct(frame.Address())
	return nil, errStopToken
}

// make log instruction function
func makeLog(size int) executionFunc {
	return func(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error) {
		if in.readOnly {
			return nil, ErrWriteProtection
		}
		topics := make([]common.Hash, size)
		mStart, mSize := frame.Regs.Get(inst.Args[0]), frame.Regs.Get(inst.Args[1])
		for i := 0; i < size; i++ {
			topics[i] = frame.Regs.Get(inst.Args[2+i]).Bytes32()
		}

		d := frame.Memory.GetCopy(mStart.Uint64(), mSize.Uint64())
		in.evm.StateDB.AddLog(&types.Log{
			Address: frame.Address(),
			Topics:  topics,
			Data:    d,
			// This is a non-consensus field, but assigned here because
			// core/state doesn't know the current block number.
			BlockNumber: in.evm.Context.BlockNumber.Uint64(),
		})
		return nil, nil
	}
}
