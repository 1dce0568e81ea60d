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
	"github.com/ethereum/go-ethereum/params"

	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

type (
	executionFunc func(in *Interpreter, frame *Frame, inst *compiler.Instruction) ([]byte, error)
	gasFunc       func(evm *EVM, frame *Frame, inst *compiler.Instruction, mem *Memory, memorySize uint64) (uint64, error)
	// memorySizeFunc returns the required size, and whether the operation overflowed a uint64
	memorySizeFunc func(frame *Frame, inst *compiler.Instruction) (uint64, bool)
)

type operation struct {
	// execute is the operation function
	execute     executionFunc
	constantGas uint64
	// dynamicGas is the dynamic gas function
	dynamicGas gasFunc
	// memorySize returns the memory size required for the operation
	memorySize memorySizeFunc
}

// JumpTable contains the EVM opcodes supported at a given fork. Opcodes with
// a nil entry are undefined and fail the frame, consuming all gas.
type JumpTable [256]*operation

// newInstructionSet returns the instruction set with warm/cold account
// accounting, net storage metering, reduced refunds, PUSH0 and the init-code
// size limit, matching the Shanghai revision of the protocol.
func newInstructionSet() JumpTable {
	tbl := JumpTable{
		STOP: {
			execute:     opStop,
			constantGas: 0,
		},
		ADD: {
			execute:     opAdd,
			constantGas: GasFastestStep,
		},
		MUL: {
			execute:     opMul,
			constantGas: GasFastStep,
		},
		SUB: {
			execute:     opSub,
			constantGas: GasFastestStep,
		},
		DIV: {
			execute:     opDiv,
			constantGas: GasFastStep,
		},
		SDIV: {
			execute:     opSdiv,
			constantGas: GasFastStep,
		},
		MOD: {
			execute:     opMod,
			constantGas: GasFastStep,
		},
		SMOD: {
			execute:     opSmod,
			constantGas: GasFastStep,
		},
		ADDMOD: {
			execute:     opAddmod,
			constantGas: GasMidStep,
		},
		MULMOD: {
			execute:     opMulmod,
			constantGas: GasMidStep,
		},
		EXP: {
			execute:    opExp,
			dynamicGas: gasExp,
		},
		SIGNEXTEND: {
			execute:     opSignExtend,
			constantGas: GasFastStep,
		},
		LT: {
			execute:     opLt,
			constantGas: GasFastestStep,
		},
		GT: {
			execute:     opGt,
			constantGas: GasFastestStep,
		},
		SLT: {
			execute:     opSlt,
			constantGas: GasFastestStep,
		},
		SGT: {
			execute:     opSgt,
			constantGas: GasFastestStep,
		},
		EQ: {
			execute:     opEq,
			constantGas: GasFastestStep,
		},
		ISZERO: {
			execute:     opIszero,
			constantGas: GasFastestStep,
		},
		AND: {
			execute:     opAnd,
			constantGas: GasFastestStep,
		},
		OR: {
			execute:     opOr,
			constantGas: GasFastestStep,
		},
		XOR: {
			execute:     opXor,
			constantGas: GasFastestStep,
		},
		NOT: {
			execute:     opNot,
			constantGas: GasFastestStep,
		},
		BYTE: {
			execute:     opByte,
			constantGas: GasFastestStep,
		},
		SHL: {
			execute:     opSHL,
			constantGas: GasFastestStep,
		},
		SHR: {
			execute:     opSHR,
			constantGas: GasFastestStep,
		},
		SAR: {
			execute:     opSAR,
			constantGas: GasFastestStep,
		},
		KECCAK256: {
			execute:     opKeccak256,
			constantGas: params.Keccak256Gas,
			dynamicGas:  gasKeccak256,
			memorySize:  memoryKeccak256,
		},
		ADDRESS: {
			execute:     opAddress,
			constantGas: GasQuickStep,
		},
		BALANCE: {
			execute:     opBalance,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasAccountCheck,
		},
		ORIGIN: {
			execute:     opOrigin,
			constantGas: GasQuickStep,
		},
		CALLER: {
			execute:     opCaller,
			constantGas: GasQuickStep,
		},
		CALLVALUE: {
			execute:     opCallValue,
			constantGas: GasQuickStep,
		},
		CALLDATALOAD: {
			execute:     opCallDataLoad,
			constantGas: GasFastestStep,
		},
		CALLDATASIZE: {
			execute:     opCallDataSize,
			constantGas: GasQuickStep,
		},
		CALLDATACOPY: {
			execute:     opCallDataCopy,
			constantGas: GasFastestStep,
			dynamicGas:  gasCallDataCopy,
			memorySize:  memoryCallDataCopy,
		},
		CODESIZE: {
			execute:     opCodeSize,
			constantGas: GasQuickStep,
		},
		CODECOPY: {
			execute:     opCodeCopy,
			constantGas: GasFastestStep,
			dynamicGas:  gasCodeCopy,
			memorySize:  memoryCodeCopy,
		},
		GASPRICE: {
			execute:     opGasprice,
			constantGas: GasQuickStep,
		},
		EXTCODESIZE: {
			execute:     opExtCodeSize,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasAccountCheck,
		},
		EXTCODECOPY: {
			execute:     opExtCodeCopy,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasExtCodeCopy,
			memorySize:  memoryExtCodeCopy,
		},
		RETURNDATASIZE: {
			execute:     opReturnDataSize,
			constantGas: GasQuickStep,
		},
		RETURNDATACOPY: {
			execute:     opReturnDataCopy,
			constantGas: GasFastestStep,
			dynamicGas:  gasReturnDataCopy,
			memorySize:  memoryReturnDataCopy,
		},
		EXTCODEHASH: {
			execute:     opExtCodeHash,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasAccountCheck,
		},
		BLOCKHASH: {
			execute:     opBlockhash,
			constantGas: GasExtStep,
		},
		COINBASE: {
			execute:     opCoinbase,
			constantGas: GasQuickStep,
		},
		TIMESTAMP: {
			execute:     opTimestamp,
			constantGas: GasQuickStep,
		},
		NUMBER: {
			execute:     opNumber,
			constantGas: GasQuickStep,
		},
		PREVRANDAO: {
			execute:     opRandom,
			constantGas: GasQuickStep,
		},
		GASLIMIT: {
			execute:     opGasLimit,
			constantGas: GasQuickStep,
		},
		CHAINID: {
			execute:     opChainID,
			constantGas: GasQuickStep,
		},
		SELFBALANCE: {
			execute:     opSelfBalance,
			constantGas: GasFastStep,
		},
		BASEFEE: {
			execute:     opBaseFee,
			constantGas: GasQuickStep,
		},
		POP: {
			execute:     opNoop,
			constantGas: GasQuickStep,
		},
		MLOAD: {
			execute:     opMload,
			constantGas: GasFastestStep,
			dynamicGas:  gasMLoad,
			memorySize:  memoryMLoad,
		},
		MSTORE: {
			execute:     opMstore,
			constantGas: GasFastestStep,
			dynamicGas:  gasMStore,
			memorySize:  memoryMStore,
		},
		MSTORE8: {
			execute:     opMstore8,
			constantGas: GasFastestStep,
			dynamicGas:  gasMStore8,
			memorySize:  memoryMStore8,
		},
		SLOAD: {
			execute:     opSload,
			constantGas: 0,
			dynamicGas:  gasSLoad,
		},
		SSTORE: {
			execute:    opSstore,
			dynamicGas: gasSStore,
		},
		PC: {
			execute:     opPc,
			constantGas: GasQuickStep,
		},
		MSIZE: {
			execute:     opMsize,
			constantGas: GasQuickStep,
		},
		GAS: {
			execute:     opGas,
			constantGas: GasQuickStep,
		},
		JUMPDEST: {
			execute:     opNoop,
			constantGas: params.JumpdestGas,
		},
		PUSH0: {
			execute:     opPush,
			constantGas: GasQuickStep,
		},
		CREATE: {
			execute:     opCreate,
			constantGas: params.CreateGas,
			dynamicGas:  gasCreateEip3860,
			memorySize:  memoryCreate,
		},
		CALL: {
			execute:     opCall,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasCall,
			memorySize:  memoryCall,
		},
		CALLCODE: {
			execute:     opCallCode,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasCallCode,
			memorySize:  memoryCall,
		},
		RETURN: {
			execute:    opReturn,
			dynamicGas: gasReturn,
			memorySize: memoryReturn,
		},
		DELEGATECALL: {
			execute:     opDelegateCall,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasDelegateCall,
			memorySize:  memoryDelegateCall,
		},
		CREATE2: {
			execute:     opCreate2,
			constantGas: params.Create2Gas,
			dynamicGas:  gasCreate2Eip3860,
			memorySize:  memoryCreate2,
		},
		STATICCALL: {
			execute:     opStaticCall,
			constantGas: params.WarmStorageReadCostEIP2929,
			dynamicGas:  gasStaticCall,
			memorySize:  memoryStaticCall,
		},
		REVERT: {
			execute:    opRevert,
			dynamicGas: gasRevert,
			memorySize: memoryRevert,
		},
		INVALID: {
			execute: opUndefined,
		},
		SELFDESTRUCT: {
			execute:     opSelfdestruct,
			constantGas: params.SelfdestructGasEIP150,
			dynamicGas:  gasSelfdestruct,
		},
	}
	for i := 0; i < 32; i++ {
		tbl[int(PUSH1)+i] = &operation{
			execute:     opPush,
			constantGas: GasFastestStep,
		}
	}
	for i := 0; i < 16; i++ {
		tbl[int(DUP1)+i] = &operation{
			execute:     opNoop,
			constantGas: GasFastestStep,
		}
		tbl[int(SWAP1)+i] = &operation{
			execute:     opNoop,
			constantGas: GasFastestStep,
		}
	}
	for i := 0; i <= 4; i++ {
		tbl[int(LOG0)+i] = &operation{
			execute:    makeLog(i),
			dynamicGas: makeGasLog(uint64(i)),
			memorySize: memoryLog,
		}
	}
	return tbl
}
