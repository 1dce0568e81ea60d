package compiler

// ByteCode is a single raw EVM opcode as it appears in contract bytecode.
// The compiler keeps its own opcode namespace so that core/vm can depend on
// this package without a cycle.
type ByteCode byte

// 0x0 range - arithmetic ops.
const (
	STOP       ByteCode = 0x00
	ADD        ByteCode = 0x01
	MUL        ByteCode = 0x02
	SUB        ByteCode = 0x03
	DIV        ByteCode = 0x04
	SDIV       ByteCode = 0x05
	MOD        ByteCode = 0x06
	SMOD       ByteCode = 0x07
	ADDMOD     ByteCode = 0x08
	MULMOD     ByteCode = 0x09
	EXP        ByteCode = 0x0a
	SIGNEXTEND ByteCode = 0x0b
)

// 0x10 range - comparison and bitwise ops.
const (
	LT     ByteCode = 0x10
	GT     ByteCode = 0x11
	SLT    ByteCode = 0x12
	SGT    ByteCode = 0x13
	EQ     ByteCode = 0x14
	ISZERO ByteCode = 0x15
	AND    ByteCode = 0x16
	OR     ByteCode = 0x17
	XOR    ByteCode = 0x18
	NOT    ByteCode = 0x19
	BYTE   ByteCode = 0x1a
	SHL    ByteCode = 0x1b
	SHR    ByteCode = 0x1c
	SAR    ByteCode = 0x1d
)

// 0x20 range - crypto.
const (
	KECCAK256 ByteCode = 0x20
)

// 0x30 range - closure state.
const (
	ADDRESS        ByteCode = 0x30
	BALANCE        ByteCode = 0x31
	ORIGIN         ByteCode = 0x32
	CALLER         ByteCode = 0x33
	CALLVALUE      ByteCode = 0x34
	CALLDATALOAD   ByteCode = 0x35
	CALLDATASIZE   ByteCode = 0x36
	CALLDATACOPY   ByteCode = 0x37
	CODESIZE       ByteCode = 0x38
	CODECOPY       ByteCode = 0x39
	GASPRICE       ByteCode = 0x3a
	EXTCODESIZE    ByteCode = 0x3b
	EXTCODECOPY    ByteCode = 0x3c
	RETURNDATASIZE ByteCode = 0x3d
	RETURNDATACOPY ByteCode = 0x3e
	EXTCODEHASH    ByteCode = 0x3f
)

// 0x40 range - block operations.
const (
	BLOCKHASH   ByteCode = 0x40
	COINBASE    ByteCode = 0x41
	TIMESTAMP   ByteCode = 0x42
	NUMBER      ByteCode = 0x43
	PREVRANDAO  ByteCode = 0x44
	GASLIMIT    ByteCode = 0x45
	CHAINID     ByteCode = 0x46
	SELFBALANCE ByteCode = 0x47
	BASEFEE     ByteCode = 0x48
)

// 0x50 range - storage and execution.
const (
	POP      ByteCode = 0x50
	MLOAD    ByteCode = 0x51
	MSTORE   ByteCode = 0x52
	MSTORE8  ByteCode = 0x53
	SLOAD    ByteCode = 0x54
	SSTORE   ByteCode = 0x55
	JUMP     ByteCode = 0x56
	JUMPI    ByteCode = 0x57
	PC       ByteCode = 0x58
	MSIZE    ByteCode = 0x59
	GAS      ByteCode = 0x5a
	JUMPDEST ByteCode = 0x5b
)

// 0x5f-0x7f range - pushes.
const (
	PUSH0  ByteCode = 0x5f
	PUSH1  ByteCode = 0x60
	PUSH2  ByteCode = 0x61
	PUSH32 ByteCode = 0x7f
)

// 0x80 range - dups.
const (
	DUP1  ByteCode = 0x80
	DUP16 ByteCode = 0x8f
)

// 0x90 range - swaps.
const (
	SWAP1  ByteCode = 0x90
	SWAP16 ByteCode = 0x9f
)

// 0xa0 range - logging.
const (
	LOG0 ByteCode = 0xa0
	LOG4 ByteCode = 0xa4
)

// 0xf0 range - closures.
const (
	CREATE       ByteCode = 0xf0
	CALL         ByteCode = 0xf1
	CALLCODE     ByteCode = 0xf2
	RETURN       ByteCode = 0xf3
	DELEGATECALL ByteCode = 0xf4
	CREATE2      ByteCode = 0xf5
	STATICCALL   ByteCode = 0xfa
	REVERT       ByteCode = 0xfd
	INVALID      ByteCode = 0xfe
	SELFDESTRUCT ByteCode = 0xff
)

// IsPush reports whether op is one of PUSH1 through PUSH32. PUSH0 carries no
// immediate and is deliberately excluded.
func (op ByteCode) IsPush() bool {
	return op >= PUSH1 && op <= PUSH32
}

// PushSize returns the number of immediate data bytes following a push
// instruction, or zero for any other opcode.
func (op ByteCode) PushSize() int {
	if op.IsPush() {
		return int(op - PUSH1 + 1)
	}
	return 0
}

// IsDup reports whether op duplicates a stack slot.
func (op ByteCode) IsDup() bool {
	return op >= DUP1 && op <= DUP16
}

// IsSwap reports whether op exchanges two stack slots.
func (op ByteCode) IsSwap() bool {
	return op >= SWAP1 && op <= SWAP16
}

// IsLog reports whether op emits a log record.
func (op ByteCode) IsLog() bool {
	return op >= LOG0 && op <= LOG4
}

// IsTerminator reports whether op ends a basic block: control transfers,
// halts and the designated-invalid instruction.
func (op ByteCode) IsTerminator() bool {
	switch op {
	case JUMP, JUMPI, STOP, RETURN, REVERT, INVALID, SELFDESTRUCT:
		return true
	}
	return false
}

// stackEffect returns how many operands op pops from the virtual stack and
// how many results it pushes. DUP, SWAP, POP and the pushes are handled
// structurally by the translator and are not covered here. The second return
// distinguishes known opcodes from undefined bytes, which the interpreter
// treats as invalid instructions.
func stackEffect(op ByteCode) (pops, pushes int, known bool) {
	switch op {
	case STOP, JUMPDEST, INVALID:
		return 0, 0, true
	case ADD, MUL, SUB, DIV, SDIV, MOD, SMOD, EXP, SIGNEXTEND,
		LT, GT, SLT, SGT, EQ, AND, OR, XOR, BYTE, SHL, SHR, SAR,
		KECCAK256:
		return 2, 1, true
	case ADDMOD, MULMOD:
		return 3, 1, true
	case ISZERO, NOT, BALANCE, CALLDATALOAD, EXTCODESIZE, EXTCODEHASH,
		BLOCKHASH, MLOAD, SLOAD:
		return 1, 1, true
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE,
		GASPRICE, RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER, PREVRANDAO,
		GASLIMIT, CHAINID, SELFBALANCE, BASEFEE, PC, MSIZE, GAS:
		return 0, 1, true
	case CALLDATACOPY, CODECOPY, RETURNDATACOPY:
		return 3, 0, true
	case EXTCODECOPY:
		return 4, 0, true
	case MSTORE, MSTORE8, SSTORE:
		return 2, 0, true
	case JUMP:
		return 1, 0, true
	case JUMPI:
		return 2, 0, true
	case CREATE:
		return 3, 1, true
	case CREATE2:
		return 4, 1, true
	case CALL, CALLCODE:
		return 7, 1, true
	case DELEGATECALL, STATICCALL:
		return 6, 1, true
	case RETURN, REVERT:
		return 2, 0, true
	case SELFDESTRUCT:
		return 1, 0, true
	}
	if op.IsLog() {
		return 2 + int(op-LOG0), 0, true
	}
	return 0, 0, false
}
