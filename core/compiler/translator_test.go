package compiler

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBlocksPartition(t *testing.T) {
	// PUSH1 1, PUSH1 2, ADD, JUMPDEST, STOP, JUMPDEST, STOP
	code := []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 2,
		byte(ADD),
		byte(JUMPDEST),
		byte(STOP),
		byte(JUMPDEST),
		byte(STOP),
	}
	spans := scanBlocks(code)
	require.Len(t, spans, 3)
	assert.Equal(t, blockSpan{start: 0, end: 5}, spans[0])
	assert.Equal(t, blockSpan{start: 5, end: 7, isJumpdest: true}, spans[1])
	assert.Equal(t, blockSpan{start: 7, end: 9, isJumpdest: true}, spans[2])
}

func TestScanBlocksPushPayload(t *testing.T) {
	// The JUMPDEST byte value inside a push payload must not split the block.
	code := []byte{byte(PUSH2), byte(JUMPDEST), byte(STOP), byte(STOP)}
	spans := scanBlocks(code)
	require.Len(t, spans, 1)
	assert.Equal(t, blockSpan{start: 0, end: 4}, spans[0])
}

func TestTranslateEntryContract(t *testing.T) {
	// On block entry, stack slot i must live in register i.
	code := []byte{
		byte(PUSH1), 10,
		byte(PUSH1), 20,
		byte(ADD),
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)
	require.Len(t, program.Blocks, 1)

	b := program.Blocks[0]
	require.Len(t, b.Instrs, 4)
	assert.Equal(t, uint16(0), b.Instrs[0].Dst)
	assert.Equal(t, uint16(1), b.Instrs[1].Dst)
	// ADD pops both operands, so its result reuses register 0.
	add := b.Instrs[2]
	assert.Equal(t, ADD, add.Op)
	assert.Equal(t, []uint16{1, 0}, add.Args)
	assert.Equal(t, uint16(0), add.Dst)
	assert.Equal(t, 0, b.EntryDepth)
	assert.Equal(t, 1, b.ExitDepth)
}

func TestTranslateDeterminism(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0,
		byte(CALLDATALOAD),
		byte(PUSH1), 10,
		byte(JUMPI),
		byte(PUSH0),
		byte(PUSH1), 12,
		byte(JUMP),
		byte(JUMPDEST), // 10, taken with depth 0
		byte(PUSH0),
		byte(JUMPDEST), // 12, both paths arrive with depth 1
		byte(STOP),
	}
	p1, err := Translate(code)
	require.NoError(t, err)
	p2, err := Translate(code)
	require.NoError(t, err)

	require.Equal(t, len(p1.Blocks), len(p2.Blocks))
	assert.Equal(t, p1.MaxRegisters, p2.MaxRegisters)
	for i := range p1.Blocks {
		assert.Equal(t, p1.Blocks[i].Instrs, p2.Blocks[i].Instrs)
		assert.Equal(t, p1.Blocks[i].Shuffle, p2.Blocks[i].Shuffle)
		assert.Equal(t, p1.Blocks[i].Exit, p2.Blocks[i].Exit)
		assert.Equal(t, p1.Blocks[i].EntryDepth, p2.Blocks[i].EntryDepth)
	}
}

func TestTranslateTruncatedPush(t *testing.T) {
	_, err := Translate([]byte{byte(PUSH2), 0x01})
	require.ErrorIs(t, err, ErrInvalidBytecode)
}

func TestTranslateDepthConflict(t *testing.T) {
	// The jumpdest at pc 6 is reached through the conditional jump with
	// stack depth 0 and through the fallthrough path with depth 2.
	code := []byte{
		byte(PUSH0),
		byte(PUSH1), 6,
		byte(JUMPI),
		byte(PUSH0),
		byte(PUSH0),
		byte(JUMPDEST),
		byte(STOP),
	}
	_, err := Translate(code)
	require.ErrorIs(t, err, ErrInvalidBytecode)
}

func TestTranslateUnderflowFault(t *testing.T) {
	program, err := Translate([]byte{byte(ADD)})
	require.NoError(t, err)
	require.Len(t, program.Blocks, 1)

	var underflow *StackUnderflowError
	require.ErrorAs(t, program.Blocks[0].Fault, &underflow)
	assert.Equal(t, uint64(0), underflow.PC)
	assert.Equal(t, 2, underflow.Required)
}

func TestTranslateStaticJumpTarget(t *testing.T) {
	code := []byte{
		byte(PUSH1), 4,
		byte(JUMP),
		byte(STOP),
		byte(JUMPDEST), // 4
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	b := program.Blocks[0]
	assert.Equal(t, ExitJump, b.Exit)
	require.NotNil(t, b.StaticTarget)
	assert.Equal(t, uint64(4), *b.StaticTarget)

	target, ok := program.BlockAt(4)
	require.True(t, ok)
	assert.Equal(t, 0, target.EntryDepth)
}

func TestTranslateDupAliasing(t *testing.T) {
	// DUP does not copy: both virtual slots refer to the same register, and
	// the exit shuffle restores the slot-i-in-register-i contract.
	code := []byte{
		byte(PUSH1), 7,
		byte(DUP1),
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	b := program.Blocks[0]
	require.Len(t, b.Instrs, 3)
	assert.Equal(t, DUP1, b.Instrs[1].Op)
	assert.Empty(t, b.Instrs[1].Args)
	assert.Equal(t, 2, b.ExitDepth)
}

func TestTranslateSwapShuffle(t *testing.T) {
	// A block ending with a net swap emits a canonicalizing shuffle.
	code := []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 2,
		byte(SWAP1),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	b := program.Blocks[0]
	assert.Equal(t, ExitFallthrough, b.Exit)
	assert.ElementsMatch(t, []RegMove{{Src: 1, Dst: 0}, {Src: 0, Dst: 1}}, b.Shuffle)
}

func TestTranslateRegisterReuse(t *testing.T) {
	// Push/pop churn must not grow the register file: each pop frees its
	// register for the next push.
	var code []byte
	for i := 0; i < 100; i++ {
		code = append(code, byte(PUSH1), byte(i), byte(POP))
	}
	code = append(code, byte(STOP))

	program, err := Translate(code)
	require.NoError(t, err)
	assert.Equal(t, 1, program.MaxRegisters)
}

func TestTranslateStackLimit(t *testing.T) {
	var code []byte
	for i := 0; i < StackLimit+1; i++ {
		code = append(code, byte(PUSH0))
	}
	program, err := Translate(code)
	require.NoError(t, err)

	var overflow *StackOverflowError
	require.ErrorAs(t, program.Blocks[0].Fault, &overflow)
	// The faulting allocation must not leak into the advertised file size.
	assert.LessOrEqual(t, program.MaxRegisters, StackLimit)
}

func TestTranslateStackLimitNonPush(t *testing.T) {
	// Stack growth through a non-push opcode hits the same limit.
	var code []byte
	for i := 0; i < StackLimit; i++ {
		code = append(code, byte(PUSH0))
	}
	code = append(code, byte(GAS))

	program, err := Translate(code)
	require.NoError(t, err)

	var overflow *StackOverflowError
	require.ErrorAs(t, program.Blocks[0].Fault, &overflow)
	assert.LessOrEqual(t, program.MaxRegisters, StackLimit)
}

func TestBlockForDynamicArrival(t *testing.T) {
	// The block at pc 9 is reachable only through the register-held jump at
	// pc 8, so no static edge fixes its entry depth. It is translated on
	// first arrival, at whatever depth the jump brings, and memoized per
	// depth.
	code := []byte{
		byte(PUSH1), 0xaa,
		byte(PUSH1), 9,
		byte(PUSH1), 7,
		byte(JUMP),
		byte(JUMPDEST), // 7
		byte(JUMP),
		byte(JUMPDEST), // 9
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	blk, ok := program.BlockAt(9)
	require.True(t, ok)
	assert.Equal(t, entryDepthUnset, blk.EntryDepth)

	v1, err := program.BlockFor(9, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.EntryDepth)
	assert.Equal(t, ExitTerminal, v1.Exit)

	again, err := program.BlockFor(9, 1)
	require.NoError(t, err)
	assert.Same(t, v1, again)

	v2, err := program.BlockFor(9, 2)
	require.NoError(t, err)
	assert.NotSame(t, v1, v2)
	assert.Equal(t, 2, v2.EntryDepth)
}

func TestBlockForDepthMismatch(t *testing.T) {
	// Statically translated blocks still reject any other arrival depth.
	code := []byte{
		byte(PUSH1), 0xaa,
		byte(PUSH1), 9,
		byte(PUSH1), 7,
		byte(JUMP),
		byte(JUMPDEST), // 7, statically entered with depth 2
		byte(JUMP),
		byte(JUMPDEST), // 9
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	b, err := program.BlockFor(7, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.EntryDepth)

	_, err = program.BlockFor(7, 0)
	require.ErrorIs(t, err, ErrInvalidBytecode)
}

func TestValidJumpdest(t *testing.T) {
	code := []byte{
		byte(PUSH2), byte(JUMPDEST), byte(JUMPDEST), // payload bytes, not code
		byte(JUMPDEST), // 3
		byte(STOP),
	}
	program, err := Translate(code)
	require.NoError(t, err)

	assert.True(t, program.ValidJumpdest(uint256.NewInt(3)))
	assert.False(t, program.ValidJumpdest(uint256.NewInt(1)), "jumpdest byte inside push payload")
	assert.False(t, program.ValidJumpdest(uint256.NewInt(4)))
	assert.False(t, program.ValidJumpdest(uint256.NewInt(100)))
}

func TestTranslateEmptyCode(t *testing.T) {
	program, err := Translate(nil)
	require.NoError(t, err)
	assert.Nil(t, program.EntryBlock())
}
