package vm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantom-foundation/go-fvm/core/state"
)

var (
	testSender   = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	testContract = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

func newTestEVM() (*EVM, *state.MemoryStateDB) {
	statedb := state.New()
	blockCtx := BlockContext{
		CanTransfer: func(db StateDB, addr common.Address, amount *uint256.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db StateDB, sender, recipient common.Address, amount *uint256.Int) {
			db.SubBalance(sender, amount)
			db.AddBalance(recipient, amount)
		},
		GetHash:     func(n uint64) common.Hash { return common.Hash{} },
		Coinbase:    common.HexToAddress("0x000000000000000000000000000000000000feed"),
		GasLimit:    30_000_000,
		BlockNumber: big.NewInt(1),
		Time:        1700000000,
		BaseFee:     big.NewInt(1_000_000_000),
	}
	txCtx := TxContext{Origin: testSender, GasPrice: big.NewInt(1)}
	return NewEVM(blockCtx, txCtx, statedb, Config{}), statedb
}

func deploy(statedb *state.MemoryStateDB, addr common.Address, code []byte) {
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, code)
}

// returnWord wraps code leaving one word on the stack so the frame returns
// that word as a 32-byte value.
func returnWord(compute ...byte) []byte {
	return append(compute,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	)
}

func TestRunReturnsSum(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, returnWord(
		byte(PUSH1), 2,
		byte(PUSH1), 3,
		byte(ADD),
	))

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	require.Len(t, ret, 32)
	assert.Equal(t, uint64(5), new(uint256.Int).SetBytes(ret).Uint64())
}

func TestRunGasAccountingExact(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, returnWord(
		byte(PUSH1), 2,
		byte(PUSH1), 3,
		byte(ADD),
	))

	const gas = 100_000
	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, gas, new(uint256.Int))
	require.NoError(t, err)
	// 4x PUSH1 (3) + ADD (3) + MSTORE (3 + 3 memory expansion) + RETURN (0)
	assert.Equal(t, uint64(21), gas-leftOver)
}

func TestDivisionByZero(t *testing.T) {
	evm, statedb := newTestEVM()
	// 5 / 0 yields 0, not a fault.
	deploy(statedb, testContract, returnWord(
		byte(PUSH1), 0,
		byte(PUSH1), 5,
		byte(DIV),
	))

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	assert.True(t, new(uint256.Int).SetBytes(ret).IsZero())
}

func TestWrappingSub(t *testing.T) {
	evm, statedb := newTestEVM()
	// 0 - 1 wraps to 2^256-1.
	deploy(statedb, testContract, returnWord(
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SUB),
	))

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	var allOnes uint256.Int
	allOnes.SetAllOne()
	assert.Equal(t, allOnes.Bytes32(), [32]byte(common.BytesToHash(ret)))
}

func TestDupSwapSemantics(t *testing.T) {
	evm, statedb := newTestEVM()
	// [3, 4] -> DUP2 -> [3, 4, 3] -> ADD -> [3, 7] -> ADD -> [10]
	deploy(statedb, testContract, returnWord(
		byte(PUSH1), 3,
		byte(PUSH1), 4,
		byte(DUP2),
		byte(ADD),
		byte(ADD),
	))

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), new(uint256.Int).SetBytes(ret).Uint64())
}

func TestCrossBlockRegisters(t *testing.T) {
	evm, statedb := newTestEVM()
	// Operands pushed before the jump must survive the block transfer and be
	// visible to the target block's ADD.
	code := []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 7,
		byte(PUSH1), 8, // jump target
		byte(JUMP),
		byte(STOP),
		byte(JUMPDEST), // 8
		byte(ADD),
	}
	deploy(statedb, testContract, returnWord(code...))

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), new(uint256.Int).SetBytes(ret).Uint64())
}

func TestTrampolineJumpLandsOnUnvisitedBlock(t *testing.T) {
	evm, statedb := newTestEVM()
	// The continuation at pc 11 is only reachable through the register-held
	// jump at pc 10, with two caller slots on the stack. It consumes the top
	// slot and its tail block keeps the bottom one across the fallthrough.
	code := []byte{
		byte(PUSH1), 0x0b,
		byte(PUSH1), 0x2a,
		byte(PUSH1), 11, // continuation
		byte(PUSH1), 9,  // trampoline
		byte(JUMP),
		byte(JUMPDEST), // 9
		byte(JUMP),
		byte(JUMPDEST), // 11
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(JUMPDEST), // 15
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	deploy(statedb, testContract, code)

	ret, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	require.Len(t, ret, 32)
	assert.Equal(t, uint64(0x2a), new(uint256.Int).SetBytes(ret).Uint64())
}

func TestImplicitStop(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{byte(PUSH1), 1, byte(POP)})

	const gas = 100_000
	ret, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, gas, new(uint256.Int))
	require.NoError(t, err)
	assert.Nil(t, ret)
	assert.Equal(t, uint64(5), gas-leftOver) // PUSH1 + POP
}

func TestInvalidJump(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{byte(PUSH1), 0, byte(JUMP)})

	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.ErrorIs(t, err, ErrInvalidJump)
	assert.Zero(t, leftOver, "faults consume all frame gas")
}

func TestInvalidOpcode(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{0x0c})

	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	var invalid *ErrInvalidOpCode
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, leftOver)
}

func TestJumpLoopRunsOutOfGas(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{
		byte(JUMPDEST),
		byte(PUSH1), 0,
		byte(JUMP),
	})

	key := common.Hash{0x01}
	statedb.SetStorage(testContract, key, common.Hash{0xaa})

	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 1_000, new(uint256.Int))
	require.ErrorIs(t, err, ErrOutOfGas)
	assert.Zero(t, leftOver)
	assert.Equal(t, common.Hash{0xaa}, statedb.GetState(testContract, key), "state unchanged after abort")
}

func TestDepthLimit(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{byte(STOP)})

	evm.depth = 1025
	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.ErrorIs(t, err, ErrDepth)
	assert.Equal(t, uint64(100_000), leftOver, "depth failure hands the gas back to the caller")

	evm.depth = 0
	_, _, err = evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
}

func TestInsufficientBalance(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{byte(STOP)})
	statedb.SetBalance(testSender, uint256.NewInt(10))

	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, uint256.NewInt(100))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(100_000), leftOver)
	assert.Equal(t, uint64(10), statedb.GetBalance(testSender).Uint64())
	assert.True(t, statedb.GetBalance(testContract).IsZero())
}

func TestValueTransfer(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{byte(STOP)})
	statedb.SetBalance(testSender, uint256.NewInt(1000))

	_, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, uint256.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, uint64(970), statedb.GetBalance(testSender).Uint64())
	assert.Equal(t, uint64(30), statedb.GetBalance(testContract).Uint64())
}

func TestRevertKeepsGasRollsBackState(t *testing.T) {
	evm, statedb := newTestEVM()
	// SSTORE(0, 1), then REVERT with a one-word reason.
	deploy(statedb, testContract, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(PUSH1), 0xbb,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(REVERT),
	})

	ret, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.ErrorIs(t, err, ErrExecutionReverted)
	assert.NotZero(t, leftOver, "revert preserves the remaining gas")
	require.Len(t, ret, 32)
	assert.Equal(t, byte(0xbb), ret[31])
	assert.Equal(t, common.Hash{}, statedb.GetState(testContract, common.Hash{}),
		"reverted store must be rolled back")
}

func TestStaticCallWriteProtection(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
	})

	_, leftOver, err := evm.StaticCall(AccountRef(testSender), testContract, nil, 100_000)
	require.ErrorIs(t, err, ErrWriteProtection)
	assert.Zero(t, leftOver)
	assert.Equal(t, common.Hash{}, statedb.GetState(testContract, common.Hash{}))
}

func TestStaticModePropagatesToNestedCalls(t *testing.T) {
	evm, statedb := newTestEVM()

	writer := common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	deploy(statedb, writer, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
	})

	// The proxy CALLs the writer with zero value; the write protection of the
	// outer static frame must still apply inside.
	proxy := []byte{
		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // inSize
		byte(PUSH1), 0, // inOffset
		byte(PUSH1), 0, // value
		byte(PUSH20),
	}
	proxy = append(proxy, writer.Bytes()...)
	proxy = append(proxy,
		byte(PUSH3), 0x01, 0x86, 0xa0, // gas: 100000
		byte(CALL),
	)
	deploy(statedb, testContract, returnWord(proxy...))

	ret, _, err := evm.StaticCall(AccountRef(testSender), testContract, nil, 1_000_000)
	require.NoError(t, err, "the proxy itself survives; only the nested call fails")
	assert.True(t, new(uint256.Int).SetBytes(ret).IsZero(), "nested call must report failure")
	assert.Equal(t, common.Hash{}, statedb.GetState(writer, common.Hash{}))
}

func TestCallGas(t *testing.T) {
	// A request above the 63/64 allowance forwards the allowance, even when
	// the requested amount does not fit in 64 bits.
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	gas, err := callGas(6400, 0, huge)
	require.NoError(t, err)
	assert.Equal(t, uint64(6300), gas)

	// A request below the allowance is honored exactly.
	gas, err = callGas(6400, 0, uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), gas)

	// The constant portion is deducted before the split.
	gas, err = callGas(6464, 64, huge)
	require.NoError(t, err)
	assert.Equal(t, uint64(6300), gas)
}

func TestSstoreGasSchedule(t *testing.T) {
	const gas = 100_000

	run := func(t *testing.T, prepare func(*state.MemoryStateDB), value byte) uint64 {
		evm, statedb := newTestEVM()
		deploy(statedb, testContract, []byte{
			byte(PUSH1), value,
			byte(PUSH1), 0,
			byte(SSTORE),
		})
		if prepare != nil {
			prepare(statedb)
		}
		_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, gas, new(uint256.Int))
		require.NoError(t, err)
		return gas - leftOver
	}

	// 2x PUSH1 + cold slot + zero-to-nonzero set
	fresh := run(t, nil, 1)
	assert.Equal(t, uint64(6+2100+20000), fresh)

	// 2x PUSH1 + cold slot + nonzero-to-nonzero reset
	update := run(t, func(s *state.MemoryStateDB) {
		s.SetStorage(testContract, common.Hash{}, common.Hash{0x01})
	}, 2)
	assert.Equal(t, uint64(6+2100+2900), update)

	assert.Greater(t, fresh, update, "creating a slot must cost more than updating one")
}

func TestSstoreClearRefund(t *testing.T) {
	evm, statedb := newTestEVM()
	deploy(statedb, testContract, []byte{
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(SSTORE),
	})
	statedb.SetStorage(testContract, common.Hash{}, common.Hash{0x01})

	_, _, err := evm.Call(AccountRef(testSender), testContract, nil, 100_000, new(uint256.Int))
	require.NoError(t, err)
	assert.Equal(t, uint64(4800), statedb.GetRefund())
}

func TestWarmSecondSload(t *testing.T) {
	evm, statedb := newTestEVM()
	// Two loads of the same slot: first cold (2100), second warm (100).
	deploy(statedb, testContract, []byte{
		byte(PUSH1), 0,
		byte(SLOAD),
		byte(POP),
		byte(PUSH1), 0,
		byte(SLOAD),
		byte(POP),
	})

	const gas = 100_000
	_, leftOver, err := evm.Call(AccountRef(testSender), testContract, nil, gas, new(uint256.Int))
	require.NoError(t, err)
	// 2x (PUSH1 + POP) + 2100 + 100
	assert.Equal(t, uint64(10+2100+100), gas-leftOver)
}
