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

package runtime

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantom-foundation/go-fvm/core/state"
	"github.com/Fantom-foundation/go-fvm/core/vm"
)

func TestExecute(t *testing.T) {
	result, err := Execute([]byte{
		byte(vm.PUSH1), 10,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.ReturnData, 32)
	assert.Equal(t, uint64(10), new(uint256.Int).SetBytes(result.ReturnData).Uint64())
	assert.NoError(t, result.Err)
}

func TestExecuteUsedGas(t *testing.T) {
	result, err := Execute([]byte{
		byte(vm.PUSH1), 2,
		byte(vm.PUSH1), 3,
		byte(vm.ADD),
		byte(vm.POP),
	}, nil, &Config{GasLimit: 100_000})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, uint64(11), result.UsedGas) // 2x PUSH1 + ADD + POP
}

func TestExecuteRevert(t *testing.T) {
	cfg := &Config{GasLimit: 100_000, State: state.New()}
	result, err := Execute([]byte{
		byte(vm.PUSH1), 1,
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),
		byte(vm.PUSH1), 0xee,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.REVERT),
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusRevert, result.Status)
	assert.ErrorIs(t, result.Err, vm.ErrExecutionReverted)
	require.Len(t, result.ReturnData, 32)
	assert.Equal(t, byte(0xee), result.ReturnData[31])
	assert.Less(t, result.UsedGas, cfg.GasLimit, "revert returns the unconsumed gas")

	contract := common.BytesToAddress([]byte("contract"))
	assert.Equal(t, common.Hash{}, cfg.State.GetState(contract, common.Hash{}))
}

func TestExecuteFaultConsumesAllGas(t *testing.T) {
	cfg := &Config{GasLimit: 10_000, State: state.New()}
	result, err := Execute([]byte{
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0,
		byte(vm.JUMP),
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFault, result.Status)
	assert.ErrorIs(t, result.Err, vm.ErrOutOfGas)
	assert.Equal(t, cfg.GasLimit, result.UsedGas)
}

func TestExecuteLogs(t *testing.T) {
	// LOG1 over the first memory word with one topic.
	result, err := Execute([]byte{
		byte(vm.PUSH1), 0x42,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 0x07, // topic
		byte(vm.PUSH1), 32, // size
		byte(vm.PUSH1), 0, // offset
		byte(vm.LOG1),
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Logs, 1)

	log := result.Logs[0]
	assert.Equal(t, common.BytesToAddress([]byte("contract")), log.Address)
	require.Len(t, log.Topics, 1)
	assert.Equal(t, common.Hash{31: 0x07}, log.Topics[0])
	require.Len(t, log.Data, 32)
	assert.Equal(t, byte(0x42), log.Data[31])
}

func TestExecuteCallData(t *testing.T) {
	// Return CALLDATALOAD(0).
	input := common.LeftPadBytes([]byte{0x12, 0x34}, 32)
	result, err := Execute([]byte{
		byte(vm.PUSH1), 0,
		byte(vm.CALLDATALOAD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, input, nil)
	require.NoError(t, err)
	assert.Equal(t, input, result.ReturnData)
}

func TestRefundCappedToFifthOfUsedGas(t *testing.T) {
	// Clearing a pre-existing slot earns a 4800 refund, but only a fifth of
	// the gas actually used may be paid out.
	cfg := &Config{GasLimit: 100_000, State: state.New()}
	contract := common.BytesToAddress([]byte("contract"))
	cfg.State.SetStorage(contract, common.Hash{}, common.Hash{0x01})

	result, err := Execute([]byte{
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),
	}, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	// 2x PUSH1 + cold sload + reset = 6 + 2100 + 2900 = 5006 gross.
	gross := uint64(5006)
	capped := gross / 5
	assert.Equal(t, capped, result.RefundedGas, "refund capped below the 4800 counter")
	assert.Equal(t, gross-capped, result.UsedGas)
}

func TestCreateDeploysRuntimeCode(t *testing.T) {
	// Init code returning the single byte 0x00 (STOP) as runtime code:
	// MSTORE8(0, 0x00); RETURN(0, 1)
	initCode := []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE8),
		byte(vm.PUSH1), 1,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}
	cfg := &Config{GasLimit: 1_000_000, State: state.New()}
	result, address, err := Create(initCode, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.NotEqual(t, common.Address{}, address)
	assert.Equal(t, []byte{0x00}, cfg.State.GetCode(address))
}

func TestCreateRejectsEFPrefix(t *testing.T) {
	// Runtime code starting with 0xEF must not be deployed.
	initCode := []byte{
		byte(vm.PUSH1), 0xef,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE8),
		byte(vm.PUSH1), 1,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}
	cfg := &Config{GasLimit: 1_000_000, State: state.New()}
	result, _, err := Create(initCode, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFault, result.Status)
	assert.ErrorIs(t, result.Err, vm.ErrInvalidCode)
}

func TestCallUsesDeployedCode(t *testing.T) {
	cfg := &Config{GasLimit: 100_000, State: state.New()}
	address := common.HexToAddress("0x0c0de000000000000000000000000000000c0de0")
	cfg.State.CreateAccount(address)
	cfg.State.SetCode(address, []byte{
		byte(vm.PUSH1), 99,
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	})

	result, err := Call(address, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, uint64(99), new(uint256.Int).SetBytes(result.ReturnData).Uint64())
}

func TestNestedCallRevertIsolation(t *testing.T) {
	// The callee stores then reverts; the caller stores afterwards. Only the
	// caller's write survives.
	cfg := &Config{GasLimit: 1_000_000, State: state.New()}

	callee := common.HexToAddress("0x000000000000000000000000000000000000ca11")
	cfg.State.CreateAccount(callee)
	cfg.State.SetCode(callee, []byte{
		byte(vm.PUSH1), 7,
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.REVERT),
	})

	caller := []byte{
		byte(vm.PUSH1), 0, // retSize
		byte(vm.PUSH1), 0, // retOffset
		byte(vm.PUSH1), 0, // inSize
		byte(vm.PUSH1), 0, // inOffset
		byte(vm.PUSH1), 0, // value
		byte(vm.PUSH20),
	}
	caller = append(caller, callee.Bytes()...)
	caller = append(caller,
		byte(vm.PUSH3), 0x01, 0x86, 0xa0, // gas
		byte(vm.CALL),
		byte(vm.POP),
		byte(vm.PUSH1), 9,
		byte(vm.PUSH1), 1,
		byte(vm.SSTORE),
	)

	result, err := Execute(caller, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	contract := common.BytesToAddress([]byte("contract"))
	assert.Equal(t, common.Hash{}, cfg.State.GetState(callee, common.Hash{}),
		"callee's reverted write must not survive")
	assert.Equal(t, common.Hash{31: 9}, cfg.State.GetState(contract, common.Hash{31: 1}))
}

func TestSelfdestructRefundAndRemoval(t *testing.T) {
	cfg := &Config{GasLimit: 1_000_000, State: state.New()}
	beneficiary := common.HexToAddress("0x000000000000000000000000000000000000babe")

	code := append([]byte{byte(vm.PUSH20)}, beneficiary.Bytes()...)
	code = append(code, byte(vm.SELFDESTRUCT))

	contract := common.BytesToAddress([]byte("contract"))
	result, err := Execute(code, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Positive(t, result.RefundedGas)
	assert.True(t, cfg.State.HasSelfDestructed(contract))
}

func TestKeccakMatchesReference(t *testing.T) {
	// keccak256 of the 32 zero bytes at memory offset 0.
	result, err := Execute([]byte{
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.KECCAK256),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, nil, nil)
	require.NoError(t, err)
	expected := common.HexToHash("0x290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563")
	assert.Equal(t, expected.Bytes(), result.ReturnData)
}

func TestExecuteStaticFaultsOnStore(t *testing.T) {
	cfg := &Config{GasLimit: 100_000, State: state.New(), Static: true}
	result, err := Execute([]byte{
		byte(vm.PUSH1), 1,
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFault, result.Status)
	assert.ErrorIs(t, result.Err, vm.ErrWriteProtection)
	assert.Equal(t, cfg.GasLimit, result.UsedGas)

	contract := common.BytesToAddress([]byte("contract"))
	assert.Equal(t, common.Hash{}, cfg.State.GetState(contract, common.Hash{}))
}

func TestExecuteStaticAllowsReads(t *testing.T) {
	cfg := &Config{GasLimit: 100_000, State: state.New(), Static: true}
	contract := common.BytesToAddress([]byte("contract"))
	cfg.State.SetStorage(contract, common.Hash{}, common.Hash{31: 0x5d})

	result, err := Execute([]byte{
		byte(vm.PUSH1), 0,
		byte(vm.SLOAD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, uint64(0x5d), new(uint256.Int).SetBytes(result.ReturnData).Uint64())
}

func TestExecuteAtDepthLimit(t *testing.T) {
	cfg := &Config{GasLimit: 100_000, State: state.New(), Depth: 1025}
	result, err := Execute([]byte{byte(vm.STOP)}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFault, result.Status)
	assert.ErrorIs(t, result.Err, vm.ErrDepth)
	assert.Zero(t, result.UsedGas, "a depth failure hands all gas back")
}

func TestExecuteRecipient(t *testing.T) {
	cfg := &Config{
		GasLimit:  100_000,
		Recipient: common.HexToAddress("0x0000000000000000000000000000000000005e1f"),
		State:     state.New(),
	}
	result, err := Execute([]byte{
		byte(vm.ADDRESS),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, cfg.Recipient, common.BytesToAddress(result.ReturnData))
	assert.NotEmpty(t, cfg.State.GetCode(cfg.Recipient), "code installed at the configured address")
}

func TestEnvironmentOpcodes(t *testing.T) {
	cfg := &Config{
		GasLimit: 100_000,
		Origin:   common.HexToAddress("0x00000000000000000000000000000000000f00d0"),
		State:    state.New(),
	}
	result, err := Execute([]byte{
		byte(vm.ORIGIN),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Origin, common.BytesToAddress(result.ReturnData))
}
