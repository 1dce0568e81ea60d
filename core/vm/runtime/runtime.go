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
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/Fantom-foundation/go-fvm/core/state"
	"github.com/Fantom-foundation/go-fvm/core/vm"
)

// Config is a basic type specifying certain configuration flags for running
// the EVM.
type Config struct {
	ChainID     *big.Int
	Origin      common.Address
	Recipient   common.Address // address the code executes at; a fixed scratch address when zero
	Coinbase    common.Address
	BlockNumber *big.Int
	Time        uint64
	GasLimit    uint64
	GasPrice    *big.Int
	Value       *uint256.Int
	BaseFee     *big.Int
	Random      common.Hash

	// Static runs the top-level frame in read-only mode: any state mutation
	// anywhere in the call subtree faults with ErrWriteProtection.
	Static bool
	// Depth is the call depth the top-level frame starts at, for executions
	// resuming inside an existing call stack.
	Depth int

	State     *state.MemoryStateDB
	GetHashFn func(n uint64) common.Hash
}

// Status classifies how a transaction-level execution ended.
type Status uint8

const (
	// StatusSuccess means the top-level frame halted normally and its state
	// changes are kept.
	StatusSuccess Status = iota
	// StatusRevert means the top-level frame reverted; state changes are
	// rolled back but remaining gas is returned.
	StatusRevert
	// StatusFault covers every other frame failure: out of gas, invalid
	// jumps, invalid opcodes, stack violations. All gas is consumed.
	StatusFault
)

// ExecutionResult is the outcome of one top-level execution, with the gas
// refund already settled.
type ExecutionResult struct {
	Status      Status
	UsedGas     uint64 // gas consumed net of the applied refund
	RefundedGas uint64 // portion of the refund counter that was applied
	ReturnData  []byte
	Logs        []*types.Log
	Err         error // frame error for revert/fault outcomes, nil on success
}

// sets defaults on the config
func setDefaults(cfg *Config) {
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(1)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = math.MaxUint64
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = new(big.Int)
	}
	if cfg.Value == nil {
		cfg.Value = new(uint256.Int)
	}
	if cfg.BlockNumber == nil {
		cfg.BlockNumber = new(big.Int)
	}
	if cfg.BaseFee == nil {
		cfg.BaseFee = big.NewInt(params.InitialBaseFee)
	}
	if cfg.GetHashFn == nil {
		cfg.GetHashFn = func(n uint64) common.Hash {
			return common.BytesToHash(crypto.Keccak256([]byte(new(big.Int).SetUint64(n).String())))
		}
	}
	if cfg.State == nil {
		cfg.State = state.New()
	}
}

// finish settles the refund counter against the gas actually used and
// classifies the outcome. Fatal errors are returned as the second value and
// void the result.
func finish(cfg *Config, ret []byte, leftOverGas uint64, err error) (*ExecutionResult, error) {
	if vm.IsFatal(err) {
		return nil, err
	}
	gasUsed := cfg.GasLimit - leftOverGas

	// Apply the refund counter, capped to a fifth of the gas used. A
	// reverted or faulted transaction holds no refunds: the journal rollback
	// already discarded them.
	refund := gasUsed / params.RefundQuotientEIP3529
	if sr := cfg.State.GetRefund(); sr < refund {
		refund = sr
	}
	gasUsed -= refund

	result := &ExecutionResult{
		Status:      StatusSuccess,
		UsedGas:     gasUsed,
		RefundedGas: refund,
		ReturnData:  ret,
		Logs:        cfg.State.Logs(),
		Err:         err,
	}
	switch {
	case err == nil:
	case errors.Is(err, vm.ErrExecutionReverted):
		result.Status = StatusRevert
	default:
		result.Status = StatusFault
	}
	return result, nil
}

// Execute executes the code using the input as call data during the execution.
// It returns the execution result and an error if one occurred in the host
// itself.
//
// Execute sets up an in-memory, temporary, environment for the execution of
// the given code. It makes sure that it's restored to its original state
// afterwards.
func Execute(code, input []byte, cfg *Config) (*ExecutionResult, error) {
	if cfg == nil {
		cfg = new(Config)
	}
	setDefaults(cfg)

	var (
		address = cfg.Recipient
		vmenv   = NewEnv(cfg)
		sender  = vm.AccountRef(cfg.Origin)
	)
	if address == (common.Address{}) {
		address = common.BytesToAddress([]byte("contract"))
	}
	// The transaction's touched accounts start out warm.
	cfg.State.AddAddressToAccessList(cfg.Origin)
	cfg.State.AddAddressToAccessList(address)
	cfg.State.AddAddressToAccessList(cfg.Coinbase)

	// set the receiver's (the executing contract) code for execution.
	cfg.State.CreateAccount(address)
	cfg.State.SetCode(address, code)
	// Call the code with the given configuration.
	var (
		ret         []byte
		leftOverGas uint64
		err         error
	)
	if cfg.Static {
		ret, leftOverGas, err = vmenv.StaticCall(sender, address, input, cfg.GasLimit)
	} else {
		ret, leftOverGas, err = vmenv.Call(sender, address, input, cfg.GasLimit, cfg.Value)
	}
	return finish(cfg, ret, leftOverGas, err)
}

// Create executes the code as deployment code and returns the deployed
// contract address along with the execution result.
func Create(input []byte, cfg *Config) (*ExecutionResult, common.Address, error) {
	if cfg == nil {
		cfg = new(Config)
	}
	setDefaults(cfg)

	var (
		vmenv  = NewEnv(cfg)
		sender = vm.AccountRef(cfg.Origin)
	)
	cfg.State.AddAddressToAccessList(cfg.Origin)
	cfg.State.AddAddressToAccessList(cfg.Coinbase)

	// Call the code with the given configuration.
	ret, address, leftOverGas, err := vmenv.Create(
		sender,
		input,
		cfg.GasLimit,
		cfg.Value,
	)
	result, fatal := finish(cfg, ret, leftOverGas, err)
	if fatal != nil {
		return nil, common.Address{}, fatal
	}
	return result, address, nil
}

// Call executes the code given by the contract's address. It will return the
// execution result.
//
// Call, unlike Execute, requires a config and also requires the State field
// to be set.
func Call(address common.Address, input []byte, cfg *Config) (*ExecutionResult, error) {
	setDefaults(cfg)

	var (
		vmenv  = NewEnv(cfg)
		sender = vm.AccountRef(cfg.Origin)
	)
	cfg.State.AddAddressToAccessList(cfg.Origin)
	cfg.State.AddAddressToAccessList(address)
	cfg.State.AddAddressToAccessList(cfg.Coinbase)

	// Call the code with the given configuration.
	var (
		ret         []byte
		leftOverGas uint64
		err         error
	)
	if cfg.Static {
		ret, leftOverGas, err = vmenv.StaticCall(sender, address, input, cfg.GasLimit)
	} else {
		ret, leftOverGas, err = vmenv.Call(sender, address, input, cfg.GasLimit, cfg.Value)
	}
	return finish(cfg, ret, leftOverGas, err)
}
