// Copyright 2024 The evmodin-test Authors
// This file is part of the evmodin-test library.
//
// The evmodin-test library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evmodin-test library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evmodin-test library. If not, see <http://www.gnu.org/licenses/>.

package backend

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Config is the execution environment shared by all messages of a backend.
type Config struct {
	ChainConfig *params.ChainConfig
	Coinbase    common.Address
	BlockNumber *big.Int
	Time        uint64
	GasLimit    uint64
	Difficulty  *big.Int
	BaseFee     *big.Int
	Random      *common.Hash

	// Tracer receives the engine's tracing events for every message.
	Tracer *tracing.Hooks

	// CacheSize bounds the number of analyzed code objects kept by the
	// analyzed backend.
	CacheSize int
}

const defaultCacheSize = 256

// setDefaults fills in the zero fields: all forks active from genesis on
// chain id 1, an empty coinbase and a zero base fee. The block time stays at
// zero unless configured so that runs are reproducible.
func (cfg *Config) setDefaults() {
	if cfg.ChainConfig == nil {
		cfg.ChainConfig = params.MergedTestChainConfig
	}
	if cfg.BlockNumber == nil {
		cfg.BlockNumber = new(big.Int)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 30_000_000
	}
	if cfg.Difficulty == nil {
		cfg.Difficulty = new(big.Int)
	}
	if cfg.BaseFee == nil {
		cfg.BaseFee = new(big.Int)
	}
	if cfg.Random == nil {
		cfg.Random = new(common.Hash)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
}

func (cfg *Config) rules() params.Rules {
	return cfg.ChainConfig.Rules(cfg.BlockNumber, cfg.Random != nil, cfg.Time)
}

func canTransfer(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func transfer(db vm.StateDB, sender, recipient common.Address, amount *uint256.Int) {
	db.SubBalance(sender, amount, tracing.BalanceChangeTransfer)
	db.AddBalance(recipient, amount, tracing.BalanceChangeTransfer)
}

// getHash returns a fake but deterministic hash for block n.
func getHash(n uint64) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(new(big.Int).SetUint64(n).String())))
}

func newBlockContext(cfg *Config) vm.BlockContext {
	return vm.BlockContext{
		CanTransfer: canTransfer,
		Transfer:    transfer,
		GetHash:     getHash,
		Coinbase:    cfg.Coinbase,
		GasLimit:    cfg.GasLimit,
		BlockNumber: cfg.BlockNumber,
		Time:        cfg.Time,
		Difficulty:  cfg.Difficulty,
		BaseFee:     cfg.BaseFee,
		BlobBaseFee: new(big.Int),
		Random:      cfg.Random,
	}
}

// newEVM creates an interpreter for one message. Gas is free: the gas price is
// zero and the base fee is ignored.
func newEVM(cfg *Config, db vm.StateDB, msg *Message, vmConfig vm.Config) *vm.EVM {
	vmConfig.NoBaseFee = true
	evm := vm.NewEVM(newBlockContext(cfg), db, cfg.ChainConfig, vmConfig)
	evm.SetTxContext(vm.TxContext{
		Origin:   msg.Sender,
		GasPrice: new(big.Int),
	})
	return evm
}

// prepare resets the per-message state of db: access list and transient
// storage.
func prepare(cfg *Config, db vm.StateDB, msg *Message) {
	var (
		rules = cfg.rules()
		dest  *common.Address
	)
	if msg.Kind == Call {
		dest = &msg.Destination
	}
	db.Prepare(rules, msg.Sender, cfg.Coinbase, dest, vm.ActivePrecompiles(rules), nil)
}

// run applies msg to the interpreter and returns the raw results.
func run(evm *vm.EVM, msg *Message) (ret []byte, leftOver uint64, created common.Address, err error) {
	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}
	if msg.Depth > int(params.CallCreateDepth) {
		return nil, msg.Gas, common.Address{}, vm.ErrDepth
	}
	sender := msg.Sender
	switch {
	case msg.Kind == Create:
		ret, created, leftOver, err = evm.Create(sender, msg.Input, msg.Gas, value)
	case msg.Static:
		ret, leftOver, err = evm.StaticCall(sender, msg.Destination, msg.Input, msg.Gas)
	default:
		ret, leftOver, err = evm.Call(sender, msg.Destination, msg.Input, msg.Gas, value)
	}
	return ret, leftOver, created, err
}

// classify maps an engine error to a status. Only an explicit revert is a
// Revert; every other error is a Failure.
func classify(err error) Status {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, vm.ErrExecutionReverted):
		return Revert
	default:
		return Failure
	}
}

// newOutcome assembles the outcome of a finished message.
func newOutcome(msg *Message, ret []byte, leftOver uint64, created common.Address, err error) *Outcome {
	out := &Outcome{
		Status:  classify(err),
		Output:  common.CopyBytes(ret),
		GasUsed: msg.Gas - leftOver,
		Err:     err,
	}
	if out.Status == Success && msg.Kind == Create {
		out.Created = created
	}
	log.Debug("Executed message", "kind", msg.Kind, "to", msg.Destination, "status", out.Status, "gas", out.GasUsed, "err", err)
	return out
}
