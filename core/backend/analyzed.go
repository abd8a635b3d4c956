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
	"time"

	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/opcodeCompiler/compiler"
	"github.com/ethereum/go-ethereum/core/vm"
)

// AnalyzedName is the name of the analyzed-bytecode backend.
const AnalyzedName = "analyzed"

// AnalyzedBackend executes messages with the optimizing interpreter directly
// against the ledger. Every code object reached during execution, including
// the code of nested calls, is analyzed once and cached by code hash.
//
// The analysis cache belongs to the backend and decides when fused code is
// generated. The fused code itself lives in the engine's process-wide store,
// and switching optimization on is process-wide too.
type AnalyzedBackend struct {
	cfg      Config
	analyzer *analyzer
}

// NewAnalyzed creates an analyzed-bytecode backend with its own code cache.
func NewAnalyzed(cfg Config) (*AnalyzedBackend, error) {
	cfg.setDefaults()
	a, err := newAnalyzer(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	compiler.EnableOptimization()
	return &AnalyzedBackend{cfg: cfg, analyzer: a}, nil
}

func (b *AnalyzedBackend) Name() string { return AnalyzedName }

// Execute implements Backend.
func (b *AnalyzedBackend) Execute(l *ledger.Ledger, msg *Message) (*Outcome, error) {
	if err := validate(l, msg); err != nil {
		return nil, err
	}
	defer analyzedExecuteTimer.UpdateSince(time.Now())

	host := newHostState(l, b.analyzer)
	evm := newEVM(&b.cfg, host, msg, vm.Config{
		Tracer:                    b.cfg.Tracer,
		EnableOpcodeOptimizations: true,
	})
	prepare(&b.cfg, host, msg)

	snapshot := host.Snapshot()
	ret, leftOver, created, err := run(evm, msg)
	out := newOutcome(msg, ret, leftOver, created, err)
	if out.Status == Success {
		host.Finalise(true)
	} else {
		host.RevertToSnapshot(snapshot)
	}
	countStatus(out.Status)
	return out, nil
}

// Analysis returns the cached analysis of the code with the given hash.
func (b *AnalyzedBackend) Analysis(hash common.Hash) (*AnalyzedCode, bool) {
	return b.analyzer.get(hash)
}

// Cached returns the number of analyzed code objects in the cache.
func (b *AnalyzedBackend) Cached() int {
	return b.analyzer.len()
}
