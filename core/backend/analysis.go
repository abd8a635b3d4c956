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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/opcodeCompiler/compiler"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
)

// AnalyzedCode is the reusable result of analyzing one code object: the
// engine's fused form of the code. Jump destinations are analyzed by the
// engine itself, against the fused code.
type AnalyzedCode struct {
	Hash common.Hash
	Code []byte

	// Optimized is the engine's fused form of the code, or nil if the code
	// could not be optimized.
	Optimized []byte

	// Err is the reason Optimized is nil.
	Err error
}

// pending reports whether optimization was skipped only because the engine
// had it switched off at the time, as it does while running init code.
func (c *AnalyzedCode) pending() bool {
	return errors.Is(c.Err, compiler.ErrOptimizedDisabled)
}

// optimize hands the code to the engine, which stores the fused form in its
// own store keyed by code hash. The interpreter loads it from there when the
// code runs.
func (c *AnalyzedCode) optimize() {
	optimized, err := compiler.GenOrRewriteOptimizedCode(c.Hash, c.Code)
	if err != nil {
		log.Debug("Code optimization failed", "hash", c.Hash, "err", err)
		c.Optimized, c.Err = nil, err
		return
	}
	c.Optimized, c.Err = optimized, nil
	analysisOptimizeCounter.Inc(1)
}

// analyzer is the per-backend cache of analyzed code, keyed by code hash. An
// entry is generated once and then served from the cache; the engine's store
// of fused code is shared by the whole process.
type analyzer struct {
	cache *lru.Cache
}

func newAnalyzer(size int) (*analyzer, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &analyzer{cache: cache}, nil
}

// analyze returns the cached analysis of code, analyzing it on first use. The
// optimized code is generated synchronously so the first execution already
// runs it. Entries produced while optimization was switched off are retried.
func (a *analyzer) analyze(hash common.Hash, code []byte) *AnalyzedCode {
	if cached, ok := a.cache.Get(hash); ok {
		analysisHitCounter.Inc(1)
		c := cached.(*AnalyzedCode)
		if c.pending() && compiler.IsEnabled() {
			c.optimize()
		}
		return c
	}
	analysisMissCounter.Inc(1)

	c := &AnalyzedCode{Hash: hash, Code: common.CopyBytes(code)}
	c.optimize()
	a.cache.Add(hash, c)
	log.Trace("Analyzed code", "hash", hash, "size", len(code), "optimized", c.Optimized != nil)
	return c
}

func (a *analyzer) get(hash common.Hash) (*AnalyzedCode, bool) {
	cached, ok := a.cache.Peek(hash)
	if !ok {
		return nil, false
	}
	return cached.(*AnalyzedCode), true
}

func (a *analyzer) len() int {
	return a.cache.Len()
}
