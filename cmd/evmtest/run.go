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

package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/compiler"
	"github.com/WilfredTA/evmodin-test/core/backend"
	"github.com/WilfredTA/evmodin-test/harness"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// exitTestsFailed is the exit status of a run in which a test failed.
const exitTestsFailed = 1

// loadArtifacts obtains the compiled contracts, either from a combined-json
// file or by running solc on the configured sources.
func loadArtifacts(cfg *runConfig) (compiler.Artifacts, error) {
	if cfg.CombinedJSON != "" {
		return compiler.LoadCombinedJSON(cfg.CombinedJSON)
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no sources given and no --combined-json file")
	}
	return compiler.CompileSolidity(cfg.Solc, cfg.Sources...)
}

func newRunner(ctx *cli.Context, cfg *runConfig, reporter *harness.Reporter) (*harness.Runner, error) {
	var bcfg backend.Config
	if ctx.Bool(traceFlag.Name) {
		bcfg.Tracer = logger.NewJSONLogger(&logger.Config{EnableReturnData: true}, os.Stderr)
	}
	b, err := backend.New(cfg.Backend, bcfg)
	if err != nil {
		return nil, err
	}
	opts := []harness.Option{
		harness.WithSender(cfg.Sender),
		harness.WithGas(cfg.Gas),
		harness.WithResultHook(reporter.Report),
	}
	if cfg.Target != "" {
		opts = append(opts, harness.WithTarget(cfg.Target))
	}
	if cfg.KeepGoing {
		opts = append(opts, harness.WithKeepGoing())
	}
	if cfg.Filter != "" {
		re, err := regexp.Compile(cfg.Filter)
		if err != nil {
			return nil, errors.Wrap(err, "invalid --run pattern")
		}
		opts = append(opts, harness.WithFilter(re))
	}
	return harness.NewRunner(b, opts...), nil
}

func runCmd(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	// Everything the compiler has to provide is resolved before the ledger
	// is touched.
	artifacts, err := loadArtifacts(&cfg)
	if err != nil {
		return err
	}
	contracts, err := cfg.contracts(artifacts)
	if err != nil {
		return err
	}
	setups, err := cfg.setups()
	if err != nil {
		return err
	}
	if cfg.DumpCode != "" {
		for _, c := range cfg.Contracts {
			a, _ := artifacts.Lookup(c.Name)
			if err := compiler.WriteHex(cfg.DumpCode, a); err != nil {
				return err
			}
		}
	}

	reporter := harness.NewReporter(os.Stdout)
	if ctx.Bool(jsonFlag.Name) {
		reporter = harness.NewJSONReporter(os.Stdout)
	}
	runner, err := newRunner(ctx, &cfg, reporter)
	if err != nil {
		return err
	}
	log.Info("Starting test run", "backend", cfg.Backend, "contracts", len(contracts), "setup", len(setups))

	results, err := runner.Run(contracts, setups)
	var aerr *harness.AssertionError
	if err != nil && !(errors.As(err, &aerr) && aerr.Phase == harness.PhaseDispatch) {
		return err
	}
	reporter.Summary(results)
	if err := reporter.Err(); err != nil {
		return errors.Wrap(err, "writing report")
	}
	if results.Failed() > 0 {
		return cli.Exit("", exitTestsFailed)
	}
	return nil
}

func selectorCmd(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return errors.New("expected exactly one signature")
	}
	fn, err := abicodec.ParseSignature(ctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(fn.Selector.Hex())
	return nil
}

func dumpConfigCmd(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}
