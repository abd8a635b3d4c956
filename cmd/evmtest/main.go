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

// evmtest deploys compiled contracts into an in-memory ledger and runs their
// test functions.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		Aliases: []string{"c"},
	}
	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "execution backend (stack, analyzed)",
		Value: "stack",
	}
	keepGoingFlag = &cli.BoolFlag{
		Name:  "keep-going",
		Usage: "run all tests instead of stopping at the first failure",
	}
	runFlag = &cli.StringFlag{
		Name:  "run",
		Usage: "only run test functions matching this regular expression",
	}
	targetFlag = &cli.StringFlag{
		Name:  "target",
		Usage: "contract holding the test functions (default: last configured contract)",
	}
	gasFlag = &cli.Uint64Flag{
		Name:  "gas",
		Usage: "gas budget of every message",
		Value: 15_000_000,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print results as JSON lines",
	}
	traceFlag = &cli.BoolFlag{
		Name:    "trace",
		Usage:   "write a JSON execution trace of every message to stderr",
		EnvVars: []string{"EVMTEST_TRACE"},
	}
	dumpCodeFlag = &cli.StringFlag{
		Name:  "dumpcode",
		Usage: "write the deployment and runtime code of every contract as hex into this directory",
	}
	solcFlag = &cli.StringFlag{
		Name:  "solc",
		Usage: "solidity compiler to use",
		Value: "solc",
	}
	combinedJSONFlag = &cli.StringFlag{
		Name:  "combined-json",
		Usage: "load contracts from solc --combined-json output instead of compiling",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0-5)",
		Value: 3,
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "write logs to a rotated file instead of stderr",
	}
)

var runFlags = []cli.Flag{
	configFileFlag,
	backendFlag,
	keepGoingFlag,
	runFlag,
	targetFlag,
	gasFlag,
	jsonFlag,
	traceFlag,
	dumpCodeFlag,
	solcFlag,
	combinedJSONFlag,
}

var app = &cli.App{
	Name:  "evmtest",
	Usage: "contract test runner",
	Flags: []cli.Flag{verbosityFlag, logFileFlag},
	Before: func(ctx *cli.Context) error {
		setupLogging(ctx.Int(verbosityFlag.Name), ctx.String(logFileFlag.Name))
		return nil
	},
	// Errors, exit codes included, are returned from Run and handled in main.
	ExitErrHandler: func(*cli.Context, error) {},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "Compile, deploy and test contracts",
			ArgsUsage: "[<source.sol>...]",
			Flags:     runFlags,
			Action:    runCmd,
		},
		{
			Name:      "selector",
			Usage:     "Print the selector of a function signature",
			ArgsUsage: "<signature>",
			Action:    selectorCmd,
		},
		{
			Name:   "dumpconfig",
			Usage:  "Print the effective configuration as TOML",
			Flags:  runFlags,
			Action: dumpConfigCmd,
		},
	},
}

// exitCode maps an error returned by the app to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func main() {
	if err := app.Run(os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(exitCode(err))
	}
}
