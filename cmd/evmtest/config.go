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
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strings"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/compiler"
	"github.com/WilfredTA/evmodin-test/core/backend"
	"github.com/WilfredTA/evmodin-test/harness"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// contractConfig places one compiled contract in the ledger.
type contractConfig struct {
	Name    string
	Address common.Address
	Balance *math.HexOrDecimal256 `toml:",omitempty"`
	Nonce   *uint64               `toml:",omitempty"`
}

// setupConfig is a configuration message. An argument of the form "@Name"
// stands for the address of the contract Name.
type setupConfig struct {
	Contract  string
	Signature string
	Args      []string `toml:",omitempty"`
}

type runConfig struct {
	Backend   string
	Sender    common.Address
	Gas       uint64
	KeepGoing bool
	Target    string `toml:",omitempty"`
	Filter    string `toml:",omitempty"`

	Solc         string   `toml:",omitempty"`
	Sources      []string `toml:",omitempty"`
	CombinedJSON string   `toml:",omitempty"`
	DumpCode     string   `toml:",omitempty"`

	Contracts []contractConfig
	Setup     []setupConfig `toml:",omitempty"`
}

func defaultConfig() runConfig {
	return runConfig{
		Backend: backend.StackName,
		Gas:     harness.DefaultGas,
		Solc:    "solc",
	}
}

func loadConfig(file string, cfg *runConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line flags on top of it.
func makeConfig(ctx *cli.Context) (runConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(backendFlag.Name) {
		cfg.Backend = ctx.String(backendFlag.Name)
	}
	if ctx.IsSet(keepGoingFlag.Name) {
		cfg.KeepGoing = ctx.Bool(keepGoingFlag.Name)
	}
	if ctx.IsSet(runFlag.Name) {
		cfg.Filter = ctx.String(runFlag.Name)
	}
	if ctx.IsSet(targetFlag.Name) {
		cfg.Target = ctx.String(targetFlag.Name)
	}
	if ctx.IsSet(gasFlag.Name) {
		cfg.Gas = ctx.Uint64(gasFlag.Name)
	}
	if ctx.IsSet(solcFlag.Name) {
		cfg.Solc = ctx.String(solcFlag.Name)
	}
	if ctx.IsSet(combinedJSONFlag.Name) {
		cfg.CombinedJSON = ctx.String(combinedJSONFlag.Name)
	}
	if ctx.IsSet(dumpCodeFlag.Name) {
		cfg.DumpCode = ctx.String(dumpCodeFlag.Name)
	}
	if ctx.Args().Len() > 0 {
		cfg.Sources = ctx.Args().Slice()
	}
	return cfg, nil
}

// contracts resolves the configured contracts against the compiler output.
func (cfg *runConfig) contracts(artifacts compiler.Artifacts) ([]harness.Contract, error) {
	contracts := make([]harness.Contract, 0, len(cfg.Contracts))
	for _, c := range cfg.Contracts {
		a, err := artifacts.Lookup(c.Name)
		if err != nil {
			return nil, err
		}
		contract := harness.Contract{
			Name:      a.Name,
			Address:   c.Address,
			Code:      a.Runtime,
			InitCode:  a.Deploy,
			Functions: a.Functions,
			Nonce:     c.Nonce,
		}
		if c.Balance != nil {
			balance, overflow := uint256.FromBig((*big.Int)(c.Balance))
			if overflow {
				return nil, fmt.Errorf("contract %s: balance overflows 256 bits", c.Name)
			}
			contract.Balance = balance
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// setups parses the configuration messages. Arguments are parsed according to
// the parameter types of the signature.
func (cfg *runConfig) setups() ([]harness.Setup, error) {
	addresses := make(map[string]common.Address, len(cfg.Contracts))
	for _, c := range cfg.Contracts {
		addresses[c.Name] = c.Address
	}
	setups := make([]harness.Setup, 0, len(cfg.Setup))
	for _, s := range cfg.Setup {
		fn, err := abicodec.ParseSignature(s.Signature)
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(s.Args))
		for i, arg := range s.Args {
			texts[i] = arg
			if name, ok := strings.CutPrefix(arg, "@"); ok {
				addr, known := addresses[name]
				if !known {
					return nil, fmt.Errorf("setup %s: %w: %s", s.Signature, harness.ErrUnknownContract, name)
				}
				texts[i] = addr.Hex()
			}
		}
		args, err := fn.ParseArgs(texts)
		if err != nil {
			return nil, fmt.Errorf("setup %s: %w", s.Signature, err)
		}
		setups = append(setups, harness.Setup{Contract: s.Contract, Signature: fn.Canonical(), Args: args})
	}
	return setups, nil
}
