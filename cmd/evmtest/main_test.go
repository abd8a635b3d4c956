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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/WilfredTA/evmodin-test/internal/backendtest"
	"github.com/WilfredTA/evmodin-test/internal/evmasm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const fixtureConfig = `
Backend = "analyzed"
KeepGoing = true

[[Contracts]]
Name = "Callee"
Address = "0x1000000000000000000000000000000000000000"

[[Contracts]]
Name = "Caller"
Address = "0x2000000000000000000000000000000000000000"
Balance = "0x10"
Nonce = 3

[[Setup]]
Contract = "Caller"
Signature = "setCalleeTarget(address)"
Args = ["@Callee"]
`

const edgeConfig = `
Gas = 1000000

[[Contracts]]
Name = "Edge"
Address = "0x3000000000000000000000000000000000000000"
`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// writeCombinedJSON stores contracts in the format of solc --combined-json.
func writeCombinedJSON(t *testing.T, dir string, contracts ...evmasm.Contract) string {
	t.Helper()
	out := map[string]interface{}{}
	for _, c := range contracts {
		out["fixtures.sol:"+c.Name] = map[string]interface{}{
			"bin":         hex.EncodeToString(c.Init),
			"bin-runtime": hex.EncodeToString(c.Runtime),
			"abi":         json.RawMessage(c.ABI),
		}
	}
	blob, err := json.Marshal(map[string]interface{}{"contracts": out})
	require.NoError(t, err)
	return writeFile(t, dir, "combined.json", blob)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "harness.toml", []byte(fixtureConfig))
	cfg := defaultConfig()
	require.NoError(t, loadConfig(path, &cfg))

	assert.Equal(t, "analyzed", cfg.Backend)
	assert.True(t, cfg.KeepGoing)
	assert.Equal(t, uint64(15_000_000), cfg.Gas)
	require.Len(t, cfg.Contracts, 2)
	assert.Equal(t, backendtest.CallerAddress, cfg.Contracts[1].Address)
	require.NotNil(t, cfg.Contracts[1].Nonce)
	assert.Equal(t, uint64(3), *cfg.Contracts[1].Nonce)
	assert.Nil(t, cfg.Contracts[0].Balance)

	setups, err := cfg.setups()
	require.NoError(t, err)
	require.Len(t, setups, 1)
	assert.Equal(t, "setCalleeTarget(address)", setups[0].Signature)
	assert.Equal(t, []interface{}{backendtest.CalleeAddress}, setups[0].Args)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	err := loadConfig(writeFile(t, dir, "bogus.toml", []byte("Bogus = 1\n")), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bogus")
	assert.Contains(t, err.Error(), "bogus.toml")

	// Every key must name a field; there are no silently ignored keys.
	err = loadConfig(writeFile(t, dir, "verbose.toml", []byte("Verbose = true\n")), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Verbose")

	assert.Error(t, loadConfig(filepath.Join(dir, "missing.toml"), &cfg))
}

func TestSetupUnknownContract(t *testing.T) {
	cfg := defaultConfig()
	cfg.Setup = []setupConfig{{Contract: "Caller", Signature: "setCalleeTarget(address)", Args: []string{"@Nobody"}}}
	_, err := cfg.setups()
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	combined := writeCombinedJSON(t, dir, backendtest.Callee(), backendtest.Caller())
	config := writeFile(t, dir, "harness.toml", []byte(fixtureConfig))
	dump := filepath.Join(dir, "code")

	err := app.Run([]string{"evmtest", "--verbosity", "1", "run", "--config", config, "--combined-json", combined, "--dumpcode", dump})
	require.NoError(t, err)

	runtime, err := os.ReadFile(filepath.Join(dump, "Caller.bin-runtime"))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(backendtest.Caller().Runtime), string(runtime))
}

// failOnExit makes any attempt of the app to end the process fail the test.
func failOnExit(t *testing.T) {
	t.Helper()
	prev := cli.OsExiter
	cli.OsExiter = func(code int) {
		t.Fatalf("app tried to exit with status %d", code)
	}
	t.Cleanup(func() { cli.OsExiter = prev })
}

func TestRunCommandFailingTests(t *testing.T) {
	failOnExit(t)
	dir := t.TempDir()
	combined := writeCombinedJSON(t, dir, backendtest.Edge())
	config := writeFile(t, dir, "harness.toml", []byte(edgeConfig))

	for _, args := range [][]string{
		{"--keep-going"},
		{"--json", "--backend", "analyzed"},
	} {
		err := app.Run(append([]string{"evmtest", "--verbosity", "1", "run", "--config", config, "--combined-json", combined}, args...))
		var exit cli.ExitCoder
		require.ErrorAs(t, err, &exit, "args %v", args)
		assert.Equal(t, exitTestsFailed, exit.ExitCode())
		assert.Equal(t, exitTestsFailed, exitCode(err))
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("bad config")))
	assert.Equal(t, 3, exitCode(cli.Exit("", 3)))
	assert.Equal(t, 3, exitCode(fmt.Errorf("wrapped: %w", cli.Exit("", 3))))
}

func TestRunCommandMissingContract(t *testing.T) {
	failOnExit(t)
	dir := t.TempDir()
	combined := writeCombinedJSON(t, dir, backendtest.Callee())
	config := writeFile(t, dir, "harness.toml", []byte(fixtureConfig))

	err := app.Run([]string{"evmtest", "--verbosity", "1", "run", "--config", config, "--combined-json", combined})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Caller")
}

func TestDumpConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.Sender = common.HexToAddress("0x42")
	cfg.Contracts = []contractConfig{{Name: "Caller", Address: backendtest.CallerAddress}}

	out, err := tomlSettings.Marshal(&cfg)
	require.NoError(t, err)

	loaded := defaultConfig()
	require.NoError(t, loadConfig(writeFile(t, dir, "dump.toml", out), &loaded))
	assert.Equal(t, cfg, loaded)
}

func TestLogFile(t *testing.T) {
	dir := t.TempDir()
	combined := writeCombinedJSON(t, dir, backendtest.Callee(), backendtest.Caller())
	config := writeFile(t, dir, "harness.toml", []byte(fixtureConfig))
	logFile := filepath.Join(dir, "evmtest.log")

	err := app.Run([]string{"evmtest", "--verbosity", "3", "--log.file", logFile, "run", "--config", config, "--combined-json", combined})
	require.NoError(t, err)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Deployed contract")
}

func TestSelectorCommand(t *testing.T) {
	require.NoError(t, app.Run([]string{"evmtest", "selector", "setGreeting(bytes32)"}))
	assert.Error(t, app.Run([]string{"evmtest", "selector"}))
}
