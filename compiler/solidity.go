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

package compiler

import (
	"bytes"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

var versionRegexp = regexp.MustCompile(`([0-9]+)\.([0-9]+)\.([0-9]+)`)

// Solidity contains information about the solidity compiler.
type Solidity struct {
	Path, Version, FullVersion string
	Major, Minor, Patch        int
}

func (s *Solidity) makeArgs() []string {
	return []string{
		"--combined-json", "bin,bin-runtime,abi",
		"--optimize", // code optimizer switched on
	}
}

// SolidityVersion runs solc and parses its version output.
func SolidityVersion(solc string) (*Solidity, error) {
	if solc == "" {
		solc = "solc"
	}
	path, err := exec.LookPath(solc)
	if err != nil {
		return nil, &CollaboratorError{Err: err}
	}
	var out bytes.Buffer
	cmd := exec.Command(path, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, &CollaboratorError{Err: errors.Wrap(err, "solc --version")}
	}
	matches := versionRegexp.FindStringSubmatch(out.String())
	if len(matches) != 4 {
		return nil, &CollaboratorError{Err: errors.Errorf("can't parse solc version %q", out.String())}
	}
	s := &Solidity{Path: path, FullVersion: out.String(), Version: matches[0]}
	if s.Major, err = strconv.Atoi(matches[1]); err != nil {
		return nil, &CollaboratorError{Err: err}
	}
	if s.Minor, err = strconv.Atoi(matches[2]); err != nil {
		return nil, &CollaboratorError{Err: err}
	}
	if s.Patch, err = strconv.Atoi(matches[3]); err != nil {
		return nil, &CollaboratorError{Err: err}
	}
	return s, nil
}

// CompileSolidity compiles all given Solidity source files.
func CompileSolidity(solc string, sourcefiles ...string) (Artifacts, error) {
	if len(sourcefiles) == 0 {
		return nil, &CollaboratorError{Err: errors.New("no source files")}
	}
	s, err := SolidityVersion(solc)
	if err != nil {
		return nil, err
	}
	args := append(s.makeArgs(), "--")
	cmd := exec.Command(s.Path, append(args, sourcefiles...)...)
	return s.run(cmd, strings.Join(sourcefiles, " "))
}

func (s *Solidity) run(cmd *exec.Cmd, source string) (Artifacts, error) {
	var stderr, stdout bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, &CollaboratorError{Err: errors.Errorf("solc: %v\n%s", err, stderr.Bytes())}
	}
	artifacts, err := ParseCombinedJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	log.Info("Compiled contracts", "solc", s.Version, "sources", source, "contracts", len(artifacts))
	return artifacts, nil
}
