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
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/pkg/errors"
)

// solcOutput is the combined-json output of solc. The ABI is a JSON string in
// solc < 0.8 and a JSON array since.
type solcOutput struct {
	Contracts map[string]struct {
		Bin        string          `json:"bin"`
		BinRuntime string          `json:"bin-runtime"`
		Abi        json.RawMessage `json:"abi"`
	} `json:"contracts"`
	Version string `json:"version"`
}

// LoadCombinedJSON reads a file produced by solc --combined-json.
func LoadCombinedJSON(path string) (Artifacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CollaboratorError{Err: errors.Wrap(err, "reading combined-json")}
	}
	return ParseCombinedJSON(data)
}

// ParseCombinedJSON parses the output of solc --combined-json bin,bin-runtime,abi.
func ParseCombinedJSON(data []byte) (Artifacts, error) {
	var output solcOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, &CollaboratorError{Err: errors.Wrap(err, "invalid combined-json")}
	}
	artifacts := make(Artifacts, len(output.Contracts))
	for qualified, info := range output.Contracts {
		source, name := splitName(qualified)
		abi, err := abiJSON(info.Abi)
		if err != nil {
			return nil, &CollaboratorError{Contract: qualified, Err: err}
		}
		fns, err := abicodec.ParseABI(abi)
		if err != nil {
			return nil, &CollaboratorError{Contract: qualified, Err: err}
		}
		deploy, err := decodeHex(info.Bin)
		if err != nil {
			return nil, &CollaboratorError{Contract: qualified, Err: errors.Wrap(err, "bin")}
		}
		runtime, err := decodeHex(info.BinRuntime)
		if err != nil {
			return nil, &CollaboratorError{Contract: qualified, Err: errors.Wrap(err, "bin-runtime")}
		}
		artifacts.add(&Artifact{
			Name:      name,
			Source:    source,
			Deploy:    deploy,
			Runtime:   runtime,
			ABI:       abi,
			Functions: fns,
		})
	}
	return artifacts, nil
}

func abiJSON(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("[]"), nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "abi")
	}
	return []byte(s), nil
}

// decodeHex decodes compiler hex output. Unlinked library placeholders are
// reported as such.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if strings.Contains(s, "__") {
		return nil, errors.New("unlinked library reference")
	}
	return hex.DecodeString(s)
}
