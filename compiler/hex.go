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
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// WriteHex stores the deployment and runtime code of a as hex text in
// <dir>/<name>.bin and <dir>/<name>.bin-runtime.
func WriteHex(dir string, a *Artifact) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	files := map[string][]byte{
		a.Name + ".bin":         a.Deploy,
		a.Name + ".bin-runtime": a.Runtime,
	}
	for name, code := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(hex.EncodeToString(code)), 0644); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	log.Debug("Wrote contract code", "name", a.Name, "dir", dir)
	return nil
}
