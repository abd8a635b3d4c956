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

// Package backendtest provides helpers for running tests against every
// execution backend, plus the fixture contracts those tests execute.
package backendtest

import (
	"os"
	"strings"
)

// Backend names, matching the names the backends report.
const (
	Stack    = "stack"
	Analyzed = "analyzed"
)

// =============================================================================
// Dual-backend testing helpers
// =============================================================================
//
// Usage:
//   - By default, tests run against both backends
//   - Set TEST_BACKEND=stack (or analyzed) to restrict to one of them
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    for _, name := range backendtest.Backends() {
//	        t.Run(name, func(t *testing.T) {
//	            b, err := backend.New(name, backend.Config{})
//	            // test code using b
//	        })
//	    }
//	}

// Backends returns the names of the backends to test.
func Backends() []string {
	if only := strings.TrimSpace(os.Getenv("TEST_BACKEND")); only != "" {
		return []string{only}
	}
	return []string{Stack, Analyzed}
}
