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

package harness

import (
	"strings"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/core/backend"
)

const (
	testPrefix = "test"
	failMarker = "testFail"
	setUpName  = "setUp"
)

// TestCase is a discovered test function and the status it must end with.
type TestCase struct {
	Contract string
	Function abicodec.FunctionSignature
	Expected backend.Status
}

// IsTest reports whether the named function is a test function.
func IsTest(name string) bool {
	return strings.HasPrefix(name, testPrefix)
}

// ExpectedStatus returns the status a test function must end with: Revert if
// its name contains "testFail" anywhere, Success otherwise. The match is
// case-sensitive and not anchored, so "testRuntestFailover" expects a Revert
// while "testRunTestFailover" does not.
func ExpectedStatus(name string) backend.Status {
	if strings.Contains(name, failMarker) {
		return backend.Revert
	}
	return backend.Success
}

// NewTestCase creates the test case for fn of the named contract.
func NewTestCase(contract string, fn abicodec.FunctionSignature) TestCase {
	return TestCase{
		Contract: contract,
		Function: fn,
		Expected: ExpectedStatus(fn.Name),
	}
}

func (tc TestCase) String() string {
	return tc.Contract + "." + tc.Function.Canonical()
}
