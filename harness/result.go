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
	"github.com/WilfredTA/evmodin-test/core/backend"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TestResult is the classified outcome of one test function.
type TestResult struct {
	Contract string         `json:"contract"`
	Name     string         `json:"name"`
	Expected backend.Status `json:"expected"`
	Actual   backend.Status `json:"actual"`
	Pass     bool           `json:"pass"`
	Reason   string         `json:"reason,omitempty"`
	Output   hexutil.Bytes  `json:"output,omitempty"`
	GasUsed  uint64         `json:"gasUsed"`
	Err      string         `json:"error,omitempty"`
}

// newTestResult classifies out against the expectation of tc. Only an explicit
// revert satisfies an expected Revert; other abnormal halts never pass.
func newTestResult(tc TestCase, out *backend.Outcome) TestResult {
	res := TestResult{
		Contract: tc.Contract,
		Name:     tc.Function.Canonical(),
		Expected: tc.Expected,
		Actual:   out.Status,
		Pass:     out.Status == tc.Expected,
		Reason:   Reason(out),
		Output:   out.Output,
		GasUsed:  out.GasUsed,
	}
	if out.Err != nil {
		res.Err = out.Err.Error()
	}
	return res
}

// Results is the ordered list of test results of a run.
type Results []TestResult

// Passed returns the number of passing tests.
func (rs Results) Passed() int {
	var n int
	for _, r := range rs {
		if r.Pass {
			n++
		}
	}
	return n
}

// Failed returns the number of failing tests.
func (rs Results) Failed() int {
	return len(rs) - rs.Passed()
}

// Failures returns the failing tests.
func (rs Results) Failures() Results {
	var out Results
	for _, r := range rs {
		if !r.Pass {
			out = append(out, r)
		}
	}
	return out
}
