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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/core/backend"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// Reason describes why an execution ended the way it did. Revert data is
// decoded as Error(string), then as Panic(uint256), and shown as raw hex if it
// is neither. Failures are described by the engine's halt reason.
func Reason(out *backend.Outcome) string {
	switch out.Status {
	case backend.Revert:
		return RevertReason(out.Output)
	case backend.Failure:
		if out.Err != nil {
			return out.Err.Error()
		}
	}
	return ""
}

// RevertReason decodes revert data. It never fails.
func RevertReason(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if reason, err := abicodec.DecodeRevertReason(data); err == nil {
		return strconv.Quote(reason)
	}
	if code, desc, err := abicodec.DecodePanic(data); err == nil {
		return fmt.Sprintf("panic 0x%02x: %s", code, desc)
	}
	return hexutil.Encode(data)
}

var (
	passColor = color.New(color.FgGreen).SprintFunc()
	failColor = color.New(color.FgRed).SprintFunc()
)

// Reporter prints test results, either as text or as JSON lines.
type Reporter struct {
	w     io.Writer
	json  bool
	color bool
	err   error
}

// NewReporter creates a text reporter writing to w. Output is colored when w
// is a terminal.
func NewReporter(w io.Writer) *Reporter {
	r := &Reporter{w: w}
	if f, ok := w.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

// NewJSONReporter creates a reporter printing one JSON object per result.
func NewJSONReporter(w io.Writer) *Reporter {
	return &Reporter{w: w, json: true}
}

func (r *Reporter) tag(pass bool) string {
	switch {
	case pass && r.color:
		return "[" + passColor("PASS") + "]"
	case pass:
		return "[PASS]"
	case r.color:
		return "[" + failColor("FAIL") + "]"
	default:
		return "[FAIL]"
	}
}

// Line formats a single result.
func (r *Reporter) Line(res TestResult) string {
	line := fmt.Sprintf("%s %s.%s (gas: %d) actual=%v expected=%v", r.tag(res.Pass), res.Contract, res.Name, res.GasUsed, res.Actual, res.Expected)
	if res.Reason != "" {
		line += ", reason=" + res.Reason
	}
	return line
}

// Report prints a single result.
func (r *Reporter) Report(res TestResult) {
	if r.json {
		r.printJSON(res)
		return
	}
	fmt.Fprintln(r.w, r.Line(res))
}

func (r *Reporter) printJSON(v interface{}) {
	blob, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to encode report", "err", err)
		if r.err == nil {
			r.err = err
		}
		return
	}
	fmt.Fprintln(r.w, string(blob))
}

// Err returns the first error hit while encoding output, if any.
func (r *Reporter) Err() error {
	return r.err
}

type summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summary prints the aggregate counts of results. Text output renders the
// failing tests as a table first.
func (r *Reporter) Summary(results Results) {
	sum := summary{Passed: results.Passed(), Failed: results.Failed()}
	if r.json {
		r.printJSON(sum)
		return
	}
	if failures := results.Failures(); len(failures) > 0 {
		table := tablewriter.NewWriter(r.w)
		table.SetHeader([]string{"Contract", "Test", "Expected", "Actual", "Reason"})
		for _, res := range failures {
			table.Append([]string{res.Contract, res.Name, res.Expected.String(), res.Actual.String(), res.Reason})
		}
		table.Render()
	}
	fmt.Fprintln(r.w, "--")
	fmt.Fprintf(r.w, "%d tests passed, %d tests failed.\n", sum.Passed, sum.Failed)
}
