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
	"errors"
	"fmt"

	"github.com/WilfredTA/evmodin-test/core/backend"
)

var (
	// ErrPhaseOrder is returned when a runner phase is started out of order.
	ErrPhaseOrder = errors.New("runner phase out of order")

	ErrUnknownContract = errors.New("unknown contract")
	ErrNoCode          = errors.New("contract has no code")
	ErrNoTarget        = errors.New("no target contract")
)

// AssertionError reports an execution whose status differs from the expected
// one: a failing deployment or configuration message, or a failing test in
// fail-fast mode.
type AssertionError struct {
	Phase    Phase
	Name     string
	Expected backend.Status
	Actual   backend.Status
	Reason   string
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("%s %s: expected %v, got %v", e.Phase, e.Name, e.Expected, e.Actual)
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	return msg
}
