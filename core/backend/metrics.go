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

package backend

import "github.com/ethereum/go-ethereum/metrics"

var (
	stackExecuteTimer    = metrics.NewRegisteredTimer("backend/stack/execute", nil)
	analyzedExecuteTimer = metrics.NewRegisteredTimer("backend/analyzed/execute", nil)

	successCounter = metrics.NewRegisteredCounter("backend/status/success", nil)
	revertCounter  = metrics.NewRegisteredCounter("backend/status/revert", nil)
	failureCounter = metrics.NewRegisteredCounter("backend/status/failure", nil)

	analysisHitCounter      = metrics.NewRegisteredCounter("backend/analysis/hit", nil)
	analysisMissCounter     = metrics.NewRegisteredCounter("backend/analysis/miss", nil)
	analysisOptimizeCounter = metrics.NewRegisteredCounter("backend/analysis/optimized", nil)
)

func countStatus(s Status) {
	switch s {
	case Success:
		successCounter.Inc(1)
	case Revert:
		revertCounter.Inc(1)
	default:
		failureCounter.Inc(1)
	}
}
