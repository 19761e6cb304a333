/*
Copyright © 2025 the GEM authors.
This file is part of GEM.

GEM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GEM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GEM.  If not, see <http://www.gnu.org/licenses/>.
*/

package gem

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const daysPerSecond = 1. / 3600. / 24.

// NumSteps sets the Done flag after n time steps have been run.
func NumSteps(n int) DomainManipulator {
	return func(b *Basin) error {
		if n < 1 {
			return fmt.Errorf("gem: number of time steps must be > 0 but is %d", n)
		}
		if b.Step+1 >= n {
			b.Done = true
		}
		return nil
	}
}

// SteadyStateConvergenceCheck sets the Done flag when the total water
// stored in the basin changes by less than tolerance (as a fraction)
// between two checks, or after maxSteps time steps if maxSteps > 0.
// It is used to spin up the storages before a simulation.
// Checks are made once every checkPeriod seconds of simulated time.
func SteadyStateConvergenceCheck(maxSteps int, tolerance, checkPeriod float64, l logrus.FieldLogger) DomainManipulator {
	oldSum := math.NaN()
	timeSinceLastCheck := 0.
	return func(b *Basin) error {
		timeSinceLastCheck += b.Dt
		if maxSteps > 0 && b.Step+1 >= maxSteps {
			b.Done = true
			return nil
		}
		if timeSinceLastCheck < checkPeriod {
			return nil
		}
		timeSinceLastCheck = 0
		sum := b.TotalStorage()
		if checkConvergence(sum, oldSum, tolerance) {
			l.WithFields(logrus.Fields{"step": b.Step, "storage": sum}).Info("storage converged")
			b.Done = true
		}
		oldSum = sum
		return nil
	}
}

func checkConvergence(newSum, oldSum, tolerance float64) bool {
	if math.IsNaN(oldSum) {
		return false
	}
	if oldSum == 0 {
		return newSum == 0
	}
	return math.Abs((newSum-oldSum)/oldSum) <= tolerance
}

// TotalStorage returns the water [m] held in the pond, soil, groundwater
// and channel storages, summed over all cells.
func (b *Basin) TotalStorage() float64 {
	p := b.Params
	var s float64
	for j := 0; j < b.Topo.Len(); j++ {
		s += b.Pond[j] + b.Theta1[j]*p.Depth1[j] + b.Theta2[j]*p.Depth2[j] +
			b.Theta3[j]*p.Depth3[j] + b.GW[j] + b.ChanS[j]
	}
	return s
}

// Log returns a function that logs the progress of the simulation
// after every time step.
func Log(l logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	return func(b *Basin) error {
		var qOut float64
		for _, j := range b.Topo.Outlets() {
			qOut += b.Q[j]
		}
		l.WithFields(logrus.Fields{
			"step":      b.Step,
			"day":       float64(b.Step+1) * b.Dt * daysPerSecond,
			"walltime":  time.Since(startTime).Round(time.Millisecond).String(),
			"Δwalltime": time.Since(timeStepTime).Round(time.Millisecond).String(),
			"outlet Q":  qOut,
			"ChanS":     b.ChanS.Sum(),
			"fallbacks": b.fallbacks,
		}).Info("time step complete")
		timeStepTime = time.Now()
		return nil
	}
}
