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

import "math"

const (
	kwTolerance = 1e-5
	kwMaxIter   = 50

	// kwFallback scales the linear estimate of the discharge when a
	// Newton-Raphson iterate is not positive.
	kwFallback = 0.618034
)

// KinematicWaveResult holds the solution of the kinematic wave equation
// for one channel cell.
type KinematicWaveResult struct {
	Q          float64 // discharge leaving the cell [m3/s]
	Linear     float64 // linear estimate used as the first iterate [m3/s]
	Iterations int
	Converged  bool
	FellBack   bool // Q was set from the linear estimate after a non-positive iterate
}

// SolveKinematicWave solves
//
//	dtdx·Q + a·Q^0.6 = dtdx·qUp + dt·qAll
//
// for the discharge Q [m3/s] leaving a channel cell, where dtdx is the
// time step divided by the channel length [s/m], a is the kinematic wave
// coefficient, qUp is the discharge entering from upstream [m3/s] and
// qAll is the lateral inflow [m2/s]. The right hand side must be positive.
// Newton-Raphson iteration stops within kwTolerance or after kwMaxIter
// iterations. A non-positive iterate stops the iteration and returns a
// fraction of the linear estimate instead.
func SolveKinematicWave(dtdx, a, qUp, qAll, dt float64) KinematicWaveResult {
	c := dtdx*qUp + dt*qAll

	var abQ float64
	if avQ := 0.5 * qUp; avQ != 0 {
		abQ = a * 0.6 * math.Pow(avQ, -0.4)
	}
	q0 := c / (dtdx + abQ)

	r := KinematicWaveResult{Linear: q0}
	q := q0
	for r.Iterations < kwMaxIter {
		f := dtdx*q + a*math.Pow(q, 0.6) - c
		if math.Abs(f) <= kwTolerance {
			r.Converged = true
			break
		}
		df := dtdx + 0.6*a*math.Pow(q, -0.4)
		q -= f / df
		r.Iterations++
		if q <= 0 {
			q = kwFallback * q0
			r.FellBack = true
			break
		}
	}
	r.Q = q
	return r
}

// RouteChannel returns a function that routes channel water with a
// kinematic wave, from the headwaters to the outlets. Lateral recharge
// and the discharge of upstream cells enter each channel cell, and the
// remaining water is kept as channel storage.
func RouteChannel() DomainManipulator {
	return func(b *Basin) error {
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		p := b.Params
		dx2 := b.Dx * b.Dx
		b.Qupstream.Reset()
		b.fallbacks = 0
		for j := 0; j < b.Topo.Len(); j++ {
			if p.ChnWidth[j] <= 0 {
				b.Q[j] = 0
				continue
			}
			qAll := (b.ChanS[j] + b.OvfToChn[j] + b.InterfToChn[j] + b.GWfToChn[j]) * b.Dx / b.Dt
			qUp := b.Qupstream[j]
			if qUp+qAll <= 0 {
				b.Q[j] = 0
				b.ChanS[j] = math.Max(0, b.ChanS[j])
				continue
			}
			r := SolveKinematicWave(b.Dt/p.ChnLength[j], p.chanA[j], qUp, qAll, b.Dt)
			if r.FellBack {
				b.fallbacks++
			}
			b.Q[j] = r.Q
			b.ChanS[j] = math.Max(0, (qUp+qAll*b.Dx-r.Q)*b.Dt) / dx2
			if ds, ok := b.Topo.Downstream(j); ok {
				b.Qupstream[ds] += r.Q
			}
		}
		return nil
	}
}
