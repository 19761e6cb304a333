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

// RouteLateral returns a function that moves overland flow, interflow and
// groundwater flow to downstream cells and to the channel. The three flow
// types are routed in that order, each with one sweep over the cells.
func RouteLateral() DomainManipulator {
	overland, interflow, groundwater := RouteOverland(), RouteInterflow(), RouteGroundwater()
	return func(b *Basin) error {
		for _, f := range []DomainManipulator{overland, interflow, groundwater} {
			if err := f(b); err != nil {
				return err
			}
		}
		return nil
	}
}

// RouteOverland returns a function that routes ponded water above the
// ponding threshold. Part of it enters the channel and the rest flows to
// the downstream cell.
func RouteOverland() DomainManipulator {
	return func(b *Basin) error {
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		p := b.Params
		b.OvfIn.Reset()
		for j := 0; j < b.Topo.Len(); j++ {
			pond := b.Pond[j]
			avail := b.OvfIn[j]
			if thr := p.PondThreshold[j]; pond > thr {
				avail += pond - thr
				pond = thr
			}
			var toChn, out float64
			if avail > RoundoffErr {
				if p.ChnLength[j] > 0 {
					toChn = clamp(avail*p.POvfToChn[j]*p.ChnLength[j]/b.Dx, 0, avail)
				}
				out = avail - toChn
				if ds, ok := b.Topo.Downstream(j); ok {
					b.OvfIn[ds] += out
				}
			} else {
				pond += avail
			}
			b.Pond[j] = pond
			b.OvfOut[j] = out
			b.OvfToChn[j] = toChn
		}
		return nil
	}
}

// RouteInterflow returns a function that routes water in soil layer 3
// above field capacity.
func RouteInterflow() DomainManipulator {
	return func(b *Basin) error {
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		p := b.Params
		dtdx := b.Dt / b.Dx
		b.InterfIn.Reset()
		for j := 0; j < b.Topo.Len(); j++ {
			d3 := p.Depth3[j]
			theta3 := b.Theta3[j]
			avail := b.InterfIn[j]
			if fc := p.ThetaFC3[j]; theta3 > fc {
				avail += (theta3 - fc) * d3
				theta3 = fc
			}
			var toChn, out float64
			if avail > RoundoffErr {
				var rest float64
				toChn, out, rest = kinematicSplit(avail, p.Ks3[j], p.InterfExp[j], p.Winterf[j],
					p.interfAlpha[j], dtdx, p.ChnLength[j]/b.Dx)
				theta3 += rest / d3
				if ts := p.ThetaS3[j]; theta3 > ts {
					out += (theta3 - ts) * d3
					theta3 = ts
				}
				if ds, ok := b.Topo.Downstream(j); ok {
					b.InterfIn[ds] += out
				}
			} else {
				theta3 += avail / d3
			}
			b.Theta3[j] = theta3
			b.InterfOut[j] = out
			b.InterfToChn[j] = toChn
		}
		return nil
	}
}

// RouteGroundwater returns a function that routes groundwater. Water that
// is not released stays in the groundwater storage, which has no capacity
// limit.
func RouteGroundwater() DomainManipulator {
	return func(b *Basin) error {
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		p := b.Params
		dtdx := b.Dt / b.Dx
		b.GWfIn.Reset()
		for j := 0; j < b.Topo.Len(); j++ {
			avail := b.GWfIn[j] + b.GW[j]
			var toChn, out float64
			gw := avail
			if avail > RoundoffErr {
				toChn, out, gw = kinematicSplit(avail, p.KsGW[j], p.GWfExp[j], p.WGWf[j],
					p.gwAlpha[j], dtdx, p.ChnLength[j]/b.Dx)
				if ds, ok := b.Topo.Downstream(j); ok {
					b.GWfIn[ds] += out
				}
			}
			b.GW[j] = gw
			b.GWfOut[j] = out
			b.GWfToChn[j] = toChn
		}
		return nil
	}
}

// kinematicSplit divides the water available for lateral flow [m] into
// channel recharge, outflow to the downstream cell and water remaining in
// the cell. chnFrac is the channel length divided by the cell size; cells
// without a channel have chnFrac = 0. Both fluxes are limited to the water
// available.
func kinematicSplit(avail, ks, exp, w, alpha, dtdx, chnFrac float64) (toChn, toDown, rest float64) {
	if chnFrac > 0 {
		toChn = avail * ks * (1 - math.Exp(-exp*avail)) * w * dtdx * chnFrac
		toChn = clamp(toChn, 0, avail)
	}
	rest = avail - toChn
	toDown = clamp(rest/(1+alpha*dtdx)*alpha*dtdx, 0, rest)
	rest -= toDown
	return toChn, toDown, rest
}
