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

// Track returns a function that moves the tracers along with the water
// fluxes of the current time step. It must run after the vertical fluxes,
// the lateral and channel routers and channel evaporation, and it reads
// the storages saved by StoreStates at the start of the step.
func Track() DomainManipulator {
	return func(b *Basin) error {
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		for _, t := range b.Tracers {
			b.track(t)
		}
		return nil
	}
}

// track mixes tracer t through every storage of every cell, in
// processing order, so that tracer mass leaving a cell reaches the
// accumulators of the downstream cell before that cell is mixed.
func (b *Basin) track(t *Tracer) {
	p := b.Params
	dtdx2 := b.Dt / (b.Dx * b.Dx)

	t.OvfInAcc.Reset()
	t.InterfInAcc.Reset()
	t.GWfInAcc.Reset()
	t.QupstreamAcc.Reset()

	for j := 0; j < b.Topo.Len(); j++ {
		ds, hasDS := b.Topo.Downstream(j)

		// Pond input and exchange with the near surface soil.
		sp := b.PondOld[j]
		cp := MixFull(sp, t.Pond[j], b.PondInput[j], t.Input[j])
		sp += b.PondInput[j]
		s1 := b.Theta1Old[j] * p.Depth1[j]
		c1 := t.Layer1[j]
		if ns := p.NearsurfaceMixing[j]; ns > 0 && sp > RoundoffErr && s1 > RoundoffErr {
			m := math.Min(sp*ns, s1)
			cp, c1 = (cp*(sp-m)+c1*m)/sp, (cp*m+c1*(s1-m))/s1
		}

		// Vertical fluxes through the soil profile.
		c1 = MixFull(s1, c1, b.Infilt[j], cp)
		sp = math.Max(0, sp-b.Infilt[j])
		s1 += b.Infilt[j] - b.Perc1[j]

		s2 := b.Theta2Old[j] * p.Depth2[j]
		c2 := MixFull(s2, t.Layer2[j], b.Perc1[j], c1)
		s2 += b.Perc1[j] - b.Perc2[j]

		s3 := b.Theta3Old[j] * p.Depth3[j]
		c3 := MixFull(s3, t.Layer3[j], b.Perc2[j], c2)
		s3 += b.Perc2[j] - b.Perc3[j]

		sg := b.GWOld[j]
		cg := MixFull(sg, t.GW[j], b.Perc3[j], c3)
		sg += b.Perc3[j]

		// Evaporation and transpiration.
		et1 := b.Es[j] + b.Tr1[j]
		if t.Evapoconcentrate {
			c1 = evapoconcentrate(s1, c1, et1)
			c2 = evapoconcentrate(s2, c2, b.Tr2[j])
			c3 = evapoconcentrate(s3, c3, b.Tr3[j])
		}
		s3 = math.Max(0, s3-b.Tr3[j])

		// Lateral flows.
		cp = MixFull(sp, cp, b.OvfIn[j], inflowConc(t.OvfInAcc[j], b.OvfIn[j]))
		c3 = MixFull(s3, c3, b.InterfIn[j], inflowConc(t.InterfInAcc[j], b.InterfIn[j]))
		cgIn := inflowConc(t.GWfInAcc[j], b.GWfIn[j])
		cgOut := MixBaseflow(sg, cg, b.GWfIn[j], cgIn, b.GWfOut[j]+b.GWfToChn[j])
		cg = MixFull(sg, cg, b.GWfIn[j], cgIn)
		if hasDS {
			t.OvfInAcc[ds] += b.OvfOut[j] * cp
			t.InterfInAcc[ds] += b.InterfOut[j] * c3
			t.GWfInAcc[ds] += b.GWfOut[j] * cgOut
		}

		// Channel.
		cc := t.ChanS[j]
		if p.ChnWidth[j] > 0 {
			sc := b.ChanSOld[j]
			if t.Evapoconcentrate {
				cc = evapoconcentrate(sc, cc, b.Echan[j])
			}
			sc = math.Max(0, sc-b.Echan[j])
			cc = MixFull(sc, cc, b.OvfToChn[j], cp)
			sc += b.OvfToChn[j]
			cc = MixFull(sc, cc, b.InterfToChn[j], c3)
			sc += b.InterfToChn[j]
			cc = MixFull(sc, cc, b.GWfToChn[j], cgOut)
			sc += b.GWfToChn[j]
			vUp := b.Qupstream[j] * dtdx2
			cc = MixFull(sc, cc, vUp, inflowConc(t.QupstreamAcc[j], vUp))
			if hasDS {
				t.QupstreamAcc[ds] += b.Q[j] * dtdx2 * cc
			}
		}

		t.Pond[j], t.Layer1[j], t.Layer2[j], t.Layer3[j] = cp, c1, c2, c3
		t.GW[j], t.ChanS[j] = cg, cc
	}
}
