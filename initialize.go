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
)

// InitChannelStorage returns a function that sets the initial discharge
// to q0 [m3/s] and the channel storage to the volume of water that
// carries it. The roughness is scaled by the channel length.
func InitChannelStorage(q0 Field) DomainManipulator {
	return func(b *Basin) error {
		if len(q0) != b.Topo.Len() {
			return fmt.Errorf("gem: initial discharge has %d values but there are %d cells",
				len(q0), b.Topo.Len())
		}
		if err := b.Params.ensure(b.Topo); err != nil {
			return err
		}
		p := b.Params
		for j, q := range q0 {
			if p.ChnWidth[j] <= 0 {
				b.Q[j] = 0
				b.ChanS[j] = 0
				continue
			}
			b.Q[j] = math.Max(0, q)
			if q <= 0 {
				b.ChanS[j] = 0
				continue
			}
			a := channelCoefficient(p.ChnWidth[j], p.Manningn[j]*p.ChnLength[j], p.Slope[j])
			b.ChanS[j] = a * math.Pow(q, 0.6) / p.ChnLength[j]
		}
		return nil
	}
}

// InitTracer returns a function that sets the concentration of the named
// tracer in every storage to c0.
func InitTracer(name string, c0 Field) DomainManipulator {
	return func(b *Basin) error {
		t, ok := b.Tracer(name)
		if !ok {
			return fmt.Errorf("gem: no tracer named %s", name)
		}
		if len(c0) != b.Topo.Len() {
			return fmt.Errorf("gem: initial %s concentration has %d values but there are %d cells",
				name, len(c0), b.Topo.Len())
		}
		for _, f := range []Field{t.Pond, t.Layer1, t.Layer2, t.Layer3, t.GW, t.ChanS} {
			f.CopyFrom(c0)
		}
		return nil
	}
}
