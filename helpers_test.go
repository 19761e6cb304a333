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
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance {
		return true
	}
	return false
}

// chain returns a basin of n cells where each cell drains into the next
// and the last cell drains out of the domain. Every cell has a channel
// whose length equals the cell size.
func chain(t *testing.T, n int, dx, dt float64) *Basin {
	ds := make([]int, n)
	row := make([]int, n)
	col := make([]int, n)
	for j := range ds {
		ds[j] = j + 1
		col[j] = j
	}
	ds[n-1] = OffDomain
	topo, err := NewTopology(ds, row, col)
	if err != nil {
		t.Fatal(err)
	}
	p := NewParams(n)
	p.ChnWidth.Fill(2)
	p.ChnLength.Fill(dx)
	p.Slope.Fill(0.01)
	p.Manningn.Fill(0.05)
	p.Depth1.Fill(0.1)
	p.Depth2.Fill(0.3)
	p.Depth3.Fill(1)
	p.ThetaFC3.Fill(0.3)
	p.ThetaS3.Fill(0.5)
	p.EchanAlpha.Fill(1)
	b, err := NewBasin(topo, p, dx, dt)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// noChannel removes the channels from every cell of b.
func noChannel(b *Basin) {
	b.Params.ChnWidth.Reset()
	b.Params.ChnLength.Reset()
	b.Params.Invalidate()
}
