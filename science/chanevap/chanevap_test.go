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

package chanevap

import (
	"math"
	"testing"

	"github.com/ecohydro/gem"
)

func basin(t *testing.T) *gem.Basin {
	topo, err := gem.NewTopology([]int{1, gem.OffDomain}, []int{0, 0}, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	p := gem.NewParams(2)
	p.ChnWidth[1] = 10
	p.ChnLength[1] = 100
	p.Slope.Fill(0.01)
	p.Manningn.Fill(0.05)
	p.Depth3.Fill(1)
	p.EchanAlpha.Fill(1)
	b, err := gem.NewBasin(topo, p, 100, 86400)
	if err != nil {
		t.Fatal(err)
	}
	b.Meteo.Ta.Fill(20)
	b.Meteo.RH.Fill(0.6)
	b.Meteo.Rnet.Fill(150)
	b.Meteo.AirPressure.Fill(101325)
	b.Meteo.WindSpeed.Fill(2)
	return b
}

func TestPotential(t *testing.T) {
	e := Potential(20, 0.6, 150*86400, 101325, 2)
	// A warm summer day gives a few mm of open water evaporation.
	if e < 3 || e > 10 {
		t.Errorf("potential evaporation %v mm is out of range", e)
	}
	if drier := Potential(20, 0.3, 150*86400, 101325, 2); drier <= e {
		t.Errorf("drier air should evaporate more: %v <= %v", drier, e)
	}
	if windier := Potential(20, 0.6, 150*86400, 101325, 5); windier <= e {
		t.Errorf("more wind should evaporate more: %v <= %v", windier, e)
	}
}

func TestPenman(t *testing.T) {
	b := basin(t)
	b.ChanS[1] = 1
	if err := Penman()(b); err != nil {
		t.Fatal(err)
	}
	e := Potential(20, 0.6, 150*86400, 101325, 2) * 10 * 100 / (100 * 100) / 1000
	if want := 0.5 * e; math.Abs(b.Echan[1]-want) > 1e-15 {
		t.Errorf("Echan = %v, want %v", b.Echan[1], want)
	}
	if math.Abs(b.ChanS[1]-(1-b.Echan[1])) > 1e-15 {
		t.Errorf("storage was not reduced: %v", b.ChanS[1])
	}
	if b.Echan[0] != 0 || b.ChanS[0] != 0 {
		t.Errorf("cell without a channel: Echan = %v, ChanS = %v", b.Echan[0], b.ChanS[0])
	}
}

func TestClamps(t *testing.T) {
	for name, f := range map[string]gem.DomainManipulator{
		"Penman":          Penman(),
		"PriestleyTaylor": PriestleyTaylor(0),
	} {
		// Almost empty channel: the loss is limited to the storage.
		b := basin(t)
		b.ChanS[1] = 1e-6
		if err := f(b); err != nil {
			t.Fatal(err)
		}
		if b.Echan[1] != 1e-6 || b.ChanS[1] != 0 {
			t.Errorf("%s: Echan = %v, ChanS = %v", name, b.Echan[1], b.ChanS[1])
		}

		// Condensation is not added to the channel.
		b = basin(t)
		b.ChanS[1] = 1
		b.Meteo.Rnet.Fill(-500)
		b.Meteo.RH.Fill(1)
		if err := f(b); err != nil {
			t.Fatal(err)
		}
		if b.Echan[1] != 0 || b.ChanS[1] != 1 {
			t.Errorf("%s: negative evaporation: Echan = %v, ChanS = %v", name, b.Echan[1], b.ChanS[1])
		}
	}
}

func TestPriestleyTaylor(t *testing.T) {
	b := basin(t)
	b.ChanS[1] = 1
	b.Meteo.WindSpeed.Fill(50) // ignored
	if err := PriestleyTaylor(0)(b); err != nil {
		t.Fatal(err)
	}
	e := Potential(20, 0.6, 150*86400, 101325, RegionalWindSpeed) * 10 * 100 / (100 * 100) / 1000
	if math.Abs(b.Echan[1]-e) > 1e-15 {
		t.Errorf("Echan = %v, want %v", b.Echan[1], e)
	}
}
