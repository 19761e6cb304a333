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

package gemutil

import (
	"math"
	"strings"
	"testing"

	"github.com/ecohydro/gem"
)

const testForcing = `Pond_Input, ta ,no3_input
0.01,12.5,0.2
0,-3,0
`

func TestReadForcing(t *testing.T) {
	f, err := ReadForcing(strings.NewReader(testForcing))
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 2 {
		t.Fatalf("have %d records, want 2", f.Len())
	}
	tests := []struct {
		step   int
		column string
		want   float64
	}{
		{0, "pond_input", 0.01},
		{0, "TA", 12.5},
		{1, "ta", -3},
		{2, "ta", 12.5}, // repeated
		{3, "no3_input", 0},
		{0, "windspeed", 0}, // missing
	}
	for _, test := range tests {
		if have := f.Value(test.step, test.column); have != test.want {
			t.Errorf("step %d, %s: have %g, want %g", test.step, test.column, have, test.want)
		}
	}
	if !f.Has("NO3_input") || f.Has("perc1") {
		t.Error("Has")
	}
}

func TestReadForcingErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":       "",
		"no records":  "ta,rh\n",
		"non-numeric": "ta,rh\n1,wet\n",
		"duplicate":   "ta,TA\n1,2\n",
		"short":       "ta,rh\n1\n",
	} {
		if _, err := ReadForcing(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func singleCell(t *testing.T) *gem.Basin {
	topo, err := gem.NewTopology([]int{gem.OffDomain}, []int{0}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	p := gem.NewParams(1)
	p.Depth1.Fill(0.1)
	p.Depth2.Fill(0.3)
	p.Depth3.Fill(1)
	p.ThetaFC3.Fill(0.3)
	p.ThetaS3.Fill(0.5)
	b, err := gem.NewBasin(topo, p, 100, 86400)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPrescribedFluxes(t *testing.T) {
	b := singleCell(t)
	b.Theta1[0] = 0.1
	b.Theta2[0] = 0.1
	b.Theta3[0] = 0.3
	b.GW[0] = 0.2
	f, err := ReadForcing(strings.NewReader(
		"pond_input,infilt,perc1,perc2,perc3,es,tr1,tr2,tr3\n" +
			"0.01,0.02,0.005,0.5,0.1,0.01,0.01,0.01,0.01\n"))
	if err != nil {
		t.Fatal(err)
	}
	p := b.Params
	storage := func() float64 {
		return b.Pond[0] + b.Theta1[0]*p.Depth1[0] + b.Theta2[0]*p.Depth2[0] +
			b.Theta3[0]*p.Depth3[0] + b.GW[0]
	}
	before := storage()
	if err := PrescribedFluxes(f)(b); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		have, want float64
	}{
		{"Infilt", b.Infilt[0], 0.01},
		{"Pond", b.Pond[0], 0},
		{"Es", b.Es[0], 0.0075},
		{"Tr1", b.Tr1[0], 0.0075},
		{"Theta1", b.Theta1[0], 0},
		{"Perc2", b.Perc2[0], 0.035},
		{"Tr2", b.Tr2[0], 0},
		{"Theta2", b.Theta2[0], 0},
		{"Perc3", b.Perc3[0], 0.1},
		{"Tr3", b.Tr3[0], 0.01},
		{"Theta3", b.Theta3[0], 0.225},
		{"GW", b.GW[0], 0.3},
	}
	for _, test := range tests {
		if math.Abs(test.have-test.want) > 1e-12 {
			t.Errorf("%s: have %g, want %g", test.name, test.have, test.want)
		}
	}
	et := b.Es[0] + b.Tr1[0] + b.Tr2[0] + b.Tr3[0]
	if d := before + b.PondInput[0] - et - storage(); math.Abs(d) > 1e-12 {
		t.Errorf("water balance error %g", d)
	}
}

func TestPrescribedFluxesDepth(t *testing.T) {
	b := singleCell(t)
	b.Params.Depth1.Reset()
	f, err := ReadForcing(strings.NewReader("infilt\n0.01\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := PrescribedFluxes(f)(b); err == nil {
		t.Error("expected an error for a zero layer depth")
	}
}

func TestApplyMeteo(t *testing.T) {
	b := singleCell(t)
	if _, err := b.AddTracer("no3", true); err != nil {
		t.Fatal(err)
	}
	f, err := ReadForcing(strings.NewReader(testForcing))
	if err != nil {
		t.Fatal(err)
	}
	b.Step = 1
	if err := ApplyMeteo(f)(b); err != nil {
		t.Fatal(err)
	}
	if b.Meteo.Ta[0] != -3 {
		t.Errorf("Ta = %g", b.Meteo.Ta[0])
	}
	b.Step = 2
	if err := ApplyMeteo(f)(b); err != nil {
		t.Fatal(err)
	}
	no3, _ := b.Tracer("no3")
	if b.Meteo.Ta[0] != 12.5 || no3.Input[0] != 0.2 {
		t.Errorf("Ta = %g, no3 input = %g", b.Meteo.Ta[0], no3.Input[0])
	}
}
