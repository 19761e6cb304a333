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

func TestMixFull(t *testing.T) {
	tests := []struct {
		s, c, in, cIn float64
	}{
		{s: 1, c: 2, in: 1, cIn: 4},
		{s: 0.3, c: -8.5, in: 0.001, cIn: -2},
		{s: 0, c: 5, in: 0.2, cIn: 1},
		{s: 0.2, c: 1, in: 0, cIn: 100},
		{s: 1e-3, c: 10, in: 5, cIn: 0},
	}
	for _, test := range tests {
		c := MixFull(test.s, test.c, test.in, test.cIn)
		want := test.s*test.c + test.in*test.cIn
		if absDifferent((test.s+test.in)*c, want, 1e-12) {
			t.Errorf("MixFull(%v, %v, %v, %v) = %v: mass %v != %v", test.s, test.c, test.in, test.cIn,
				c, (test.s+test.in)*c, want)
		}
	}
}

func TestMixFullDegenerate(t *testing.T) {
	if c := MixFull(0, 3, 0, 7); c != 3 {
		t.Errorf("empty storage changed concentration to %v", c)
	}
	if c := MixFull(1e-14, 3, 1e-14, 7); c != 3 {
		t.Errorf("roundoff volumes changed concentration to %v", c)
	}
	if c := MixFull(0, math.NaN(), 0, 7); c != 0 {
		t.Errorf("non-finite concentration should be reset to 0, got %v", c)
	}
	if c := MixFull(0, math.Inf(1), 0, 7); c != 0 {
		t.Errorf("infinite concentration should be reset to 0, got %v", c)
	}
}

func TestMixBaseflow(t *testing.T) {
	// Outflow smaller than storage: outflow leaves at the mixed concentration.
	c := MixBaseflow(1, 2, 1, 4, 0.5)
	if different(c, 3, 1e-12) {
		t.Errorf("have %v, want 3", c)
	}
	// Outflow larger than storage: outflow mass is limited to the mass available.
	s, ci, in, cIn, out := 0.1, 2., 0.1, 4., 1.
	c = MixBaseflow(s, ci, in, cIn, out)
	if c*out > s*ci+in*cIn+1e-12 {
		t.Errorf("outflow mass %v > available mass %v", c*out, s*ci+in*cIn)
	}
	if c := MixBaseflow(0, 2, 0, 4, 0); c != 0 {
		t.Errorf("empty storage should give 0, got %v", c)
	}
}

func TestEvapoconcentrate(t *testing.T) {
	if c := evapoconcentrate(0.1, 2, 0.05); different(c, 4, 1e-12) {
		t.Errorf("have %v, want 4", c)
	}
	if c := evapoconcentrate(0.1, 2, 0.1); c != 0 {
		t.Errorf("dry storage should give 0, got %v", c)
	}
	if c := evapoconcentrate(0.1, 2, 0); c != 2 {
		t.Errorf("no evaporation should not change the concentration, got %v", c)
	}
}
