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

package hash

import "testing"

type params struct {
	Slope []float64
	Width float64
}

type private struct {
	a int
}

func TestKey(t *testing.T) {
	a := params{Slope: []float64{0.01, 0.02}, Width: 2}
	b := params{Slope: []float64{0.01, 0.02}, Width: 2}
	if Key(a) != Key(b) {
		t.Errorf("equal values have different keys: %s, %s", Key(a), Key(b))
	}
	b.Slope[1] = 0.03
	if Key(a) == Key(b) {
		t.Error("different values have the same key")
	}
}

func TestKeyFallback(t *testing.T) {
	// gob cannot encode structs without exported fields.
	if Key(private{a: 1}) == Key(private{a: 2}) {
		t.Error("different values have the same key")
	}
	if Key(private{a: 1}) != Key(private{a: 1}) {
		t.Error("equal values have different keys")
	}
}
