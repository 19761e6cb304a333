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

	"gonum.org/v1/gonum/floats"
)

// Field holds one value per active cell, in processing order.
// Operations between Fields of different lengths panic.
type Field []float64

// Reset sets every value to zero.
func (f Field) Reset() {
	for i := range f {
		f[i] = 0
	}
}

// CopyFrom sets the values of f to the values of s.
func (f Field) CopyFrom(s Field) {
	f.checkLen(s)
	copy(f, s)
}

// Add adds s to f element-wise.
func (f Field) Add(s Field) { floats.Add(f, s) }

// Sub subtracts s from f element-wise.
func (f Field) Sub(s Field) { floats.Sub(f, s) }

// Mul multiplies f by s element-wise.
func (f Field) Mul(s Field) { floats.Mul(f, s) }

// Scale multiplies every value by c.
func (f Field) Scale(c float64) { floats.Scale(c, f) }

// ClampMin sets values below min to min.
func (f Field) ClampMin(min float64) {
	for i, v := range f {
		if v < min {
			f[i] = min
		}
	}
}

// Sum returns the sum of every value.
func (f Field) Sum() float64 { return floats.Sum(f) }

// Fill sets every value to v.
func (f Field) Fill(v float64) {
	for i := range f {
		f[i] = v
	}
}

func (f Field) checkLen(s Field) {
	if len(f) != len(s) {
		panic(fmt.Errorf("gem: field length mismatch: %d != %d", len(f), len(s)))
	}
}
