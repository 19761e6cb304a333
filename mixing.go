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

// RoundoffErr is the volume [m] below which a storage is treated as empty.
const RoundoffErr = 1e-12

// MixFull returns the concentration of a storage holding volume s at
// concentration c after it receives volume in at concentration cIn.
// If there is no water to mix, c is returned unchanged, or zero if c
// is not a finite number.
func MixFull(s, c, in, cIn float64) float64 {
	if s+in > RoundoffErr {
		return (s*c + in*cIn) / (s + in)
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// MixBaseflow returns the concentration of the water leaving a storage that
// holds volume s at concentration c, receives in at cIn and releases out
// during the same time step. When out exceeds the water available, the
// outflow is diluted so it never carries more tracer mass than the storage
// holds.
func MixBaseflow(s, c, in, cIn, out float64) float64 {
	d := math.Max(s+in, out)
	if d <= RoundoffErr {
		return 0
	}
	return (s*c + in*cIn) / d
}

// inflowConc returns the concentration of a lateral inflow from its tracer
// mass and its water volume.
func inflowConc(mass, volume float64) float64 {
	if volume <= RoundoffErr {
		return 0
	}
	return mass / volume
}

// evapoconcentrate returns the concentration of a storage holding volume s at
// concentration c after et is removed by evaporation and the tracer mass
// stays behind.
func evapoconcentrate(s, c, et float64) float64 {
	if et <= 0 {
		return c
	}
	if s-et > RoundoffErr {
		return c * s / (s - et)
	}
	return 0
}

// clamp limits v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
