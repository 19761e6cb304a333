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

// Package chanevap calculates open water evaporation from river channels
// with a Penman combination equation.
package chanevap

import (
	"math"

	"github.com/ecohydro/gem"
)

// RegionalWindSpeed is the long term mean wind speed at 2 m [m/s] used by
// PriestleyTaylor when no wind speed is given.
const RegionalWindSpeed = 3.2

// Penman returns a function that removes evaporation from the storage of
// every channel cell using the measured wind speed. At most half of the
// potential evaporation is removed, limited to the water in the channel.
func Penman() gem.DomainManipulator {
	return func(b *gem.Basin) error {
		evaporate(b, func(j int) float64 { return b.Meteo.WindSpeed[j] }, 0.5)
		return nil
	}
}

// PriestleyTaylor returns a function that removes evaporation from the
// storage of every channel cell using a fixed wind speed [m/s].
// If windSpeed <= 0, RegionalWindSpeed is used.
// The loss is limited to the water in the channel.
func PriestleyTaylor(windSpeed float64) gem.DomainManipulator {
	if windSpeed <= 0 {
		windSpeed = RegionalWindSpeed
	}
	return func(b *gem.Basin) error {
		evaporate(b, func(int) float64 { return windSpeed }, 1)
		return nil
	}
}

func evaporate(b *gem.Basin, wind func(j int) float64, frac float64) {
	p := b.Params
	m := b.Meteo
	dx2 := b.Dx * b.Dx
	for j := 0; j < b.Topo.Len(); j++ {
		if p.ChnWidth[j] <= 0 {
			b.Echan[j] = 0
			continue
		}
		e := Potential(m.Ta[j], m.RH[j], m.Rnet[j]*b.Dt, m.AirPressure[j], wind(j))
		// channel area fraction; mm to m
		e *= p.ChnWidth[j] * p.ChnLength[j] / dx2 / 1000
		e = math.Max(p.EchanAlpha[j]*e, 0)
		e = math.Min(frac*e, b.ChanS[j])
		b.Echan[j] = e
		b.ChanS[j] -= e
	}
}

// Potential returns the potential open water evaporation [mm] for air
// temperature ta [°C], relative humidity rh [fraction], net radiation
// rnet [J/m2] over the time step, air pressure [Pa] and wind speed [m/s].
func Potential(ta, rh, rnet, airPressure, windSpeed float64) float64 {
	taK := ta + 273.3
	eSat := 611 * math.Exp(17.27*ta/(ta+237.3)) // [Pa]
	eAct := eSat * rh
	delta := eSat * 4098 / (taK * taK) // [Pa/K]

	cp := 0.24 * 4185.5 * (1 + 0.8*(0.622*eAct/(airPressure-eAct))) // [J/kg/K]
	lambda := 4185.5 * (751.78 - 0.5655*(ta+273.15))                // [J/kg]
	gamma := cp * airPressure / (0.622 * lambda)                    // [Pa/K]

	ea := (1 + 0.536*windSpeed) * (eSat/1000 - eAct/1000)
	return delta/(delta+gamma)*rnet/lambda + gamma/(delta+gamma)*6430000*ea/lambda
}
