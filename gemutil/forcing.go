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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ecohydro/gem"
	"github.com/spf13/cast"
)

// Forcing holds a time series of basin-uniform drivers, one record per
// time step.
type Forcing struct {
	columns map[string]int
	records [][]float64
}

// Forcing column names. Tracer input concentrations are in columns
// named <tracer>_input.
const (
	colPondInput   = "pond_input"
	colInfilt      = "infilt"
	colPerc1       = "perc1"
	colPerc2       = "perc2"
	colPerc3       = "perc3"
	colEs          = "es"
	colTr1         = "tr1"
	colTr2         = "tr2"
	colTr3         = "tr3"
	colTa          = "ta"
	colRH          = "rh"
	colRnet        = "rnet"
	colAirPressure = "airpressure"
	colWindSpeed   = "windspeed"
)

// ReadForcing reads a forcing time series in CSV format. The first row
// holds the column names, which are case-insensitive.
func ReadForcing(r io.Reader) (*Forcing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("gemutil: reading forcing header: %v", err)
	}
	f := &Forcing{columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := f.columns[name]; ok {
			return nil, fmt.Errorf("gemutil: duplicate forcing column %q", name)
		}
		f.columns[name] = i
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("gemutil: reading forcing: %v", err)
		}
		row := make([]float64, len(rec))
		for i, v := range rec {
			row[i], err = cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("gemutil: forcing line %d, column %s: %v", line, header[i], err)
			}
		}
		f.records = append(f.records, row)
	}
	if len(f.records) == 0 {
		return nil, fmt.Errorf("gemutil: forcing has no records")
	}
	return f, nil
}

// Len returns the number of records.
func (f *Forcing) Len() int { return len(f.records) }

// Value returns the value of the named column for the given time step.
// Records are repeated when step is beyond the last record. Missing
// columns are zero.
func (f *Forcing) Value(step int, column string) float64 {
	i, ok := f.columns[strings.ToLower(column)]
	if !ok {
		return 0
	}
	return f.records[step%len(f.records)][i]
}

// Has returns whether the forcing includes the named column.
func (f *Forcing) Has(column string) bool {
	_, ok := f.columns[strings.ToLower(column)]
	return ok
}

// ApplyMeteo returns a function that sets the atmospheric forcing and the
// tracer input concentrations of every cell for the current time step.
func ApplyMeteo(f *Forcing) gem.DomainManipulator {
	return func(b *gem.Basin) error {
		m := b.Meteo
		m.Ta.Fill(f.Value(b.Step, colTa))
		m.RH.Fill(f.Value(b.Step, colRH))
		m.Rnet.Fill(f.Value(b.Step, colRnet))
		m.AirPressure.Fill(f.Value(b.Step, colAirPressure))
		m.WindSpeed.Fill(f.Value(b.Step, colWindSpeed))
		for _, t := range b.Tracers {
			t.Input.Fill(f.Value(b.Step, t.Name+"_input"))
		}
		return nil
	}
}

// PrescribedFluxes returns a function that applies the vertical water
// fluxes [m] of the current forcing record to the basin storages in
// place of a land surface scheme. Each flux is limited to the water
// available in the storage it leaves, and the applied fluxes are stored
// in the flux fields of the basin. Soil layers 1 and 2 must have a
// depth > 0.
func PrescribedFluxes(f *Forcing) gem.DomainManipulator {
	return func(b *gem.Basin) error {
		p := b.Params
		step := b.Step
		pondInput := math.Max(0, f.Value(step, colPondInput))
		infilt := math.Max(0, f.Value(step, colInfilt))
		perc1 := math.Max(0, f.Value(step, colPerc1))
		perc2 := math.Max(0, f.Value(step, colPerc2))
		perc3 := math.Max(0, f.Value(step, colPerc3))
		es := math.Max(0, f.Value(step, colEs))
		tr1 := math.Max(0, f.Value(step, colTr1))
		tr2 := math.Max(0, f.Value(step, colTr2))
		tr3 := math.Max(0, f.Value(step, colTr3))

		for j := 0; j < b.Topo.Len(); j++ {
			d1, d2, d3 := p.Depth1[j], p.Depth2[j], p.Depth3[j]
			if d1 <= 0 || d2 <= 0 || d3 <= 0 {
				return fmt.Errorf("gemutil: prescribed fluxes require soil layer depths > 0 (cell %d)", j)
			}
			b.PondInput[j] = pondInput
			sp := b.Pond[j] + pondInput

			b.Infilt[j] = math.Min(infilt, sp)
			sp -= b.Infilt[j]
			s1 := b.Theta1[j]*d1 + b.Infilt[j]

			b.Perc1[j] = math.Min(perc1, s1)
			s1 -= b.Perc1[j]
			e := 1.
			if es+tr1 > s1 {
				e = s1 / (es + tr1)
			}
			b.Es[j], b.Tr1[j] = es*e, tr1*e
			s1 = math.Max(0, s1-b.Es[j]-b.Tr1[j])

			s2 := b.Theta2[j]*d2 + b.Perc1[j]
			b.Perc2[j] = math.Min(perc2, s2)
			s2 -= b.Perc2[j]
			b.Tr2[j] = math.Min(tr2, s2)
			s2 -= b.Tr2[j]

			s3 := b.Theta3[j]*d3 + b.Perc2[j]
			b.Perc3[j] = math.Min(perc3, s3)
			s3 -= b.Perc3[j]
			b.Tr3[j] = math.Min(tr3, s3)
			s3 -= b.Tr3[j]

			b.Pond[j] = sp
			b.Theta1[j] = s1 / d1
			b.Theta2[j] = s2 / d2
			b.Theta3[j] = s3 / d3
			b.GW[j] += b.Perc3[j]
		}
		return nil
	}
}
