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

// Package gem routes water and conservative tracers through a gridded
// river basin. Cells are connected by a single-direction drainage network
// and are processed upstream first, so that each sweep over the cells moves
// water and solutes exactly once per time step.
package gem

import (
	"fmt"
	"sort"
)

// DomainManipulator is a function that operates on a basin.
type DomainManipulator func(b *Basin) error

// Basin holds the state of the model.
type Basin struct {
	Topo   *Topology
	Params *Params
	Dx     float64 // cell size [m]
	Dt     float64 // time step [s]

	// Storages. Theta1-3 are volumetric moisture contents [m3/m3], the
	// rest are depths [m].
	Pond, Theta1, Theta2, Theta3, GW, ChanS Field

	// Storages at the start of the time step.
	PondOld, Theta1Old, Theta2Old, Theta3Old, GWOld, ChanSOld Field

	Q         Field // channel discharge [m3/s]
	Qupstream Field // discharge entering from upstream cells [m3/s]

	// Lateral fluxes [m]: inflow from upstream, outflow to the
	// downstream cell and recharge to the channel.
	OvfIn, OvfOut, OvfToChn          Field
	InterfIn, InterfOut, InterfToChn Field
	GWfIn, GWfOut, GWfToChn          Field

	// Vertical fluxes [m] calculated by the land surface scheme.
	PondInput, Infilt, Perc1, Perc2, Perc3 Field
	Es, Tr1, Tr2, Tr3                      Field

	Echan Field // channel evaporation [m]

	Meteo   *Meteo
	Tracers []*Tracer

	// InitFuncs are run once by Init.
	InitFuncs []DomainManipulator
	// RunFuncs are run in order every time step until Done is true.
	RunFuncs []DomainManipulator
	// CleanupFuncs are run once by Cleanup.
	CleanupFuncs []DomainManipulator

	// Step is the index of the current time step.
	Step int
	// Done is set to true when the simulation should stop.
	Done bool

	// fallbacks counts the channel solutions of the last channel pass
	// that did not come from Newton-Raphson iteration.
	fallbacks int

	fields map[string]*Field
}

// Meteo holds the atmospheric forcing of each cell.
type Meteo struct {
	Ta          Field // air temperature [°C]
	RH          Field // relative humidity [fraction]
	Rnet        Field // net radiation [W/m2]
	AirPressure Field // [Pa]
	WindSpeed   Field // [m/s]
}

// Tracer holds the concentration of a conservative tracer in every storage.
type Tracer struct {
	Name string

	// Evapoconcentrate specifies whether the tracer stays behind when
	// water evaporates, as for dissolved solutes. Otherwise the tracer
	// leaves with the water, as for an isotope ratio.
	Evapoconcentrate bool

	Pond, Layer1, Layer2, Layer3, GW, ChanS Field

	// Input is the concentration of PondInput.
	Input Field

	// Tracer mass [conc·m] carried by lateral inflows during the
	// current time step.
	OvfInAcc, InterfInAcc, GWfInAcc, QupstreamAcc Field
}

// NewBasin returns a basin with zeroed state for the cells in t.
func NewBasin(t *Topology, p *Params, dx, dt float64) (*Basin, error) {
	if p == nil {
		return nil, fmt.Errorf("gem: missing parameters")
	}
	if dx <= 0 || dt <= 0 {
		return nil, fmt.Errorf("gem: cell size (%g) and time step (%g) must be > 0", dx, dt)
	}
	b := &Basin{Topo: t, Params: p, Dx: dx, Dt: dt}
	b.fields = map[string]*Field{
		"Pond": &b.Pond, "Theta1": &b.Theta1, "Theta2": &b.Theta2, "Theta3": &b.Theta3,
		"GW": &b.GW, "ChanS": &b.ChanS,
		"PondOld": &b.PondOld, "Theta1Old": &b.Theta1Old, "Theta2Old": &b.Theta2Old,
		"Theta3Old": &b.Theta3Old, "GWOld": &b.GWOld, "ChanSOld": &b.ChanSOld,
		"Q": &b.Q, "Qupstream": &b.Qupstream,
		"OvfIn": &b.OvfIn, "OvfOut": &b.OvfOut, "OvfToChn": &b.OvfToChn,
		"InterfIn": &b.InterfIn, "InterfOut": &b.InterfOut, "InterfToChn": &b.InterfToChn,
		"GWfIn": &b.GWfIn, "GWfOut": &b.GWfOut, "GWfToChn": &b.GWfToChn,
		"PondInput": &b.PondInput, "Infilt": &b.Infilt,
		"Perc1": &b.Perc1, "Perc2": &b.Perc2, "Perc3": &b.Perc3,
		"Es": &b.Es, "Tr1": &b.Tr1, "Tr2": &b.Tr2, "Tr3": &b.Tr3,
		"Echan": &b.Echan,
	}
	for _, f := range b.fields {
		*f = t.NewField()
	}
	b.Meteo = &Meteo{
		Ta:          t.NewField(),
		RH:          t.NewField(),
		Rnet:        t.NewField(),
		AirPressure: t.NewField(),
		WindSpeed:   t.NewField(),
	}
	b.fields["Ta"] = &b.Meteo.Ta
	b.fields["RH"] = &b.Meteo.RH
	b.fields["Rnet"] = &b.Meteo.Rnet
	b.fields["AirPressure"] = &b.Meteo.AirPressure
	b.fields["WindSpeed"] = &b.Meteo.WindSpeed
	for _, name := range ParamNames {
		b.fields[name] = p.field(name)
	}
	return b, nil
}

// AddTracer adds a tracer with zero concentrations to the basin.
func (b *Basin) AddTracer(name string, evapoconcentrate bool) (*Tracer, error) {
	if _, ok := b.Tracer(name); ok {
		return nil, fmt.Errorf("gem: tracer %s already exists", name)
	}
	t := &Tracer{Name: name, Evapoconcentrate: evapoconcentrate}
	for _, f := range t.fieldMap() {
		*f = b.Topo.NewField()
	}
	for suffix, f := range t.fieldMap() {
		b.fields[name+"_"+suffix] = f
	}
	b.Tracers = append(b.Tracers, t)
	return t, nil
}

func (t *Tracer) fieldMap() map[string]*Field {
	return map[string]*Field{
		"Pond": &t.Pond, "Layer1": &t.Layer1, "Layer2": &t.Layer2, "Layer3": &t.Layer3,
		"GW": &t.GW, "ChanS": &t.ChanS, "Input": &t.Input,
		"OvfInAcc": &t.OvfInAcc, "InterfInAcc": &t.InterfInAcc,
		"GWfInAcc": &t.GWfInAcc, "QupstreamAcc": &t.QupstreamAcc,
	}
}

// Tracer returns the tracer with the given name.
func (b *Basin) Tracer(name string) (*Tracer, bool) {
	for _, t := range b.Tracers {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Field returns the state variable, flux, forcing or parameter with
// the given name. Tracer concentrations are named <tracer>_<storage>,
// for example "d18o_GW".
func (b *Basin) Field(name string) (Field, bool) {
	f, ok := b.fields[name]
	if !ok {
		return nil, false
	}
	return *f, true
}

// FieldNames returns the names of every Field in the basin, sorted.
func (b *Basin) FieldNames() []string {
	names := make([]string, 0, len(b.fields))
	for n := range b.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fallbacks returns the number of cells in the last channel pass whose
// discharge came from the non-negative fallback rather than from
// Newton-Raphson iteration.
func (b *Basin) Fallbacks() int { return b.fallbacks }

// Init runs the InitFuncs.
func (b *Basin) Init() error {
	for i, f := range b.InitFuncs {
		if err := f(b); err != nil {
			return fmt.Errorf("gem: initialization step %d: %v", i, err)
		}
	}
	return nil
}

// Run runs the RunFuncs every time step until one of them sets Done.
func (b *Basin) Run() error {
	if len(b.RunFuncs) == 0 {
		return fmt.Errorf("gem: no functions to run")
	}
	for ; !b.Done; b.Step++ {
		for _, f := range b.RunFuncs {
			if err := f(b); err != nil {
				return fmt.Errorf("gem: time step %d: %v", b.Step, err)
			}
		}
	}
	return nil
}

// Cleanup runs the CleanupFuncs.
func (b *Basin) Cleanup() error {
	for i, f := range b.CleanupFuncs {
		if err := f(b); err != nil {
			return fmt.Errorf("gem: cleanup step %d: %v", i, err)
		}
	}
	return nil
}

// StoreStates saves the storages at the start of the time step, for use
// by Track. It should be run before any function that changes storages.
func StoreStates() DomainManipulator {
	return func(b *Basin) error {
		b.PondOld.CopyFrom(b.Pond)
		b.Theta1Old.CopyFrom(b.Theta1)
		b.Theta2Old.CopyFrom(b.Theta2)
		b.Theta3Old.CopyFrom(b.Theta3)
		b.GWOld.CopyFrom(b.GW)
		b.ChanSOld.CopyFrom(b.ChanS)
		return nil
	}
}
