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
	"math"

	"github.com/ecohydro/gem/internal/hash"
)

// ParamState is the lifecycle state of the coefficients derived from a
// parameter set.
type ParamState int

const (
	// Uninitialized parameters have never been derived.
	Uninitialized ParamState = iota
	// Sorted parameters have derived coefficients that match the
	// current parameter values.
	Sorted
	// Stale parameters have changed since their coefficients were derived.
	Stale
)

func (s ParamState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Sorted:
		return "sorted"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("ParamState(%d)", int(s))
	}
}

// Params holds the static per-cell parameters of a basin.
type Params struct {
	ChnWidth  Field // channel width [m]; zero for cells without a channel
	ChnLength Field // channel length within the cell [m]
	Slope     Field // [m/m]
	Manningn  Field // Manning's roughness [s m^-1/3]

	Depth1, Depth2, Depth3 Field // soil layer depths [m]

	ThetaFC3  Field // field capacity of layer 3 [m3/m3]
	ThetaS3   Field // saturated moisture content of layer 3 [m3/m3]
	Ks3       Field // effective hydraulic conductivity of layer 3 [m/s]
	InterfExp Field // exponent controlling interflow recharge to the channel
	Winterf   Field // interflow weight

	POvfToChn     Field // fraction of overland flow entering the channel
	PondThreshold Field // ponding depth retained in the cell [m]

	KsGW   Field // groundwater conductivity [m/s]
	GWfExp Field // exponent controlling groundwater recharge to the channel
	WGWf   Field // groundwater flow weight

	EchanAlpha        Field // channel evaporation weight
	NearsurfaceMixing Field // fraction of pond water exchanged with layer 1

	state ParamState
	key   string

	// derived coefficients
	chanA       Field // kinematic wave coefficient
	interfAlpha Field // interflow celerity [m/s]
	gwAlpha     Field // groundwater celerity [m/s]
}

// ParamNames lists the names of the parameters in the order they are read.
var ParamNames = []string{
	"ChnWidth", "ChnLength", "Slope", "Manningn",
	"Depth1", "Depth2", "Depth3",
	"ThetaFC3", "ThetaS3", "Ks3", "InterfExp", "Winterf",
	"POvfToChn", "PondThreshold",
	"KsGW", "GWfExp", "WGWf",
	"EchanAlpha", "NearsurfaceMixing",
}

// NewParams returns a zeroed parameter set for n cells.
func NewParams(n int) *Params {
	p := new(Params)
	for _, name := range ParamNames {
		*p.field(name) = make(Field, n)
	}
	return p
}

func (p *Params) field(name string) *Field {
	switch name {
	case "ChnWidth":
		return &p.ChnWidth
	case "ChnLength":
		return &p.ChnLength
	case "Slope":
		return &p.Slope
	case "Manningn":
		return &p.Manningn
	case "Depth1":
		return &p.Depth1
	case "Depth2":
		return &p.Depth2
	case "Depth3":
		return &p.Depth3
	case "ThetaFC3":
		return &p.ThetaFC3
	case "ThetaS3":
		return &p.ThetaS3
	case "Ks3":
		return &p.Ks3
	case "InterfExp":
		return &p.InterfExp
	case "Winterf":
		return &p.Winterf
	case "POvfToChn":
		return &p.POvfToChn
	case "PondThreshold":
		return &p.PondThreshold
	case "KsGW":
		return &p.KsGW
	case "GWfExp":
		return &p.GWfExp
	case "WGWf":
		return &p.WGWf
	case "EchanAlpha":
		return &p.EchanAlpha
	case "NearsurfaceMixing":
		return &p.NearsurfaceMixing
	default:
		return nil
	}
}

// Field returns the parameter with the given name.
func (p *Params) Field(name string) (Field, bool) {
	f := p.field(name)
	if f == nil {
		return nil, false
	}
	return *f, true
}

// State returns the lifecycle state of the derived coefficients.
func (p *Params) State() ParamState { return p.state }

// Invalidate marks the derived coefficients as out of date.
func (p *Params) Invalidate() {
	if p.state == Sorted {
		p.state = Stale
	}
}

// Changed returns whether the parameter values differ from the values
// that the coefficients were last derived from.
func (p *Params) Changed() bool {
	if p.state == Uninitialized {
		return true
	}
	return hash.Key(p) != p.key
}

// Validate checks that the parameters are consistent with the topology.
func (p *Params) Validate(t *Topology) error {
	n := t.Len()
	for _, name := range ParamNames {
		f, _ := p.Field(name)
		if len(f) != n {
			return fmt.Errorf("gem: parameter %s has %d values but there are %d cells", name, len(f), n)
		}
	}
	for j := 0; j < n; j++ {
		if p.Depth3[j] <= 0 {
			return fmt.Errorf("gem: cell %d: Depth3 must be > 0 but is %g", j, p.Depth3[j])
		}
		if p.ThetaFC3[j] > p.ThetaS3[j] {
			return fmt.Errorf("gem: cell %d: ThetaFC3 (%g) is greater than ThetaS3 (%g)",
				j, p.ThetaFC3[j], p.ThetaS3[j])
		}
		hasChn := p.ChnWidth[j] > 0
		if hasChn != (p.ChnLength[j] > 0) {
			return fmt.Errorf("gem: cell %d: ChnWidth (%g) and ChnLength (%g) must both be "+
				"positive or both be zero", j, p.ChnWidth[j], p.ChnLength[j])
		}
		if !hasChn {
			continue
		}
		if p.Slope[j] <= 0 || p.Manningn[j] <= 0 {
			return fmt.Errorf("gem: channel cell %d: Slope (%g) and Manningn (%g) must be > 0",
				j, p.Slope[j], p.Manningn[j])
		}
		if ds, ok := t.Downstream(j); ok && p.ChnWidth[ds] <= 0 {
			return fmt.Errorf("gem: channel cell %d drains into cell %d, which has no channel", j, ds)
		}
	}
	return nil
}

// Derive checks the parameters and computes the coefficients used by the
// routers.
func (p *Params) Derive(t *Topology) error {
	if err := p.Validate(t); err != nil {
		return err
	}
	n := t.Len()
	p.chanA = make(Field, n)
	p.interfAlpha = make(Field, n)
	p.gwAlpha = make(Field, n)
	for j := 0; j < n; j++ {
		if p.ChnWidth[j] > 0 {
			p.chanA[j] = channelCoefficient(p.ChnWidth[j], p.Manningn[j], p.Slope[j])
		}
		sinSlope := math.Sin(math.Atan(p.Slope[j]))
		p.interfAlpha[j] = p.Ks3[j] * sinSlope * p.Winterf[j]
		p.gwAlpha[j] = p.KsGW[j] * sinSlope * p.WGWf[j]
	}
	p.key = hash.Key(p)
	p.state = Sorted
	return nil
}

// ensure derives the coefficients if they are missing or out of date.
func (p *Params) ensure(t *Topology) error {
	if p.state == Sorted {
		return nil
	}
	return p.Derive(t)
}

// channelCoefficient returns the kinematic wave coefficient a in
// A = a·Q^0.6, with the wetted perimeter approximated by the width.
func channelCoefficient(width, n, slope float64) float64 {
	return math.Pow(math.Pow(width, 0.67)*n/math.Sqrt(slope), 0.6)
}

// CheckParams marks the derived parameter coefficients as stale when
// the parameter values have changed, so that they are derived again
// before the next routing pass.
func CheckParams() DomainManipulator {
	return func(b *Basin) error {
		if b.Params.State() == Sorted && b.Params.Changed() {
			b.Params.Invalidate()
		}
		return nil
	}
}
