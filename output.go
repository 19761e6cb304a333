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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// Outputter writes a time series of basin-level output variables.
//
// outputVariables maps the names of the output variables to expressions
// that calculate them. Expressions can use the names of any basin Field
// (see Basin.FieldNames), the names of other output variables and the
// output functions. Fields are whole arrays, so they must be reduced
// to a single number with a function such as sum or at.
type Outputter struct {
	w     *csv.Writer
	names []string // output variables in evaluation order
	exprs map[string]*govaluate.EvaluableExpression

	// modelVariables are the basin Fields required by the expressions.
	modelVariables []string

	// outlets are the cells draining out of the domain, set by CheckOutputVars.
	outlets []int

	wroteHeader bool
}

// NewOutputter creates a new Outputter that writes CSV records to w.
// Default functions include:
//
// 'sum(x)', 'mean(x)', 'max(x)' and 'min(x)', which reduce a Field over
// all cells.
//
// 'at(x, j)', which returns the value of a Field at cell j.
//
// 'outlets(x)', which sums a Field over the cells that drain out of the
// domain. It is only available once the Outputter is bound to a basin by
// CheckOutputVars.
//
// 'exp(x)', which applies the exponential function e^x.
func NewOutputter(w io.Writer, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	if len(outputVariables) == 0 {
		return nil, fmt.Errorf("gem: no output variables")
	}
	o := &Outputter{
		w:     csv.NewWriter(w),
		exprs: make(map[string]*govaluate.EvaluableExpression),
	}
	funcs := map[string]govaluate.ExpressionFunction{
		"sum":  reduction("sum", floats.Sum),
		"mean": reduction("mean", mean),
		"max":  reduction("max", floats.Max),
		"min":  reduction("min", floats.Min),
		"at": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("gem: got %d arguments for function 'at', but needs 2", len(args))
			}
			f, ok := args[0].([]float64)
			if !ok {
				return nil, fmt.Errorf("gem: first argument of 'at' must be a field")
			}
			j, ok := args[1].(float64)
			if !ok || j != math.Trunc(j) || j < 0 || int(j) >= len(f) {
				return nil, fmt.Errorf("gem: invalid cell index %v for 'at'", args[1])
			}
			return f[int(j)], nil
		},
		"exp": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("gem: got %d arguments for function 'exp', but needs 1", len(args))
			}
			x, ok := args[0].(float64)
			if !ok {
				return nil, fmt.Errorf("gem: argument of 'exp' must be a number")
			}
			return math.Exp(x), nil
		},
		"outlets": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("gem: got %d arguments for function 'outlets', but needs 1", len(args))
			}
			f, ok := args[0].([]float64)
			if !ok {
				return nil, fmt.Errorf("gem: argument of 'outlets' must be a field")
			}
			if o.outlets == nil {
				return nil, fmt.Errorf("gem: 'outlets' used before the outputter was bound to a basin")
			}
			var s float64
			for _, j := range o.outlets {
				s += f[j]
			}
			return s, nil
		},
	}
	for k, v := range outputFunctions {
		funcs[k] = v
	}

	deps := make(map[string][]string)
	seen := make(map[string]bool)
	for name, e := range outputVariables {
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(e, funcs)
		if err != nil {
			return nil, fmt.Errorf("gem: output variable %s: %v", name, err)
		}
		o.exprs[name] = expr
		for _, v := range expr.Vars() {
			if _, ok := outputVariables[v]; ok {
				deps[name] = append(deps[name], v)
			} else if !seen[v] {
				seen[v] = true
				o.modelVariables = append(o.modelVariables, v)
			}
		}
	}
	sort.Strings(o.modelVariables)

	var err error
	if o.names, err = evaluationOrder(outputVariables, deps); err != nil {
		return nil, err
	}
	return o, nil
}

// evaluationOrder sorts the output variables so that every variable comes
// after the variables it depends on.
func evaluationOrder(vars map[string]string, deps map[string][]string) ([]string, error) {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	done := make(map[string]bool)
	order := make([]string, 0, len(names))
	for len(order) < len(names) {
		progress := false
		for _, n := range names {
			if done[n] {
				continue
			}
			ready := true
			for _, d := range deps[n] {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				done[n] = true
				order = append(order, n)
				progress = true
			}
		}
		if !progress {
			return nil, fmt.Errorf("gem: output variables have circular definitions")
		}
	}
	return order, nil
}

func reduction(name string, f func([]float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("gem: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		x, ok := args[0].([]float64)
		if !ok {
			return nil, fmt.Errorf("gem: argument of '%s' must be a field", name)
		}
		if len(x) == 0 {
			return 0., nil
		}
		return f(x), nil
	}
}

func mean(x []float64) float64 { return floats.Sum(x) / float64(len(x)) }

// CheckOutputVars ensures the output variables can be calculated from the
// basin and binds the outlets function to the basin topology.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(b *Basin) error {
		for _, v := range o.modelVariables {
			if _, ok := b.Field(v); !ok {
				return fmt.Errorf("gem: undefined variable name '%s'", v)
			}
		}
		o.outlets = b.Topo.Outlets()
		if o.outlets == nil {
			o.outlets = []int{}
		}
		return nil
	}
}

// Results calculates the output variables for the current state of the basin.
func (o *Outputter) Results(b *Basin) (map[string]float64, error) {
	params := make(map[string]interface{}, len(o.modelVariables)+len(o.names))
	for _, v := range o.modelVariables {
		f, ok := b.Field(v)
		if !ok {
			return nil, fmt.Errorf("gem: undefined variable name '%s'", v)
		}
		params[v] = []float64(f)
	}
	r := make(map[string]float64, len(o.names))
	for _, n := range o.names {
		v, err := o.exprs[n].Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("gem: calculating output variable %s: %v", n, err)
		}
		x, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("gem: output variable %s is not a number; use a function "+
				"such as sum or at to reduce fields", n)
		}
		r[n] = x
		params[n] = x
	}
	return r, nil
}

// Output returns a function that writes one CSV record with the time step,
// the elapsed time [s] and the output variables, in alphabetical order.
// A header record is written first.
func (o *Outputter) Output() DomainManipulator {
	return func(b *Basin) error {
		cols := make([]string, len(o.names))
		copy(cols, o.names)
		sort.Strings(cols)
		if !o.wroteHeader {
			if err := o.w.Write(append([]string{"step", "time"}, cols...)); err != nil {
				return fmt.Errorf("gem: writing output: %v", err)
			}
			o.wroteHeader = true
		}
		r, err := o.Results(b)
		if err != nil {
			return err
		}
		rec := []string{strconv.Itoa(b.Step), strconv.FormatFloat(float64(b.Step+1)*b.Dt, 'g', -1, 64)}
		for _, c := range cols {
			rec = append(rec, strconv.FormatFloat(r[c], 'g', -1, 64))
		}
		if err := o.w.Write(rec); err != nil {
			return fmt.Errorf("gem: writing output: %v", err)
		}
		o.w.Flush()
		if err := o.w.Error(); err != nil {
			return fmt.Errorf("gem: writing output: %v", err)
		}
		return nil
	}
}
