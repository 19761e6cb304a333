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
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/Knetic/govaluate"
	"github.com/sirupsen/logrus"
)

func TestNewBasin(t *testing.T) {
	topo, err := NewTopology([]int{OffDomain}, []int{0}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewBasin(topo, NewParams(1), 0, 3600); err == nil {
		t.Error("zero cell size should be an error")
	}
	if _, err := NewBasin(topo, nil, 100, 3600); err == nil {
		t.Error("missing parameters should be an error")
	}
	b, err := NewBasin(topo, NewParams(1), 100, 3600)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Pond", "ChanSOld", "GWfToChn", "Echan", "Ta", "Slope"} {
		if f, ok := b.Field(name); !ok || len(f) != 1 {
			t.Errorf("missing field %s", name)
		}
	}
	if _, ok := b.Field("d18o_GW"); ok {
		t.Error("tracer field should not exist yet")
	}
	if _, err := b.AddTracer("d18o", false); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddTracer("d18o", false); err == nil {
		t.Error("duplicate tracer should be an error")
	}
	if _, ok := b.Field("d18o_GW"); !ok {
		t.Error("missing tracer field")
	}
	b.Meteo.Ta[0] = 12
	if f, _ := b.Field("Ta"); f[0] != 12 {
		t.Error("meteorology field is not shared with the basin")
	}
}

func TestRunErrors(t *testing.T) {
	b := chain(t, 1, 100, 3600)
	if err := b.Run(); err == nil {
		t.Error("running without functions should be an error")
	}
	b.RunFuncs = []DomainManipulator{NumSteps(0)}
	if err := b.Run(); err == nil {
		t.Error("zero steps should be an error")
	}
	b.InitFuncs = []DomainManipulator{InitTracer("missing", Field{0})}
	if err := b.Init(); err == nil {
		t.Error("initializing a missing tracer should be an error")
	}
	b.CleanupFuncs = []DomainManipulator{func(*Basin) error { return fmt.Errorf("test") }}
	if err := b.Cleanup(); err == nil {
		t.Error("expected a cleanup error")
	}
}

func TestInitChannelStorage(t *testing.T) {
	b := chain(t, 2, 100, 3600)
	if err := InitChannelStorage(Field{2, 0})(b); err != nil {
		t.Fatal(err)
	}
	a := math.Pow(math.Pow(2, 0.67)*0.05*100/math.Sqrt(0.01), 0.6)
	if want := a * math.Pow(2, 0.6) / 100; different(b.ChanS[0], want, 1e-12) {
		t.Errorf("ChanS = %v, want %v", b.ChanS[0], want)
	}
	if b.ChanS[1] != 0 || b.Q[0] != 2 {
		t.Errorf("ChanS = %v, Q = %v", b.ChanS, b.Q)
	}
	if err := InitChannelStorage(Field{1})(b); err == nil {
		t.Error("wrong length should be an error")
	}
}

func TestLog(t *testing.T) {
	b := chain(t, 2, 100, 3600)
	b.Q[1] = 2.5
	buf := new(bytes.Buffer)
	l := logrus.New()
	l.Out = buf
	l.Formatter = &logrus.TextFormatter{DisableColors: true}
	if err := Log(l)(b); err != nil {
		t.Fatal(err)
	}
	if s := buf.String(); !strings.Contains(s, "outlet Q\"=2.5") && !strings.Contains(s, "outlet Q=2.5") {
		t.Errorf("log does not contain the outlet discharge: %s", s)
	}
}

func TestOutputter(t *testing.T) {
	b := chain(t, 3, 100, 3600)
	copy(b.Q, []float64{1, 2, 3})
	copy(b.ChanS, []float64{0.5, 0.25, 0.25})
	buf := new(bytes.Buffer)
	o, err := NewOutputter(buf, map[string]string{
		"TotalS":   "sum(ChanS)",
		"OutletQ":  "outlets(Q)",
		"MidQ":     "at(Q, 1)",
		"ScaledQ":  "OutletQ * 1000",
		"MaxQ":     "max(Q)",
		"Constant": "double(2)",
	}, map[string]govaluate.ExpressionFunction{
		"double": func(args ...interface{}) (interface{}, error) {
			return args[0].(float64) * 2, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(b); err != nil {
		t.Fatal(err)
	}
	r, err := o.Results(b)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"TotalS": 1, "OutletQ": 3, "MidQ": 2, "ScaledQ": 3000, "MaxQ": 3, "Constant": 4}
	for k, v := range want {
		if r[k] != v {
			t.Errorf("%s: have %v, want %v", k, r[k], v)
		}
	}
	for i := 0; i < 2; i++ {
		b.Step = i
		if err := o.Output()(b); err != nil {
			t.Fatal(err)
		}
	}
	wantCSV := "step,time,Constant,MaxQ,MidQ,OutletQ,ScaledQ,TotalS\n" +
		"0,3600,4,3,2,3,3000,1\n" +
		"1,7200,4,3,2,3,3000,1\n"
	if buf.String() != wantCSV {
		t.Errorf("have\n%s\nwant\n%s", buf.String(), wantCSV)
	}
}

func TestOutputterErrors(t *testing.T) {
	b := chain(t, 1, 100, 3600)
	if _, err := NewOutputter(new(bytes.Buffer), nil, nil); err == nil {
		t.Error("no output variables should be an error")
	}
	if _, err := NewOutputter(new(bytes.Buffer), map[string]string{"A": "B + 1", "B": "A + 1"}, nil); err == nil {
		t.Error("circular definitions should be an error")
	}
	o, err := NewOutputter(new(bytes.Buffer), map[string]string{"A": "sum(NotAField)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(b); err == nil {
		t.Error("undefined variable should be an error")
	}
	o, err = NewOutputter(new(bytes.Buffer), map[string]string{"A": "Q"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Results(b); err == nil {
		t.Error("an unreduced field should be an error")
	}
}

func TestSteadyStateConvergenceCheck(t *testing.T) {
	b := chain(t, 2, 100, 3600)
	b.GW.Fill(1)
	l := logrus.New()
	l.Out = new(bytes.Buffer)
	b.RunFuncs = []DomainManipulator{SteadyStateConvergenceCheck(0, 1e-6, 7200, l)}
	if err := b.Run(); err != nil {
		t.Fatal(err)
	}
	// Nothing changes, so the second check finds convergence.
	if b.Step != 4 {
		t.Errorf("converged after %d steps, want 4", b.Step)
	}

	b.Done, b.Step = false, 0
	b.RunFuncs = []DomainManipulator{
		func(b *Basin) error { b.GW[0] *= 2; return nil },
		SteadyStateConvergenceCheck(5, 1e-6, 3600, l),
	}
	if err := b.Run(); err != nil {
		t.Fatal(err)
	}
	if b.Step != 5 {
		t.Errorf("stopped after %d steps, want 5", b.Step)
	}
}
