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
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ecohydro/gem"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// GetStringMapString returns a map[string]string from the configuration
// variable varName, which can be a map or a JSON-encoded string.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch t := i.(type) {
	case map[string]string:
		return t, nil
	case map[string]interface{}:
		return cast.ToStringMapString(t), nil
	case string:
		if t == "" {
			return map[string]string{}, nil
		}
		o := make(map[string]string)
		if err := json.Unmarshal([]byte(t), &o); err != nil {
			return nil, fmt.Errorf("gemutil: problem parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("gemutil: invalid type for %s: %#v", varName, i)
	}
}

// getStringSlice returns the configuration variable varName as a slice
// of strings. Values given on the command line arrive as a single
// comma-separated string.
func getStringSlice(varName string, cfg *viper.Viper) ([]string, error) {
	s, err := cast.ToStringSliceE(cfg.Get(varName))
	if err != nil {
		return nil, fmt.Errorf("gemutil: invalid value for %s: %v", varName, err)
	}
	var o []string
	for _, v := range s {
		for _, vv := range strings.Split(v, ",") {
			if vv = strings.TrimSpace(vv); vv != "" {
				o = append(o, vv)
			}
		}
	}
	return o, nil
}

// checkOutputVars removes newlines from the output variable expressions,
// which are allowed in configuration files to split long expressions.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		o[k] = strings.TrimSpace(strings.Replace(v, "\n", " ", -1))
	}
	return o
}

// readRaster reads the ESRI ASCII grid at path.
func readRaster(path string) (*gem.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gemutil: %v", err)
	}
	defer f.Close()
	r, err := gem.ReadASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("gemutil: reading %s: %v", path, err)
	}
	return r, nil
}

// loadTopology reads a D8 flow direction grid and returns the basin
// topology and the grid.
func loadTopology(path string) (*gem.Topology, *gem.Raster, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("gemutil: FlowDirection must be specified")
	}
	r, err := readRaster(path)
	if err != nil {
		return nil, nil, err
	}
	t, err := gem.TopologyFromD8(r)
	if err != nil {
		return nil, nil, fmt.Errorf("gemutil: %s: %v", path, err)
	}
	return t, r, nil
}

// cellValues returns the value of every cell of t from value, which is
// either a number or the path to an ESRI ASCII grid aligned with grid.
func cellValues(value string, t *gem.Topology, grid *gem.Raster) (gem.Field, error) {
	value = strings.TrimSpace(value)
	if v, err := cast.ToFloat64E(value); err == nil {
		f := t.NewField()
		f.Fill(v)
		return f, nil
	}
	path := os.ExpandEnv(value)
	r, err := readRaster(path)
	if err != nil {
		return nil, err
	}
	if r.Nrows != grid.Nrows || r.Ncols != grid.Ncols {
		return nil, fmt.Errorf("gemutil: %s has %dx%d cells but the flow direction grid has %dx%d",
			path, r.Nrows, r.Ncols, grid.Nrows, grid.Ncols)
	}
	f, err := t.Gather(r)
	if err != nil {
		return nil, err
	}
	for j, v := range f {
		if r.IsNoData(v) {
			return nil, fmt.Errorf("gemutil: %s: missing value at row %d, col %d",
				path, t.Row(j), t.Col(j))
		}
	}
	return f, nil
}

// parameterTable holds parameter values by land use category.
type parameterTable struct {
	LandUse map[string]map[string]float64
}

// loadParams returns the parameters of every cell. Land use table values
// are applied first and are then overridden by the values in params,
// which map parameter names to numbers or raster paths.
func loadParams(t *gem.Topology, grid *gem.Raster, params map[string]string, tablePath, landUsePath string) (*gem.Params, error) {
	p := gem.NewParams(t.Len())
	if tablePath != "" {
		if err := applyParameterTable(p, t, grid, tablePath, landUsePath); err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pname, ok := canonicalName(name, gem.ParamNames)
		if !ok {
			return nil, fmt.Errorf("gemutil: invalid parameter name %q", name)
		}
		dst, _ := p.Field(pname)
		v, err := cellValues(params[name], t, grid)
		if err != nil {
			return nil, fmt.Errorf("gemutil: parameter %s: %v", name, err)
		}
		dst.CopyFrom(v)
	}
	return p, nil
}

func applyParameterTable(p *gem.Params, t *gem.Topology, grid *gem.Raster, tablePath, landUsePath string) error {
	if landUsePath == "" {
		return fmt.Errorf("gemutil: ParameterTable requires LandUse to be set")
	}
	var table parameterTable
	if _, err := toml.DecodeFile(tablePath, &table); err != nil {
		return fmt.Errorf("gemutil: reading parameter table: %v", err)
	}
	lu, err := cellValues(landUsePath, t, grid)
	if err != nil {
		return fmt.Errorf("gemutil: land use: %v", err)
	}
	type entry struct {
		f gem.Field
		v float64
	}
	entries := make(map[string][]entry, len(table.LandUse))
	for category, values := range table.LandUse {
		for name, v := range values {
			pname, ok := canonicalName(name, gem.ParamNames)
			if !ok {
				return fmt.Errorf("gemutil: parameter table category %s: invalid parameter name %q", category, name)
			}
			f, _ := p.Field(pname)
			entries[category] = append(entries[category], entry{f: f, v: v})
		}
	}
	for j, v := range lu {
		if v != math.Trunc(v) {
			return fmt.Errorf("gemutil: land use category %g at row %d, col %d is not an integer",
				v, t.Row(j), t.Col(j))
		}
		category := strconv.Itoa(int(v))
		if _, ok := table.LandUse[category]; !ok {
			return fmt.Errorf("gemutil: land use category %s is not in the parameter table", category)
		}
		for _, e := range entries[category] {
			e.f[j] = e.v
		}
	}
	return nil
}

// canonicalName returns the member of names that matches name,
// ignoring case.
func canonicalName(name string, names []string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// WriteTopology writes the processing index, raster row, raster column and
// downstream index of every cell of t to w as CSV.
func WriteTopology(w io.Writer, t *gem.Topology) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"index", "row", "col", "downstream"})
	for j := 0; j < t.Len(); j++ {
		ds, _ := t.Downstream(j)
		cw.Write([]string{
			strconv.Itoa(j),
			strconv.Itoa(t.Row(j)),
			strconv.Itoa(t.Col(j)),
			strconv.Itoa(ds),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("gemutil: writing topology: %v", err)
	}
	return nil
}

// writeMaps writes the named basin fields as ESRI ASCII grids
// aligned with grid to the directory dir.
func writeMaps(b *gem.Basin, grid *gem.Raster, names []string, dir string) error {
	for _, name := range names {
		f, ok := b.Field(name)
		if !ok {
			return fmt.Errorf("gemutil: invalid map output %q", name)
		}
		path := filepath.Join(dir, name+".asc")
		w, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("gemutil: %v", err)
		}
		if err := gem.WriteASCIIGrid(w, b.Topo.RasterOf(f, grid)); err != nil {
			w.Close()
			return fmt.Errorf("gemutil: writing %s: %v", path, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("gemutil: %v", err)
		}
	}
	return nil
}

// newLogger returns a logger writing text messages at the given level to
// the file at path, or to standard error if path is empty. The returned
// function closes the log file.
func newLogger(level, path string) (*logrus.Logger, func() error, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("gemutil: %v", err)
	}
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = lvl
	if path == "" {
		l.Out = os.Stderr
		return l, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("gemutil: creating log file: %v", err)
	}
	l.Out = f
	return l, f.Close, nil
}
