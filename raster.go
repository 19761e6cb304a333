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
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/maseology/mmaths/topology"
)

// Raster is a regular grid in ESRI ASCII format.
type Raster struct {
	Ncols, Nrows int
	Xll, Yll     float64 // lower left corner [m]
	CellSize     float64 // [m]
	NoData       float64

	// Data has shape [Nrows, Ncols], with row 0 at the top.
	Data *sparse.DenseArray
}

// NewRaster returns a raster filled with nodata values.
func NewRaster(nrows, ncols int, cellSize, nodata float64) *Raster {
	r := &Raster{
		Nrows:    nrows,
		Ncols:    ncols,
		CellSize: cellSize,
		NoData:   nodata,
		Data:     sparse.ZerosDense(nrows, ncols),
	}
	for i := range r.Data.Elements {
		r.Data.Elements[i] = nodata
	}
	return r
}

// IsNoData returns whether v is missing.
func (r *Raster) IsNoData(v float64) bool {
	return v == r.NoData || math.IsNaN(v)
}

// ReadASCIIGrid reads a raster in ESRI ASCII grid format.
func ReadASCIIGrid(rd io.Reader) (*Raster, error) {
	s := bufio.NewScanner(rd)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	s.Split(bufio.ScanWords)

	r := &Raster{NoData: -9999}
	var center bool
	var tok string
	var more bool
	found := make(map[string]bool)
	for {
		if more = s.Scan(); !more {
			break
		}
		tok = s.Text()
		key := strings.ToLower(tok)
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			break
		}
		if !s.Scan() {
			return nil, fmt.Errorf("gem: reading ASCII grid: missing value for %s", tok)
		}
		val := s.Text()
		var err error
		switch key {
		case "ncols":
			r.Ncols, err = strconv.Atoi(val)
		case "nrows":
			r.Nrows, err = strconv.Atoi(val)
		case "xllcorner", "xllcenter":
			r.Xll, err = strconv.ParseFloat(val, 64)
			center = key == "xllcenter"
		case "yllcorner", "yllcenter":
			r.Yll, err = strconv.ParseFloat(val, 64)
		case "cellsize":
			r.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			r.NoData, err = strconv.ParseFloat(val, 64)
		default:
			return nil, fmt.Errorf("gem: reading ASCII grid: unknown header field %s", tok)
		}
		if err != nil {
			return nil, fmt.Errorf("gem: reading ASCII grid header field %s: %v", tok, err)
		}
		found[key] = true
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("gem: reading ASCII grid: %v", err)
	}
	if !found["ncols"] || !found["nrows"] || !found["cellsize"] {
		return nil, fmt.Errorf("gem: reading ASCII grid: header must contain ncols, nrows and cellsize")
	}
	if r.Ncols <= 0 || r.Nrows <= 0 {
		return nil, fmt.Errorf("gem: reading ASCII grid: invalid dimensions %dx%d", r.Nrows, r.Ncols)
	}
	if center {
		r.Xll -= r.CellSize / 2
		r.Yll -= r.CellSize / 2
	}

	r.Data = sparse.ZerosDense(r.Nrows, r.Ncols)
	n := 0
	for more {
		if n >= len(r.Data.Elements) {
			return nil, fmt.Errorf("gem: reading ASCII grid: more than %d values", len(r.Data.Elements))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("gem: reading ASCII grid value %d: %v", n, err)
		}
		r.Data.Elements[n] = v
		n++
		if more = s.Scan(); more {
			tok = s.Text()
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("gem: reading ASCII grid: %v", err)
	}
	if n != len(r.Data.Elements) {
		return nil, fmt.Errorf("gem: reading ASCII grid: got %d values, want %d", n, len(r.Data.Elements))
	}
	return r, nil
}

// WriteASCIIGrid writes r in ESRI ASCII grid format.
func WriteASCIIGrid(w io.Writer, r *Raster) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\nxllcorner %g\nyllcorner %g\ncellsize %g\nNODATA_value %g\n",
		r.Ncols, r.Nrows, r.Xll, r.Yll, r.CellSize, r.NoData)
	for i := 0; i < r.Nrows; i++ {
		for k := 0; k < r.Ncols; k++ {
			if k > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(r.Data.Get(i, k), 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// RasterOf returns a raster with the same georeferencing as r holding the
// values of f at the locations of the cells in t. Locations without an
// active cell are nodata.
func (t *Topology) RasterOf(f Field, r *Raster) *Raster {
	if len(f) != t.Len() {
		panic(fmt.Errorf("gem: field length %d != number of cells %d", len(f), t.Len()))
	}
	o := NewRaster(r.Nrows, r.Ncols, r.CellSize, r.NoData)
	o.Xll, o.Yll = r.Xll, r.Yll
	for j, v := range f {
		// DenseArray.Set skips zeros, which would leave nodata behind.
		o.Data.Elements[o.Data.Index1d(t.row[j], t.col[j])] = v
	}
	return o
}

// d8Offsets maps ESRI D8 flow direction codes to row and column offsets.
var d8Offsets = map[int][2]int{
	1:   {0, 1},   // E
	2:   {1, 1},   // SE
	4:   {1, 0},   // S
	8:   {1, -1},  // SW
	16:  {0, -1},  // W
	32:  {-1, -1}, // NW
	64:  {-1, 0},  // N
	128: {-1, 1},  // NE
}

// TopologyFromD8 creates a topology from a raster of ESRI D8 flow
// directions. Every cell that is not nodata is active. Cells with a
// direction of 0, or that point outside of the raster or to a nodata
// cell, drain out of the domain. Cells are ordered so that every cell
// comes before its receiver: cells farther from their outlet come first,
// and cells at the same distance are in row-major order.
func TopologyFromD8(r *Raster) (*Topology, error) {
	const inactive = -2
	id := func(i, k int) int { return i*r.Ncols + k }

	// receiver by raster index
	recv := make([]int, r.Nrows*r.Ncols)
	nActive := 0
	for i := 0; i < r.Nrows; i++ {
		for k := 0; k < r.Ncols; k++ {
			v := r.Data.Get(i, k)
			if r.IsNoData(v) {
				recv[id(i, k)] = inactive
				continue
			}
			nActive++
			recv[id(i, k)] = OffDomain
		}
	}
	for i := 0; i < r.Nrows; i++ {
		for k := 0; k < r.Ncols; k++ {
			if recv[id(i, k)] == inactive {
				continue
			}
			v := r.Data.Get(i, k)
			code := int(v)
			if float64(code) != v {
				return nil, fmt.Errorf("gem: D8 direction %g at row %d, col %d is not an integer", v, i, k)
			}
			if code == 0 {
				continue
			}
			off, ok := d8Offsets[code]
			if !ok {
				return nil, fmt.Errorf("gem: invalid D8 direction %d at row %d, col %d", code, i, k)
			}
			ii, kk := i+off[0], k+off[1]
			if ii < 0 || ii >= r.Nrows || kk < 0 || kk >= r.Ncols || recv[id(ii, kk)] == inactive {
				continue
			}
			recv[id(i, k)] = id(ii, kk)
		}
	}

	fromto := make(map[int]int, nActive)
	for c, rc := range recv {
		if rc != inactive {
			fromto[c] = rc
		}
	}
	order := topology.OrderFromToTree(fromto, OffDomain)
	if len(order) != nActive {
		reached := make(map[int]bool, len(order))
		for _, c := range order {
			reached[c] = true
		}
		c := 0
		for c < len(recv) && (recv[c] == inactive || reached[c]) {
			c++
		}
		return nil, fmt.Errorf("gem: D8 flow directions contain a cycle downstream of row %d, col %d",
			c/r.Ncols, c%r.Ncols)
	}

	// Siblings come out of the tree walk in map order. Sort by distance
	// to the outlet, then row-major, so the order is reproducible.
	depth := make(map[int]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		c := order[i]
		if rc := recv[c]; rc >= 0 {
			depth[c] = depth[rc] + 1
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		if depth[order[a]] != depth[order[b]] {
			return depth[order[a]] > depth[order[b]]
		}
		return order[a] < order[b]
	})

	position := make(map[int]int, len(order))
	for j, c := range order {
		position[c] = j
	}
	downstream := make([]int, len(order))
	row := make([]int, len(order))
	col := make([]int, len(order))
	for j, c := range order {
		row[j], col[j] = c/r.Ncols, c%r.Ncols
		downstream[j] = OffDomain
		if rc := recv[c]; rc >= 0 {
			downstream[j] = position[rc]
		}
	}
	return NewTopology(downstream, row, col)
}
