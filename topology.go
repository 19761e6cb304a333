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

import "fmt"

// OffDomain is the downstream index of a cell that drains out of the
// model domain.
const OffDomain = -1

// Topology holds the drainage network of the active cells. Cells are
// stored in processing order: every cell comes before the cell it
// drains into.
type Topology struct {
	downstream []int
	row, col   []int
}

// NewTopology creates a topology from the downstream index, raster row and
// raster column of each cell. The slices must already be in processing
// order, where each downstream index is either OffDomain or greater than the
// index of the cell itself.
func NewTopology(downstream, row, col []int) (*Topology, error) {
	if len(row) != len(downstream) || len(col) != len(downstream) {
		return nil, fmt.Errorf("gem: topology has %d downstream indices, %d rows and %d columns",
			len(downstream), len(row), len(col))
	}
	for j, ds := range downstream {
		if ds == OffDomain {
			continue
		}
		if ds <= j || ds >= len(downstream) {
			return nil, fmt.Errorf("gem: cell %d (row %d, col %d) drains into cell %d, "+
				"which is not downstream in processing order", j, row[j], col[j], ds)
		}
	}
	t := &Topology{
		downstream: make([]int, len(downstream)),
		row:        make([]int, len(row)),
		col:        make([]int, len(col)),
	}
	copy(t.downstream, downstream)
	copy(t.row, row)
	copy(t.col, col)
	return t, nil
}

// Len returns the number of active cells.
func (t *Topology) Len() int { return len(t.downstream) }

// Downstream returns the index of the cell that cell j drains into and
// whether that cell is within the domain.
func (t *Topology) Downstream(j int) (int, bool) {
	ds := t.downstream[j]
	return ds, ds != OffDomain
}

// Row returns the raster row of cell j.
func (t *Topology) Row(j int) int { return t.row[j] }

// Col returns the raster column of cell j.
func (t *Topology) Col(j int) int { return t.col[j] }

// Outlets returns the indices of the cells that drain out of the domain.
func (t *Topology) Outlets() []int {
	var o []int
	for j, ds := range t.downstream {
		if ds == OffDomain {
			o = append(o, j)
		}
	}
	return o
}

// NewField returns a zeroed Field with one value per cell.
func (t *Topology) NewField() Field { return make(Field, t.Len()) }

// Gather copies the raster values at the active cells into a Field
// in processing order.
func (t *Topology) Gather(r *Raster) (Field, error) {
	f := t.NewField()
	for j := range f {
		i, k := t.row[j], t.col[j]
		if i < 0 || i >= r.Nrows || k < 0 || k >= r.Ncols {
			return nil, fmt.Errorf("gem: cell %d at row %d, col %d is outside of the %dx%d raster",
				j, i, k, r.Nrows, r.Ncols)
		}
		f[j] = r.Data.Get(i, k)
	}
	return f, nil
}
