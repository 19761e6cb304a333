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

// Package hash computes stable keys for model inputs so that callers can
// tell when an input has changed between time steps.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// printer renders objects that gob cannot encode, such as values holding
// functions or channels. Keys are sorted so maps hash deterministically.
var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a hexadecimal key for v. Equal values return equal keys.
func Key(v interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(v); err != nil {
		h.Reset()
		printer.Fprintf(h, "%#v", v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
