/*
Copyright © 2018 the IMPROVER authors.
This file is part of IMPROVER.

IMPROVER is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IMPROVER is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IMPROVER.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package percentile converts ensembles and probability fields into
// percentiles.
package percentile

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/improver"
	"gonum.org/v1/gonum/floats"
)

// CoordName is the name of the coordinate added to percentile cubes.
const CoordName = "percentile"

// Default holds the percentiles generated when none are requested.
var Default = []float64{0, 5, 10, 20, 25, 30, 40, 50, 60, 70, 75, 80, 90, 95, 100}

// Choose returns n evenly spaced percentiles, excluding 0 and 100.
func Choose(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("percentile: number of percentiles must be at least 1, not %d", n)
	}
	ps := floats.Span(make([]float64, n+2), 0, 100)
	return ps[1 : n+1], nil
}

// Check returns an error if any of ps is outside [0, 100].
func Check(ps []float64) error {
	if len(ps) == 0 {
		return fmt.Errorf("percentile: no percentiles requested")
	}
	for _, p := range ps {
		if !(p >= 0 && p <= 100) {
			return fmt.Errorf("percentile: %g is not between 0 and 100", p)
		}
	}
	return nil
}

// Collapse returns a cube holding percentiles ps of the values of c over
// the named coordinates. The output has a leading percentile coordinate
// followed by the remaining coordinates of c in their original order.
// Missing (NaN) values are ignored; cells with no valid values are NaN.
func Collapse(c *improver.Cube, coords []string, ps []float64) (*improver.Cube, error) {
	if err := Check(ps); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("percentile: no coordinates to collapse")
	}
	collapse := make([]bool, len(c.Coords))
	for _, name := range coords {
		d := c.DimIndex(name)
		if d < 0 {
			return nil, fmt.Errorf("percentile: cube %s has no coordinate %s (has %v)",
				c.Name, name, c.CoordNames())
		}
		if collapse[d] {
			return nil, fmt.Errorf("percentile: coordinate %s given more than once", name)
		}
		collapse[d] = true
	}

	out := &improver.Cube{
		Name:       c.Name,
		Units:      c.Units,
		Attributes: improver.CopyAttributes(c.Attributes),
		Coords:     []*improver.Coord{improver.NewCoord(CoordName, "%", ps...)},
	}
	shape := c.Shape()
	nKeep, nCollapse := 1, 1
	for d, cc := range c.Coords {
		if collapse[d] {
			nCollapse *= shape[d]
			continue
		}
		nKeep *= shape[d]
		out.Coords = append(out.Coords, cc.Copy())
	}

	// Gather the values being collapsed for each remaining cell.
	members := make([][]float64, nKeep)
	for i := range members {
		members[i] = make([]float64, 0, nCollapse)
	}
	idx := make([]int, len(shape))
	for i, v := range c.Data.Elements {
		if i > 0 {
			improver.Increment(idx, shape)
		}
		k := 0
		for d := range shape {
			if !collapse[d] {
				k = k*shape[d] + idx[d]
			}
		}
		members[k] = append(members[k], v)
	}

	out.Data = sparse.ZerosDense(out.Shape()...)
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			vals := make([]float64, len(ps))
			for ii := pp; ii < nKeep; ii += nprocs {
				Values(vals, members[ii], ps)
				for j, v := range vals {
					out.Data.Elements[j*nKeep+ii] = v
				}
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return out, nil
}

// Values sets dst[i] to percentile ps[i] of x, interpolating linearly
// between the closest ranks. NaNs in x are ignored, and x is reordered.
// If x has no valid values, dst is filled with NaN.
func Values(dst, x, ps []float64) {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) {
			x[n] = v
			n++
		}
	}
	x = x[:n]
	if n == 0 {
		for i := range dst {
			dst[i] = math.NaN()
		}
		return
	}
	sort.Float64s(x)
	for i, p := range ps {
		rank := p / 100 * float64(n-1)
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		dst[i] = x[lo] + (x[hi]-x[lo])*(rank-float64(lo))
	}
}
