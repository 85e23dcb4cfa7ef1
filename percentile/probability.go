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

package percentile

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/units"
	"gonum.org/v1/gonum/floats"
)

// Bounds are the lowest and highest values a diagnostic can plausibly
// take. They anchor the ends of the cumulative distribution built from
// threshold probabilities.
type Bounds struct {
	Lower, Upper float64
	Units        string
}

// In returns the bounds converted to units u.
func (b Bounds) In(u string) (lower, upper float64, err error) {
	c, err := units.NewConverter(b.Units, u)
	if err != nil {
		return 0, 0, fmt.Errorf("percentile: bounds: %w", err)
	}
	return c.Convert(b.Lower), c.Convert(b.Upper), nil
}

// DefaultBounds holds the bounds of the diagnostics that can be converted
// from probabilities to percentiles.
var DefaultBounds = map[string]Bounds{
	"air_temperature":              {-140, 220, "degC"},
	"wind_speed":                   {0, 50, "m s-1"},
	"rainfall_rate":                {0, 128, "mm hr-1"},
	"lwe_precipitation_rate":       {0, 128, "mm hr-1"},
	"lwe_snowfall_rate":            {0, 128, "mm hr-1"},
	"visibility_in_air":            {0, 100000, "m"},
	"cloud_area_fraction":          {0, 1, "1"},
	"low_type_cloud_area_fraction": {0, 1, "1"},
}

// BoundsFor returns the bounds of the named diagnostic.
func BoundsFor(diagnostic string) (Bounds, error) {
	b, ok := DefaultBounds[diagnostic]
	if !ok {
		return Bounds{}, fmt.Errorf("percentile: no bounds are known for diagnostic %s", diagnostic)
	}
	return b, nil
}

// FromProbabilities converts a cube of threshold probabilities into
// percentiles ps of the underlying diagnostic. For each cell the
// probabilities give the cumulative distribution at the thresholds, which
// is anchored at 0 and 1 by the bounds, made non-decreasing, and
// interpolated linearly. Thresholds outside the bounds are an error unless
// warnOnly is set, in which case the bounds are widened and a warning is
// logged to log.
func FromProbabilities(c *improver.Cube, ps []float64, bounds Bounds, warnOnly bool, log logrus.FieldLogger) (*improver.Cube, error) {
	if err := Check(ps); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tc, dim, err := c.ThresholdCoord()
	if err != nil {
		return nil, err
	}
	if tc.Len() == 0 {
		return nil, fmt.Errorf("percentile: cube %s has no thresholds", c.Name)
	}
	below := c.Relation() == "below"

	lower, upper, err := bounds.In(tc.Units)
	if err != nil {
		return nil, err
	}
	tmin, tmax := floats.Min(tc.Points), floats.Max(tc.Points)
	if tmin < lower || tmax > upper {
		msg := fmt.Sprintf("percentile: thresholds of %s span %g to %g %s, outside the bounds %g to %g",
			c.Name, tmin, tmax, tc.Units, lower, upper)
		if !warnOnly {
			return nil, fmt.Errorf("%s", msg)
		}
		if log != nil {
			log.Warn(msg)
		}
		lower, upper = math.Min(lower, tmin), math.Max(upper, tmax)
	}

	// Thresholds in ascending order, padded with the bounds.
	order := make([]int, tc.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return tc.Points[order[i]] < tc.Points[order[j]] })
	xs := make([]float64, tc.Len()+2)
	xs[0], xs[len(xs)-1] = lower, upper
	for i, k := range order {
		xs[i+1] = tc.Points[k]
	}

	out := &improver.Cube{
		Name:       c.Diagnostic(),
		Units:      tc.Units,
		Attributes: improver.CopyAttributes(c.Attributes),
		Coords:     []*improver.Coord{improver.NewCoord(CoordName, "%", ps...)},
	}
	for i, cc := range c.Coords {
		if i != dim {
			out.Coords = append(out.Coords, cc.Copy())
		}
	}
	out.Data = sparse.ZerosDense(out.Shape()...)

	shape := c.Shape()
	outer, inner := 1, 1
	for i, s := range shape {
		if i < dim {
			outer *= s
		} else if i > dim {
			inner *= s
		}
	}
	nt := shape[dim]
	ncells := outer * inner

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			cdf := make([]float64, len(xs))
			vals := make([]float64, len(ps))
			for ii := pp; ii < ncells; ii += nprocs {
				o, in := ii/inner, ii%inner
				cdf[0], cdf[len(cdf)-1] = 0, 1
				for j, k := range order {
					p := c.Data.Elements[(o*nt+k)*inner+in]
					if below {
						cdf[j+1] = p
					} else {
						cdf[j+1] = 1 - p
					}
				}
				invert(vals, xs, cdf, ps)
				for j, v := range vals {
					out.Data.Elements[j*ncells+ii] = v
				}
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return out, nil
}

// invert sets dst[i] to the value at which the cumulative distribution
// given by cdf at points xs reaches percentile ps[i]. cdf is clamped to
// [0, 1] and made non-decreasing in place. If cdf has any NaNs, dst is
// filled with NaN.
func invert(dst, xs, cdf, ps []float64) {
	if floats.HasNaN(cdf) {
		for i := range dst {
			dst[i] = math.NaN()
		}
		return
	}
	for i := range cdf {
		cdf[i] = math.Max(0, math.Min(1, cdf[i]))
		if i > 0 && cdf[i] < cdf[i-1] {
			cdf[i] = cdf[i-1]
		}
	}
	for i, p := range ps {
		q := p / 100
		j := sort.SearchFloat64s(cdf, q)
		switch {
		case j == 0:
			dst[i] = xs[0]
		case j == len(cdf):
			dst[i] = xs[len(xs)-1]
		default:
			f := (q - cdf[j-1]) / (cdf[j] - cdf[j-1])
			dst[i] = xs[j-1] + f*(xs[j]-xs[j-1])
		}
	}
}
