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

package improver

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
)

// RelativeToThreshold is the coordinate attribute that marks the threshold
// coordinate of a probability cube. Its value is either "above" or "below".
const RelativeToThreshold = "spp__relative_to_threshold"

// ProbabilityPrefix is the name prefix of cubes holding probabilities of
// exceeding (or falling short of) a set of thresholds.
const ProbabilityPrefix = "probability_of_"

// Coord is a one-dimensional coordinate labelling one dimension of a Cube.
type Coord struct {
	Name       string
	Units      string
	Points     []float64
	Attributes map[string]string
}

// NewCoord returns a new coordinate with a copy of the given points.
func NewCoord(name, units string, points ...float64) *Coord {
	p := make([]float64, len(points))
	copy(p, points)
	return &Coord{Name: name, Units: units, Points: p}
}

// Len returns the number of points in c.
func (c *Coord) Len() int { return len(c.Points) }

// Copy returns a deep copy of c.
func (c *Coord) Copy() *Coord {
	o := NewCoord(c.Name, c.Units, c.Points...)
	if c.Attributes != nil {
		o.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			o.Attributes[k] = v
		}
	}
	return o
}

// Index returns the index of the point in c that matches v to within
// relative tolerance tol, or -1 if there is no such point.
func (c *Coord) Index(v, tol float64) int {
	for i, p := range c.Points {
		if p == v {
			return i
		}
		scale := math.Max(math.Abs(p), math.Abs(v))
		if math.Abs(p-v) <= tol*scale {
			return i
		}
	}
	return -1
}

// Matches returns whether c and o have the same name and units and points
// equal to within relative tolerance tol.
func (c *Coord) Matches(o *Coord, tol float64) bool {
	if c.Name != o.Name || c.Units != o.Units || c.Len() != o.Len() {
		return false
	}
	for i, p := range c.Points {
		v := o.Points[i]
		if p == v {
			continue
		}
		if math.Abs(p-v) > tol*math.Max(math.Abs(p), math.Abs(v)) {
			return false
		}
	}
	return true
}

// Cube is a gridded, coordinate-labelled array of values. Data has one
// dimension per element of Coords, in the same order.
type Cube struct {
	Name       string
	Units      string
	Coords     []*Coord
	Attributes map[string]string
	Data       *sparse.DenseArray
}

// NewCube creates a cube with zero-valued data shaped by coords.
func NewCube(name, units string, coords ...*Coord) *Cube {
	c := &Cube{
		Name:   name,
		Units:  units,
		Coords: coords,
	}
	c.Data = sparse.ZerosDense(c.Shape()...)
	return c
}

// Shape returns the lengths of the dimensions of c.
func (c *Cube) Shape() []int {
	s := make([]int, len(c.Coords))
	for i, cc := range c.Coords {
		s[i] = cc.Len()
	}
	return s
}

// Size returns the total number of elements in c.
func (c *Cube) Size() int {
	n := 1
	for _, cc := range c.Coords {
		n *= cc.Len()
	}
	return n
}

// DimIndex returns the dimension index of the named coordinate,
// or -1 if c has no such coordinate.
func (c *Cube) DimIndex(name string) int {
	for i, cc := range c.Coords {
		if cc.Name == name {
			return i
		}
	}
	return -1
}

// Coord returns the named coordinate, or nil if c has no such coordinate.
func (c *Cube) Coord(name string) *Coord {
	if i := c.DimIndex(name); i >= 0 {
		return c.Coords[i]
	}
	return nil
}

// SameGrid returns an error if c and o don't have matching coordinates
// in the same order.
func (c *Cube) SameGrid(o *Cube, tol float64) error {
	if len(c.Coords) != len(o.Coords) {
		return fmt.Errorf("improver: cube %s has coordinates %v but %s has %v",
			c.Name, c.CoordNames(), o.Name, o.CoordNames())
	}
	for i, cc := range c.Coords {
		if !cc.Matches(o.Coords[i], tol) {
			return fmt.Errorf("improver: coordinate %d of cube %s (%s [%s]) doesn't match coordinate %s [%s] of cube %s",
				i, c.Name, cc.Name, cc.Units, o.Coords[i].Name, o.Coords[i].Units, o.Name)
		}
	}
	return nil
}

// CoordNames returns the names of the coordinates of c in dimension order.
func (c *Cube) CoordNames() []string {
	o := make([]string, len(c.Coords))
	for i, cc := range c.Coords {
		o[i] = cc.Name
	}
	return o
}

// Validate checks that the data in c is consistent with its coordinates.
func (c *Cube) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("improver: cube has no name")
	}
	if c.Data == nil {
		return fmt.Errorf("improver: cube %s has no data", c.Name)
	}
	if len(c.Data.Shape) != len(c.Coords) {
		return fmt.Errorf("improver: cube %s has %d dimensions but %d coordinates",
			c.Name, len(c.Data.Shape), len(c.Coords))
	}
	seen := make(map[string]bool)
	for i, cc := range c.Coords {
		if seen[cc.Name] {
			return fmt.Errorf("improver: cube %s has repeated coordinate %s", c.Name, cc.Name)
		}
		seen[cc.Name] = true
		if c.Data.Shape[i] != cc.Len() {
			return fmt.Errorf("improver: cube %s dimension %d (%s) has length %d but the coordinate has %d points",
				c.Name, i, cc.Name, c.Data.Shape[i], cc.Len())
		}
	}
	if len(c.Data.Elements) != c.Size() {
		return fmt.Errorf("improver: cube %s data has %d elements but shape %v",
			c.Name, len(c.Data.Elements), c.Shape())
	}
	return nil
}

// Copy returns a deep copy of c.
func (c *Cube) Copy() *Cube {
	o := &Cube{
		Name:       c.Name,
		Units:      c.Units,
		Coords:     make([]*Coord, len(c.Coords)),
		Attributes: CopyAttributes(c.Attributes),
	}
	for i, cc := range c.Coords {
		o.Coords[i] = cc.Copy()
	}
	o.Data = sparse.ZerosDense(o.Shape()...)
	copy(o.Data.Elements, c.Data.Elements)
	return o
}

// Slice returns the sub-cube at the given index of dimension dim,
// with that dimension removed.
func (c *Cube) Slice(dim, index int) (*Cube, error) {
	if dim < 0 || dim >= len(c.Coords) {
		return nil, fmt.Errorf("improver: cube %s has no dimension %d", c.Name, dim)
	}
	shape := c.Shape()
	if index < 0 || index >= shape[dim] {
		return nil, fmt.Errorf("improver: index %d out of range for coordinate %s of cube %s",
			index, c.Coords[dim].Name, c.Name)
	}
	outer, inner := strides(shape, dim)
	n := shape[dim]

	o := &Cube{
		Name:       c.Name,
		Units:      c.Units,
		Attributes: CopyAttributes(c.Attributes),
	}
	for i, cc := range c.Coords {
		if i != dim {
			o.Coords = append(o.Coords, cc.Copy())
		}
	}
	o.Data = sparse.ZerosDense(o.Shape()...)
	for j := 0; j < outer; j++ {
		src := c.Data.Elements[(j*n+index)*inner : (j*n+index+1)*inner]
		copy(o.Data.Elements[j*inner:(j+1)*inner], src)
	}
	return o, nil
}

// ThresholdCoord returns the threshold coordinate of a probability cube and
// its dimension index. The threshold coordinate is the one carrying the
// RelativeToThreshold attribute or, failing that, the one named "threshold".
func (c *Cube) ThresholdCoord() (*Coord, int, error) {
	for i, cc := range c.Coords {
		if _, ok := cc.Attributes[RelativeToThreshold]; ok {
			return cc, i, nil
		}
	}
	if i := c.DimIndex("threshold"); i >= 0 {
		return c.Coords[i], i, nil
	}
	return nil, -1, fmt.Errorf("improver: cube %s has no threshold coordinate", c.Name)
}

// Relation returns whether the probabilities in c are of values "above" or
// "below" the thresholds. Cubes that don't declare a relation are taken to
// be "above", unless their name says otherwise.
func (c *Cube) Relation() string {
	if cc, _, err := c.ThresholdCoord(); err == nil {
		if r, ok := cc.Attributes[RelativeToThreshold]; ok {
			return r
		}
	}
	if strings.HasSuffix(c.Name, "_below_threshold") {
		return "below"
	}
	return "above"
}

// Diagnostic returns the name of the underlying diagnostic of a probability
// cube, e.g. "rainfall_rate" for "probability_of_rainfall_rate_above_threshold".
func (c *Cube) Diagnostic() string {
	n := strings.TrimPrefix(c.Name, ProbabilityPrefix)
	for _, suffix := range []string{"_above_threshold", "_below_threshold"} {
		n = strings.TrimSuffix(n, suffix)
	}
	return n
}

// ProbabilityName returns the name of the probability cube holding the
// probabilities of diagnostic being relative ("above" or "below") to a
// set of thresholds.
func ProbabilityName(diagnostic, relative string) string {
	return ProbabilityPrefix + diagnostic + "_" + relative + "_threshold"
}

// strides returns the number of elements before and after dimension dim
// in an array of the given shape.
func strides(shape []int, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i, s := range shape {
		switch {
		case i < dim:
			outer *= s
		case i > dim:
			inner *= s
		}
	}
	return outer, inner
}

// CopyAttributes returns a copy of a, or nil if a is nil.
func CopyAttributes(a map[string]string) map[string]string {
	if a == nil {
		return nil
	}
	o := make(map[string]string, len(a))
	for k, v := range a {
		o[k] = v
	}
	return o
}

// Increment advances the row-major multi-dimensional index idx of an
// array with the given shape by one, wrapping to zero after the last
// element.
func Increment(idx, shape []int) {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return
		}
		idx[d] = 0
	}
}

// attributeNames returns the keys of a in sorted order.
func attributeNames(a map[string]string) []string {
	o := make([]string, 0, len(a))
	for k := range a {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
