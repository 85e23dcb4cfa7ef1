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

package wxcode

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/units"
)

// OutputName is the name of the weather symbol cube.
const OutputName = "weather_code"

// ThresholdTolerance is the relative tolerance used to match a query
// threshold with a point of an input's threshold coordinate.
const ThresholdTolerance = 1e-5

// Evaluator assigns weather symbols to a grid using a decision tree and
// the probability fields the tree asks for.
type Evaluator struct {
	root   *compiledNode
	grid   *improver.Cube // template holding the grid coordinates
	ncells int
}

type compiledNode struct {
	name        string
	fields      [][]float64
	pThresholds []float64
	comparison  Comparison
	combination Combination
	succeed     compiledEdge
	fail        compiledEdge
}

type compiledEdge struct {
	next *compiledNode
	code Code
}

// NewEvaluator validates tree and resolves every query of every node
// reachable from its root against inputs. Inputs are probability cubes
// named probability_of_<diagnostic>_<above|below>_threshold. It fails with
// a *MissingInputError if a field is absent, with a *UnitMismatchError if
// a threshold can't be expressed in the units of its input, and with a
// *ConfigurationError if the tree is malformed.
func NewEvaluator(tree *Tree, inputs []*improver.Cube) (*Evaluator, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	byName := make(map[string]*improver.Cube, len(inputs))
	for _, c := range inputs {
		byName[c.Name] = c
	}
	e := new(Evaluator)

	type fieldKey struct {
		cube      string
		threshold float64
		units     string
	}
	fields := make(map[fieldKey][]float64)
	resolve := func(q Query) ([]float64, error) {
		k := fieldKey{cube: q.CubeName(), threshold: q.Threshold, units: q.Units}
		if f, ok := fields[k]; ok {
			return f, nil
		}
		c, ok := byName[k.cube]
		if !ok {
			return nil, &MissingInputError{Diagnostic: q.Diagnostic, Cube: k.cube}
		}
		slice, err := thresholdSlice(c, q)
		if err != nil {
			return nil, err
		}
		if e.grid == nil {
			e.grid = slice
			e.ncells = slice.Size()
		} else if err := e.grid.SameGrid(slice, ThresholdTolerance); err != nil {
			return nil, fmt.Errorf("wxcode: inputs are on different grids: %v", err)
		}
		fields[k] = slice.Data.Elements
		return slice.Data.Elements, nil
	}

	compiled := make(map[string]*compiledNode)
	names := tree.Reachable()
	for _, name := range names {
		compiled[name] = &compiledNode{name: name}
	}
	for _, name := range names {
		n := tree.Nodes[name]
		cn := compiled[name]
		cn.pThresholds = n.ProbabilityThresholds
		cn.comparison = n.Comparison
		cn.combination = n.Combination
		for _, q := range n.Queries {
			f, err := resolve(q)
			if err != nil {
				return nil, err
			}
			cn.fields = append(cn.fields, f)
		}
		cn.succeed = compileEdge(n.Succeed, compiled)
		cn.fail = compileEdge(n.Fail, compiled)
	}
	e.root = compiled[tree.Root]
	return e, nil
}

func compileEdge(e Edge, compiled map[string]*compiledNode) compiledEdge {
	if e.IsTerminal() {
		return compiledEdge{code: e.Code}
	}
	return compiledEdge{next: compiled[e.Node]}
}

// thresholdSlice returns the field of c at the threshold asked for by q.
func thresholdSlice(c *improver.Cube, q Query) (*improver.Cube, error) {
	tc, dim, err := c.ThresholdCoord()
	if err != nil {
		return nil, err
	}
	v, err := units.Convert(q.Threshold, q.Units, tc.Units)
	if err != nil {
		var ie *units.IncompatibleError
		if errors.As(err, &ie) {
			return nil, &UnitMismatchError{Diagnostic: q.Diagnostic, From: q.Units, To: tc.Units, Err: err}
		}
		return nil, fmt.Errorf("wxcode: threshold for %s: %w", q.Diagnostic, err)
	}
	i := tc.Index(v, ThresholdTolerance)
	if i < 0 {
		t := q.Threshold
		return nil, &MissingInputError{Diagnostic: q.Diagnostic, Cube: c.Name, Threshold: &t, Units: q.Units}
	}
	return c.Slice(dim, i)
}

// test evaluates the queries of n for cell i. valid is false if any of the
// probabilities is missing or outside [0, 1].
func (n *compiledNode) test(i int) (result, valid bool) {
	result = n.combination == And
	for j, f := range n.fields {
		p := f[i]
		if math.IsNaN(p) || p < 0 || p > 1 {
			return false, false
		}
		r := n.comparison.compare(p, n.pThresholds[j])
		if n.combination == And {
			result = result && r
		} else {
			result = result || r
		}
	}
	return result, true
}

// cell walks the tree for grid cell i, calling visit with the name of
// every node it passes through.
func (e *Evaluator) cell(i int, visit func(string)) Code {
	n := e.root
	for {
		if visit != nil {
			visit(n.name)
		}
		ok, valid := n.test(i)
		if !valid {
			return MissingCode
		}
		edge := n.fail
		if ok {
			edge = n.succeed
		}
		if edge.next == nil {
			return edge.code
		}
		n = edge.next
	}
}

// Evaluate returns a cube holding the weather symbol code of every cell
// of the input grid. Cells where a probability on the path through the
// tree is missing or invalid get MissingCode.
func (e *Evaluator) Evaluate() (*improver.Cube, error) {
	o := e.grid.Copy()
	o.Name = OutputName
	o.Units = "1"
	o.Attributes = symbolAttributes()

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < e.ncells; ii += nprocs {
				o.Data.Elements[ii] = float64(e.cell(ii, nil))
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return o, nil
}

// Path returns the names of the nodes visited for grid cell i, and the
// code the cell is assigned.
func (e *Evaluator) Path(i int) ([]string, Code) {
	if i < 0 || i >= e.ncells {
		return nil, MissingCode
	}
	var path []string
	c := e.cell(i, func(name string) { path = append(path, name) })
	return path, c
}

// symbolAttributes describes the codes in a weather symbol cube.
func symbolAttributes() map[string]string {
	codes := Codes()
	nums := make([]string, len(codes))
	names := make([]string, len(codes))
	for i, c := range codes {
		nums[i] = strconv.Itoa(int(c))
		names[i] = c.String()
	}
	return map[string]string{
		"weather_code":         strings.Join(nums, " "),
		"weather_code_meaning": strings.Join(names, " "),
	}
}
