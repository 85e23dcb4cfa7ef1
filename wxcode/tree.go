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

// Package wxcode assigns a categorical weather symbol to each cell of a
// grid by walking a decision tree of threshold-probability queries.
package wxcode

import (
	"fmt"
	"sort"

	"github.com/spatialmodel/improver"
)

// Condition is the side of a threshold a probability refers to.
type Condition string

// Threshold conditions.
const (
	Above Condition = "above"
	Below Condition = "below"
)

func (c Condition) valid() bool { return c == Above || c == Below }

// Comparison is the operator used to compare a probability with a node's
// probability threshold.
type Comparison string

// Probability comparisons.
const (
	GreaterEqual Comparison = ">="
	Greater      Comparison = ">"
	LessEqual    Comparison = "<="
	Less         Comparison = "<"
)

func (c Comparison) valid() bool {
	switch c {
	case GreaterEqual, Greater, LessEqual, Less:
		return true
	}
	return false
}

// compare returns p c v.
func (c Comparison) compare(p, v float64) bool {
	switch c {
	case GreaterEqual:
		return p >= v
	case Greater:
		return p > v
	case LessEqual:
		return p <= v
	case Less:
		return p < v
	}
	panic(fmt.Errorf("wxcode: invalid comparison %q", string(c)))
}

// Combination is the logical operator combining the queries of a node.
type Combination string

// Query combinations. None is only valid for nodes with a single query.
const (
	None Combination = ""
	And  Combination = "AND"
	Or   Combination = "OR"
)

// Query asks for the probability that a diagnostic is above or below
// a threshold.
type Query struct {
	Diagnostic string
	Threshold  float64
	Units      string
	Condition  Condition
}

// CubeName returns the name of the probability cube that answers q.
func (q Query) CubeName() string {
	return improver.ProbabilityName(q.Diagnostic, string(q.Condition))
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s %g %s", q.Diagnostic, q.Condition, q.Threshold, q.Units)
}

// Edge is an outcome of a decision node: either another node or a
// terminal weather symbol.
type Edge struct {
	Node     string
	Code     Code
	terminal bool
}

// Goto returns an edge leading to the named node.
func Goto(node string) Edge { return Edge{Node: node} }

// Terminal returns an edge ending the traversal with code c.
func Terminal(c Code) Edge { return Edge{Code: c, terminal: true} }

// IsTerminal returns whether e ends the traversal.
func (e Edge) IsTerminal() bool { return e.terminal }

func (e Edge) String() string {
	if e.terminal {
		return fmt.Sprintf("%d (%s)", int(e.Code), e.Code)
	}
	return e.Node
}

// Node is a decision node. Each query i is true for a grid cell when the
// probability it asks for compares with ProbabilityThresholds[i] according
// to Comparison. The results are combined with Combination, and the
// traversal follows Succeed if the combined result is true, and Fail
// otherwise.
type Node struct {
	Queries               []Query
	Combination           Combination
	ProbabilityThresholds []float64
	Comparison            Comparison
	Succeed, Fail         Edge
}

// Tree is a weather symbol decision tree.
type Tree struct {
	Root  string
	Nodes map[string]*Node
}

// Validate checks that t is well formed: the root exists, every node has
// valid queries and operators, every edge leads to an existing node or a
// valid symbol code, and no path from the root revisits a node.
func (t *Tree) Validate() error {
	if t.Root == "" {
		return configErr("", "no root node")
	}
	if _, ok := t.Nodes[t.Root]; !ok {
		return configErr("", "root node %q does not exist", t.Root)
	}
	for _, name := range t.nodeNames() {
		if err := t.validateNode(name, t.Nodes[name]); err != nil {
			return err
		}
	}
	return t.checkCycles()
}

func (t *Tree) validateNode(name string, n *Node) error {
	if n == nil {
		return configErr(name, "node is empty")
	}
	if len(n.Queries) == 0 {
		return configErr(name, "node has no queries")
	}
	for _, q := range n.Queries {
		if q.Diagnostic == "" {
			return configErr(name, "query has no diagnostic")
		}
		if !q.Condition.valid() {
			return configErr(name, "invalid condition %q for %s", string(q.Condition), q.Diagnostic)
		}
	}
	switch n.Combination {
	case And, Or:
	case None:
		if len(n.Queries) > 1 {
			return configErr(name, "%d queries but no combination", len(n.Queries))
		}
	default:
		return configErr(name, "invalid combination %q", string(n.Combination))
	}
	if !n.Comparison.valid() {
		return configErr(name, "invalid comparison %q", string(n.Comparison))
	}
	if len(n.ProbabilityThresholds) != len(n.Queries) {
		return configErr(name, "%d probability thresholds for %d queries",
			len(n.ProbabilityThresholds), len(n.Queries))
	}
	for _, p := range n.ProbabilityThresholds {
		if !(p >= 0 && p <= 1) {
			return configErr(name, "probability threshold %g is not between 0 and 1", p)
		}
	}
	for _, e := range []Edge{n.Succeed, n.Fail} {
		if e.terminal {
			if !e.Code.Valid() {
				return configErr(name, "invalid weather code %d", int(e.Code))
			}
			continue
		}
		if e.Node == "" {
			return configErr(name, "edge leads nowhere")
		}
		if _, ok := t.Nodes[e.Node]; !ok {
			return configErr(name, "edge leads to undefined node %q", e.Node)
		}
	}
	return nil
}

// checkCycles does a depth-first search from the root and fails if a node
// is reached again while it is still on the search stack.
func (t *Tree) checkCycles() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case onStack:
			return configErr(name, "node is part of a cycle")
		case done:
			return nil
		}
		state[name] = onStack
		n := t.Nodes[name]
		for _, e := range []Edge{n.Succeed, n.Fail} {
			if !e.terminal {
				if err := visit(e.Node); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}
	return visit(t.Root)
}

// Reachable returns the names of the nodes reachable from the root, in the
// order a depth-first search following Succeed before Fail first visits
// them. It assumes t is valid.
func (t *Tree) Reachable() []string {
	seen := make(map[string]bool)
	var o []string
	var visit func(name string)
	visit = func(name string) {
		n, ok := t.Nodes[name]
		if seen[name] || !ok {
			return
		}
		seen[name] = true
		o = append(o, name)
		for _, e := range []Edge{n.Succeed, n.Fail} {
			if !e.terminal {
				visit(e.Node)
			}
		}
	}
	visit(t.Root)
	return o
}

func (t *Tree) nodeNames() []string {
	o := make([]string, 0, len(t.Nodes))
	for k := range t.Nodes {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
