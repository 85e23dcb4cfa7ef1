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
	"fmt"
	"io"
	"sort"
)

// Requirement is one probability field a tree needs as input.
type Requirement struct {
	Diagnostic string
	Condition  Condition
	Threshold  float64
	Units      string
}

// Query returns the query r satisfies.
func (r Requirement) Query() Query {
	return Query{Diagnostic: r.Diagnostic, Threshold: r.Threshold, Units: r.Units, Condition: r.Condition}
}

// CubeName returns the name of the probability cube that holds r.
func (r Requirement) CubeName() string { return r.Query().CubeName() }

// Requirements returns the distinct inputs needed to evaluate every node
// reachable from the root of t, sorted by diagnostic, then threshold.
// No data is read.
func Requirements(t *Tree) ([]Requirement, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[Requirement]bool)
	var o []Requirement
	for _, name := range t.Reachable() {
		for _, q := range t.Nodes[name].Queries {
			r := Requirement{
				Diagnostic: q.Diagnostic,
				Condition:  q.Condition,
				Threshold:  q.Threshold,
				Units:      q.Units,
			}
			if !seen[r] {
				seen[r] = true
				o = append(o, r)
			}
		}
	}
	sort.Slice(o, func(i, j int) bool {
		a, b := o[i], o[j]
		if a.Diagnostic != b.Diagnostic {
			return a.Diagnostic < b.Diagnostic
		}
		if a.Threshold != b.Threshold {
			return a.Threshold < b.Threshold
		}
		if a.Condition != b.Condition {
			return a.Condition < b.Condition
		}
		return a.Units < b.Units
	})
	return o, nil
}

// WriteRequirements writes a table of the requirements of t to w, one
// line per input cube and threshold.
func WriteRequirements(w io.Writer, t *Tree) error {
	reqs, err := Requirements(t)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if _, err := fmt.Fprintf(w, "%s\t%g\t%s\n", r.CubeName(), r.Threshold, r.Units); err != nil {
			return err
		}
	}
	return nil
}
