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
	"strings"

	"github.com/BurntSushi/toml"
)

type tomlTree struct {
	Root  string              `toml:"root"`
	Nodes map[string]tomlNode `toml:"nodes"`
}

type tomlNode struct {
	Queries               []tomlQuery `toml:"queries"`
	Combination           string      `toml:"combination"`
	ProbabilityThresholds []float64   `toml:"probability_thresholds"`
	Comparison            string      `toml:"comparison"`

	// Succeed and Fail are either a node name or a weather code.
	Succeed interface{} `toml:"succeed"`
	Fail    interface{} `toml:"fail"`
}

type tomlQuery struct {
	Diagnostic string  `toml:"diagnostic"`
	Threshold  float64 `toml:"threshold"`
	Units      string  `toml:"units"`
	Condition  string  `toml:"condition"`
}

// LoadTree reads a decision tree in TOML format from r and validates it.
// For example:
//
//	root = "precipitation"
//
//	[nodes.precipitation]
//	combination = ""
//	comparison = ">="
//	probability_thresholds = [0.5]
//	succeed = 12
//	fail = "cloud"
//
//	[[nodes.precipitation.queries]]
//	diagnostic = "rainfall_rate"
//	threshold = 0.1
//	units = "mm hr-1"
//	condition = "above"
//
// Edges given as integers are weather codes; edges given as strings are
// node names.
func LoadTree(r io.Reader) (*Tree, error) {
	var tf tomlTree
	md, err := toml.DecodeReader(r, &tf)
	if err != nil {
		return nil, fmt.Errorf("wxcode: reading decision tree: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("wxcode: reading decision tree: unknown keys %s", strings.Join(keys, ", "))
	}
	t := &Tree{Root: tf.Root, Nodes: make(map[string]*Node, len(tf.Nodes))}
	for name, n := range tf.Nodes {
		node := &Node{
			Combination:           Combination(strings.ToUpper(n.Combination)),
			ProbabilityThresholds: n.ProbabilityThresholds,
			Comparison:            Comparison(n.Comparison),
		}
		for _, q := range n.Queries {
			node.Queries = append(node.Queries, Query{
				Diagnostic: q.Diagnostic,
				Threshold:  q.Threshold,
				Units:      q.Units,
				Condition:  Condition(strings.ToLower(q.Condition)),
			})
		}
		if node.Succeed, err = tomlEdge(name, "succeed", n.Succeed); err != nil {
			return nil, err
		}
		if node.Fail, err = tomlEdge(name, "fail", n.Fail); err != nil {
			return nil, err
		}
		t.Nodes[name] = node
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func tomlEdge(node, key string, v interface{}) (Edge, error) {
	switch e := v.(type) {
	case string:
		return Goto(e), nil
	case int64:
		return Terminal(Code(e)), nil
	case nil:
		return Edge{}, configErr(node, "missing %s", key)
	default:
		return Edge{}, configErr(node, "%s must be a node name or a weather code, not %v", key, v)
	}
}
