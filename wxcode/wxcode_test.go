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
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/spatialmodel/improver"
)

func grid() (lat, lon *improver.Coord) {
	return improver.NewCoord("latitude", "degrees", 50, 51),
		improver.NewCoord("longitude", "degrees", -3, -2)
}

func fill(v float64) []float64 { return []float64{v, v, v, v} }

// probCube returns a probability cube over a 2x2 grid, where probs[k]
// holds the probabilities at thresholds[k].
func probCube(diag string, cond Condition, u string, thresholds []float64, probs ...[]float64) *improver.Cube {
	tc := improver.NewCoord(diag, u, thresholds...)
	tc.Attributes = map[string]string{improver.RelativeToThreshold: string(cond)}
	lat, lon := grid()
	c := improver.NewCube(Query{Diagnostic: diag, Condition: cond}.CubeName(), "1", tc, lat, lon)
	for k, p := range probs {
		copy(c.Data.Elements[k*4:(k+1)*4], p)
	}
	return c
}

// twoNodeTree succeeds with a sunny day when rain is likely and otherwise
// decides between cloudy and partly cloudy.
func twoNodeTree() *Tree {
	return &Tree{
		Root: "precipitation",
		Nodes: map[string]*Node{
			"precipitation": {
				Queries:               []Query{{Diagnostic: "rainfall_rate", Threshold: 0.5, Units: "mm/h", Condition: Above}},
				ProbabilityThresholds: []float64{0.5},
				Comparison:            Greater,
				Succeed:               Terminal(SunnyDay),
				Fail:                  Goto("cloud"),
			},
			"cloud": {
				Queries:               []Query{{Diagnostic: "cloud_area_fraction", Threshold: 0.5, Units: "1", Condition: Above}},
				ProbabilityThresholds: []float64{0.5},
				Comparison:            GreaterEqual,
				Succeed:               Terminal(Cloudy),
				Fail:                  Terminal(PartlyCloudyDay),
			},
		},
	}
}

func codes(c *improver.Cube) []Code {
	o := make([]Code, len(c.Data.Elements))
	for i, v := range c.Data.Elements {
		o[i] = Code(int(v))
	}
	return o
}

func TestTwoNodeTree(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "mm hr-1", []float64{0.1, 0.5, 1},
		fill(0.9), []float64{0.2, 0.3, 0.4, 0.1}, fill(0))
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5},
		[]float64{0.9, 0.1, 0.5, 0.49})

	e, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	want := []Code{Cloudy, PartlyCloudyDay, Cloudy, PartlyCloudyDay}
	if got := codes(out); !reflect.DeepEqual(got, want) {
		t.Errorf("codes: got %v, want %v", got, want)
	}
	if out.Name != OutputName || out.Units != "1" {
		t.Errorf("output is %s [%s]", out.Name, out.Units)
	}
	if !reflect.DeepEqual(out.CoordNames(), []string{"latitude", "longitude"}) {
		t.Errorf("output coordinates %v", out.CoordNames())
	}
	if !strings.HasPrefix(out.Attributes["weather_code_meaning"], "Clear_Night Sunny_Day") {
		t.Errorf("weather_code_meaning = %q", out.Attributes["weather_code_meaning"])
	}
	path, c := e.Path(3)
	if !reflect.DeepEqual(path, []string{"precipitation", "cloud"}) || c != PartlyCloudyDay {
		t.Errorf("path %v, code %v", path, c)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "mm hr-1", []float64{0.5}, []float64{0.6, 0.5, 0.2, 0.9})
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5}, []float64{0.3, 0.7, 0.8, 0})
	e, err := NewEvaluator(twoNodeTree(), []*improver.Cube{cloud, rain})
	if err != nil {
		t.Fatal(err)
	}
	first, err := e.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	want := []Code{SunnyDay, Cloudy, Cloudy, SunnyDay}
	if got := codes(first); !reflect.DeepEqual(got, want) {
		t.Errorf("codes: got %v, want %v", got, want)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Evaluate()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first.Data.Elements, again.Data.Elements) {
			t.Fatalf("evaluation %d differs: %v != %v", i, again.Data.Elements, first.Data.Elements)
		}
	}
}

func TestMissingData(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "mm hr-1", []float64{0.5},
		[]float64{math.NaN(), 0.9, 1.5, 0.1})
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5},
		[]float64{0.9, math.NaN(), 0.9, math.NaN()})
	e, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	// Cell 1 never consults the missing cloud value.
	want := []Code{MissingCode, SunnyDay, MissingCode, MissingCode}
	if got := codes(out); !reflect.DeepEqual(got, want) {
		t.Errorf("codes: got %v, want %v", got, want)
	}
}

func TestMissingInput(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "mm hr-1", []float64{0.5}, fill(0))
	_, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain})
	var mi *MissingInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected a MissingInputError, got %v", err)
	}
	if mi.Diagnostic != "cloud_area_fraction" || mi.Threshold != nil {
		t.Errorf("wrong error: %v", mi)
	}

	// The cube exists but lacks the threshold.
	rain = probCube("rainfall_rate", Above, "mm hr-1", []float64{0.1, 1}, fill(0), fill(0))
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5}, fill(0))
	_, err = NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	if !errors.As(err, &mi) {
		t.Fatalf("expected a MissingInputError, got %v", err)
	}
	if mi.Diagnostic != "rainfall_rate" || mi.Threshold == nil || *mi.Threshold != 0.5 {
		t.Errorf("wrong error: %v", mi)
	}

	// A below-threshold cube doesn't answer an above-threshold query.
	rain = probCube("rainfall_rate", Below, "mm hr-1", []float64{0.5}, fill(0))
	_, err = NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	if !errors.As(err, &mi) {
		t.Fatalf("expected a MissingInputError, got %v", err)
	}
}

func TestThresholdUnitConversion(t *testing.T) {
	// 0.5 mm/h expressed in m s-1.
	rain := probCube("rainfall_rate", Above, "m s-1", []float64{0.5 / 3.6e6}, fill(1))
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5}, fill(0))
	e, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if got := codes(out); !reflect.DeepEqual(got, []Code{SunnyDay, SunnyDay, SunnyDay, SunnyDay}) {
		t.Errorf("codes: %v", got)
	}
}

func TestUnitMismatch(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "K", []float64{0.5}, fill(0))
	cloud := probCube("cloud_area_fraction", Above, "1", []float64{0.5}, fill(0))
	_, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud})
	var um *UnitMismatchError
	if !errors.As(err, &um) {
		t.Fatalf("expected a UnitMismatchError, got %v", err)
	}
	if um.Diagnostic != "rainfall_rate" || um.To != "K" {
		t.Errorf("wrong error: %v", um)
	}
}

func TestGridMismatch(t *testing.T) {
	rain := probCube("rainfall_rate", Above, "mm hr-1", []float64{0.5}, fill(0))
	cloud := func(lat, lon *improver.Coord) *improver.Cube {
		tc := improver.NewCoord("cloud_area_fraction", "1", 0.5)
		tc.Attributes = map[string]string{improver.RelativeToThreshold: "above"}
		return improver.NewCube("probability_of_cloud_area_fraction_above_threshold", "1", tc, lat, lon)
	}
	lat, lon := grid()
	tests := map[string]*improver.Cube{
		"shape": improver.NewCube("probability_of_cloud_area_fraction_above_threshold", "1",
			improver.NewCoord("threshold", "1", 0.5), improver.NewCoord("latitude", "degrees", 1, 2, 3)),
		"latitude points":  cloud(improver.NewCoord("latitude", "degrees", -80, -81), lon),
		"coordinate name":  cloud(lat, improver.NewCoord("x", "degrees", -3, -2)),
		"coordinate units": cloud(lat, improver.NewCoord("longitude", "radians", -3, -2)),
		"coordinate order": cloud(lon, lat),
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, c}); err == nil {
				t.Error("expected an error")
			}
		})
	}

	lat, lon = grid()
	lat.Points[0] *= 1 + 1e-7
	if _, err := NewEvaluator(twoNodeTree(), []*improver.Cube{rain, cloud(lat, lon)}); err != nil {
		t.Errorf("points within tolerance: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Tree)
	}{
		{"no root", func(t *Tree) { t.Root = "" }},
		{"missing root", func(t *Tree) { t.Root = "nowhere" }},
		{"dangling edge", func(t *Tree) { t.Nodes["cloud"].Fail = Goto("nowhere") }},
		{"empty edge", func(t *Tree) { t.Nodes["cloud"].Fail = Edge{} }},
		{"invalid code", func(t *Tree) { t.Nodes["cloud"].Fail = Terminal(31) }},
		{"missing code", func(t *Tree) { t.Nodes["cloud"].Fail = Terminal(MissingCode) }},
		{"cycle", func(t *Tree) { t.Nodes["cloud"].Fail = Goto("precipitation") }},
		{"self loop", func(t *Tree) { t.Nodes["cloud"].Succeed = Goto("cloud") }},
		{"no queries", func(t *Tree) { t.Nodes["cloud"].Queries = nil }},
		{"nil node", func(t *Tree) { t.Nodes["cloud"] = nil }},
		{"bad comparison", func(t *Tree) { t.Nodes["cloud"].Comparison = "==" }},
		{"bad combination", func(t *Tree) { t.Nodes["cloud"].Combination = "XOR" }},
		{"bad condition", func(t *Tree) { t.Nodes["cloud"].Queries[0].Condition = "equal" }},
		{"thresholds mismatch", func(t *Tree) { t.Nodes["cloud"].ProbabilityThresholds = []float64{0.5, 0.5} }},
		{"threshold range", func(t *Tree) { t.Nodes["cloud"].ProbabilityThresholds = []float64{1.5} }},
		{"no combination", func(t *Tree) {
			n := t.Nodes["cloud"]
			n.Queries = append(n.Queries, n.Queries[0])
			n.ProbabilityThresholds = []float64{0.5, 0.5}
		}},
	}
	if err := twoNodeTree().Validate(); err != nil {
		t.Fatal(err)
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tree := twoNodeTree()
			test.modify(tree)
			err := tree.Validate()
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected a ConfigurationError, got %v", err)
			}
			if _, err := NewEvaluator(tree, nil); !errors.As(err, &ce) {
				t.Errorf("NewEvaluator: expected a ConfigurationError, got %v", err)
			}
		})
	}
}

func TestRequirements(t *testing.T) {
	reqs, err := Requirements(twoNodeTree())
	if err != nil {
		t.Fatal(err)
	}
	want := []Requirement{
		{Diagnostic: "cloud_area_fraction", Condition: Above, Threshold: 0.5, Units: "1"},
		{Diagnostic: "rainfall_rate", Condition: Above, Threshold: 0.5, Units: "mm/h"},
	}
	if !reflect.DeepEqual(reqs, want) {
		t.Errorf("got %v, want %v", reqs, want)
	}
}

func TestDefaultTreeRequirements(t *testing.T) {
	reqs, err := Requirements(DefaultTree())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range reqs {
		got = append(got, r.Query().String())
	}
	want := []string{
		"cloud_area_fraction above 0.1875 1",
		"cloud_area_fraction above 0.8125 1",
		"low_type_cloud_area_fraction above 0.85 1",
		"lwe_snowfall_rate above 0.1 mm hr-1",
		"lwe_snowfall_rate above 1 mm hr-1",
		"rainfall_rate above 0.03 mm hr-1",
		"rainfall_rate above 0.1 mm hr-1",
		"rainfall_rate above 1 mm hr-1",
		"visibility_in_air below 1000 m",
		"visibility_in_air below 5000 m",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
	if len(DefaultTree().Reachable()) != len(DefaultTree().Nodes) {
		t.Errorf("%d of %d nodes are reachable", len(DefaultTree().Reachable()), len(DefaultTree().Nodes))
	}

	var b strings.Builder
	if err := WriteRequirements(&b, DefaultTree()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "probability_of_visibility_in_air_below_threshold\t1000\tm\n") {
		t.Errorf("requirements listing:\n%s", b.String())
	}
}

// defaultInputs builds the inputs of the default tree, with the
// probability for each requirement given by p.
func defaultInputs(p func(r Requirement) float64) []*improver.Cube {
	reqs, err := Requirements(DefaultTree())
	if err != nil {
		panic(err)
	}
	byCube := make(map[string][]Requirement)
	var order []string
	for _, r := range reqs {
		if _, ok := byCube[r.CubeName()]; !ok {
			order = append(order, r.CubeName())
		}
		byCube[r.CubeName()] = append(byCube[r.CubeName()], r)
	}
	var o []*improver.Cube
	for _, name := range order {
		rs := byCube[name]
		var thresholds []float64
		var probs [][]float64
		for _, r := range rs {
			thresholds = append(thresholds, r.Threshold)
			probs = append(probs, fill(p(r)))
		}
		o = append(o, probCube(rs[0].Diagnostic, rs[0].Condition, rs[0].Units, thresholds, probs...))
	}
	return o
}

func TestDefaultTree(t *testing.T) {
	tests := []struct {
		name  string
		probs map[string]float64 // keyed by query string
		want  Code
	}{
		{name: "clear", want: SunnyDay},
		{
			name: "heavy rain",
			probs: map[string]float64{
				"rainfall_rate above 1 mm hr-1":      1,
				"rainfall_rate above 0.1 mm hr-1":    1,
				"rainfall_rate above 0.03 mm hr-1":   1,
				"cloud_area_fraction above 0.8125 1": 1,
				"cloud_area_fraction above 0.1875 1": 1,
			},
			want: HeavyRain,
		},
		{
			name: "fog",
			probs: map[string]float64{
				"visibility_in_air below 1000 m": 1,
				"visibility_in_air below 5000 m": 1,
			},
			want: Fog,
		},
		{
			name: "light snow shower",
			probs: map[string]float64{
				"lwe_snowfall_rate above 0.1 mm hr-1": 0.8,
				"cloud_area_fraction above 0.1875 1":  1,
			},
			want: LightSnowShowerDay,
		},
		{
			name: "heavy sleet",
			probs: map[string]float64{
				"rainfall_rate above 0.1 mm hr-1":     0.7,
				"lwe_snowfall_rate above 1 mm hr-1":   0.6,
				"lwe_snowfall_rate above 0.1 mm hr-1": 0.9,
				"cloud_area_fraction above 0.8125 1":  0.9,
			},
			want: Sleet,
		},
		{
			name: "overcast",
			probs: map[string]float64{
				"cloud_area_fraction above 0.8125 1":        0.9,
				"cloud_area_fraction above 0.1875 1":        1,
				"low_type_cloud_area_fraction above 0.85 1": 0.6,
			},
			want: Overcast,
		},
		{
			name: "drizzle",
			probs: map[string]float64{
				"rainfall_rate above 0.03 mm hr-1": 0.6,
				"visibility_in_air below 5000 m":   0.6,
			},
			want: Drizzle,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			inputs := defaultInputs(func(r Requirement) float64 {
				return test.probs[r.Query().String()]
			})
			e, err := NewEvaluator(DefaultTree(), inputs)
			if err != nil {
				t.Fatal(err)
			}
			out, err := e.Evaluate()
			if err != nil {
				t.Fatal(err)
			}
			for i, c := range codes(out) {
				if c != test.want {
					path, _ := e.Path(i)
					t.Fatalf("cell %d: got %v, want %v (path %v)", i, c, test.want, path)
				}
			}
		})
	}
}
