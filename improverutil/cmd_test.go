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

package improverutil

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/percentile"
	"github.com/spatialmodel/improver/wxcode"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func newTestConfig() *Cfg {
	cfg := InitializeConfig()
	cfg.Log.Out = ioutil.Discard
	return cfg
}

func writeCubes(t *testing.T, path string, cubes ...*improver.Cube) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := improver.Save(f, cubes...); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// ensembleFile writes a 4-member ensemble of air temperatures on a 2-point
// grid, where member r has values 280+r and 290+2r.
func ensembleFile(t *testing.T, dir string) string {
	c := improver.NewCube("air_temperature", "K",
		improver.NewCoord("realization", "1", 0, 1, 2, 3),
		improver.NewCoord("latitude", "degrees", 50, 51))
	for r := 0; r < 4; r++ {
		c.Data.Elements[r*2] = 280 + float64(r)
		c.Data.Elements[r*2+1] = 290 + 2*float64(r)
	}
	path := filepath.Join(dir, "ensemble.nc")
	writeCubes(t, path, c)
	return path
}

func TestVersion(t *testing.T) {
	cfg := newTestConfig()
	var buf bytes.Buffer
	cfg.Root.SetOutput(&buf)
	if err := cfg.Execute("version"); err != nil {
		t.Fatal(err)
	}
	if want := "IMPROVER v" + improver.Version + "\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPercentileCollapse(t *testing.T) {
	dir := t.TempDir()
	in := ensembleFile(t, dir)
	out := filepath.Join(dir, "percentiles.nc")

	cfg := newTestConfig()
	if err := cfg.Execute("percentile", in, out, "--coordinates", "realization", "--percentiles", "0,50,100"); err != nil {
		t.Fatal(err)
	}
	c, err := improver.LoadCube(out, "air_temperature")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.CoordNames(), []string{percentile.CoordName, "latitude"}) {
		t.Errorf("coordinates %v", c.CoordNames())
	}
	want := []float64{280, 290, 281.5, 293, 283, 296}
	for i, v := range c.Data.Elements {
		if different(v, want[i], 1e-6) {
			t.Errorf("element %d: got %g, want %g", i, v, want[i])
		}
	}
}

func TestPercentileDefault(t *testing.T) {
	dir := t.TempDir()
	in := ensembleFile(t, dir)
	out := filepath.Join(dir, "percentiles.nc")

	cfg := newTestConfig()
	if err := cfg.Execute("percentile", in, out, "--coordinates=realization"); err != nil {
		t.Fatal(err)
	}
	c, err := improver.LoadCube(out, "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Coord(percentile.CoordName).Points, percentile.Default) {
		t.Errorf("percentiles %v", c.Coord(percentile.CoordName).Points)
	}
}

func TestPercentileConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := ensembleFile(t, dir)
	out := filepath.Join(dir, "percentiles.nc")
	config := filepath.Join(dir, "config.toml")
	if err := ioutil.WriteFile(config, []byte("coordinates = [\"realization\"]\nno-of-percentiles = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := newTestConfig()
	if err := cfg.Execute("percentile", in, out, "--config", config); err != nil {
		t.Fatal(err)
	}
	c, err := improver.LoadCube(out, "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Coord(percentile.CoordName).Points, []float64{25, 50, 75}) {
		t.Errorf("percentiles %v", c.Coord(percentile.CoordName).Points)
	}
}

func TestPercentileErrors(t *testing.T) {
	dir := t.TempDir()
	in := ensembleFile(t, dir)
	out := filepath.Join(dir, "percentiles.nc")
	tests := map[string][]string{
		"no coordinates":      {"percentile", in, out},
		"missing coordinate":  {"percentile", in, out, "--coordinates", "height"},
		"mutually exclusive":  {"percentile", in, out, "--coordinates", "realization", "--percentiles", "50", "--no-of-percentiles", "3"},
		"bad percentile":      {"percentile", in, out, "--coordinates", "realization", "--percentiles", "150"},
		"bad number":          {"percentile", in, out, "--coordinates", "realization", "--percentiles", "fifty"},
		"missing input":       {"percentile", filepath.Join(dir, "nothing.nc"), out, "--coordinates", "realization"},
		"missing output dir":  {"percentile", in, filepath.Join(dir, "nowhere", "out.nc"), "--coordinates", "realization"},
		"too few arguments":   {"percentile", in},
		"negative percentile": {"percentile", in, out, "--coordinates", "realization", "--no-of-percentiles", "-2"},
		"zero percentiles":    {"percentile", in, out, "--coordinates", "realization", "--no-of-percentiles", "0"},
		"percentile count":    {"percentile", in, out, "--coordinates", "realization", "--no-of-percentiles", "three"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := newTestConfig()
			if err := cfg.Execute(args...); err == nil {
				t.Error("expected an error")
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("output file was written")
			}
		})
	}
}

func probabilityCube(diag, rel, units string, thresholds []float64, probs ...float64) *improver.Cube {
	tc := improver.NewCoord(diag, units, thresholds...)
	tc.Attributes = map[string]string{improver.RelativeToThreshold: rel}
	c := improver.NewCube(improver.ProbabilityName(diag, rel), "1", tc,
		improver.NewCoord("latitude", "degrees", 50.7),
		improver.NewCoord("longitude", "degrees", -3.5))
	copy(c.Data.Elements, probs)
	return c
}

func TestPercentileProbabilities(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "probabilities.nc")
	writeCubes(t, in, probabilityCube("rainfall_rate", "above", "mm hr-1", []float64{0, 1, 2}, 1, 0.5, 0))
	out := filepath.Join(dir, "percentiles.nc")

	cfg := newTestConfig()
	if err := cfg.Execute("percentile", in, out, "--percentiles", "25,50,75"); err != nil {
		t.Fatal(err)
	}
	c, err := improver.LoadCube(out, "rainfall_rate")
	if err != nil {
		t.Fatal(err)
	}
	if c.Units != "mm hr-1" {
		t.Errorf("units %q", c.Units)
	}
	want := []float64{0.5, 1, 1.5}
	for i, v := range c.Data.Elements {
		if different(v, want[i], 1e-6) {
			t.Errorf("element %d: got %g, want %g", i, v, want[i])
		}
	}
}

func TestPercentileBoundsWarning(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "probabilities.nc")
	writeCubes(t, in, probabilityCube("rainfall_rate", "above", "mm hr-1", []float64{1, 200}, 0.5, 0))
	out := filepath.Join(dir, "percentiles.nc")

	cfg := newTestConfig()
	if err := cfg.Execute("percentile", in, out, "--percentiles", "50"); err == nil {
		t.Fatal("expected an out of bounds error")
	}
	cfg = newTestConfig()
	var buf bytes.Buffer
	cfg.Log.Out = &buf
	if err := cfg.Execute("percentile", in, out, "--percentiles", "50", "--ecc-bounds-warning"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "level=warning") {
		t.Errorf("no warning logged: %q", buf.String())
	}
}

const testTree = `
root = "precipitation"

[nodes.precipitation]
comparison = ">="
probability_thresholds = [0.5]
succeed = 12
fail = "cloud"

  [[nodes.precipitation.queries]]
  diagnostic = "rainfall_rate"
  threshold = 0.1
  units = "mm hr-1"
  condition = "above"

[nodes.cloud]
comparison = ">="
probability_thresholds = [0.5]
succeed = 7
fail = 1

  [[nodes.cloud.queries]]
  diagnostic = "cloud_area_fraction"
  threshold = 0.8125
  units = "1"
  condition = "above"
`

func wxcodeInputs(t *testing.T, dir string, rain, cloud float64) (treeFile string, inputs []string) {
	treeFile = filepath.Join(dir, "tree.toml")
	if err := ioutil.WriteFile(treeFile, []byte(testTree), 0644); err != nil {
		t.Fatal(err)
	}
	r := probabilityCube("rainfall_rate", "above", "mm hr-1", []float64{0.1, 1}, rain, 0)
	r.Attributes = map[string]string{"time": "2018-06-21T00:00:00Z"}
	c := probabilityCube("cloud_area_fraction", "above", "1", []float64{0.1875, 0.8125}, 1, cloud)
	inputs = []string{filepath.Join(dir, "rain.nc"), filepath.Join(dir, "cloud.nc")}
	writeCubes(t, inputs[0], r)
	writeCubes(t, inputs[1], c)
	return treeFile, inputs
}

func loadCodes(t *testing.T, path string) []wxcode.Code {
	t.Helper()
	c, err := improver.LoadCube(path, wxcode.OutputName)
	if err != nil {
		t.Fatal(err)
	}
	o := make([]wxcode.Code, len(c.Data.Elements))
	for i, v := range c.Data.Elements {
		o[i] = wxcode.Code(int(v))
	}
	return o
}

func TestWXCode(t *testing.T) {
	tests := []struct {
		rain, cloud float64
		args        []string
		want        wxcode.Code
	}{
		{rain: 0.9, cloud: 1, want: wxcode.LightRain},
		{rain: 0.1, cloud: 0.6, want: wxcode.Cloudy},
		{rain: 0.1, cloud: 0.2, want: wxcode.SunnyDay},
		{rain: 0.1, cloud: 0.2, args: []string{"--day-night"}, want: wxcode.ClearNight},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			dir := t.TempDir()
			tree, inputs := wxcodeInputs(t, dir, test.rain, test.cloud)
			out := filepath.Join(dir, "symbols.nc")
			args := append([]string{"wxcode", "--tree", tree}, inputs...)
			args = append(args, out)
			args = append(args, test.args...)

			cfg := newTestConfig()
			if err := cfg.Execute(args...); err != nil {
				t.Fatal(err)
			}
			if got := loadCodes(t, out); !reflect.DeepEqual(got, []wxcode.Code{test.want}) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestWXCodeMissingInput(t *testing.T) {
	dir := t.TempDir()
	tree, inputs := wxcodeInputs(t, dir, 0, 0)
	out := filepath.Join(dir, "symbols.nc")

	cfg := newTestConfig()
	err := cfg.Execute("wxcode", "--tree", tree, inputs[0], out)
	var mi *wxcode.MissingInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected a MissingInputError, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output file was written")
	}

	cfg = newTestConfig()
	if err := cfg.Execute("wxcode", out); err == nil {
		t.Error("no inputs: expected an error")
	}
}

func TestWXCodePrintRequirements(t *testing.T) {
	cfg := newTestConfig()
	var buf bytes.Buffer
	cfg.Root.SetOutput(&buf)
	if err := cfg.Execute("wxcode", "--print-requirements"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	reqs, err := wxcode.Requirements(wxcode.DefaultTree())
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != len(reqs) {
		t.Errorf("%d lines for %d requirements:\n%s", len(lines), len(reqs), buf.String())
	}
	if !strings.HasPrefix(lines[0], "probability_of_cloud_area_fraction_above_threshold\t") {
		t.Errorf("first line %q", lines[0])
	}
}
