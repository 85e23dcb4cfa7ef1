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
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Load reads all of the data variables in the NetCDF file at path and
// returns them as cubes. Classic (CDF-1 and CDF-2) files are read directly;
// anything else is assumed to be NetCDF-4.
func Load(path string) ([]*Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("improver: opening %s: %v", path, err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		cubes, err4 := loadNetCDF4(path)
		if err4 != nil {
			return nil, fmt.Errorf("improver: reading %s: not classic NetCDF (%v) or NetCDF-4 (%v)", path, err, err4)
		}
		return cubes, nil
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("improver: reading %s: %v", path, err)
	}
	cubes, err := cubesFromCDF(ff, ff.Header.NumRecs(fi.Size()))
	if err != nil {
		return nil, fmt.Errorf("improver: reading %s: %v", path, err)
	}
	return cubes, nil
}

// LoadCube reads the variable called name from the NetCDF file at path.
// If name is empty, the file must contain exactly one data variable.
func LoadCube(path, name string) (*Cube, error) {
	cubes, err := Load(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(cubes) != 1 {
			return nil, fmt.Errorf("improver: %s contains %d data variables; expected exactly one", path, len(cubes))
		}
		return cubes[0], nil
	}
	for _, c := range cubes {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("improver: variable %s not found in %s", name, path)
}

// cubesFromCDF converts the variables in ff into cubes. Variables with a
// single dimension of the same name are treated as coordinates.
func cubesFromCDF(ff *cdf.File, numRecs int64) ([]*Cube, error) {
	h := ff.Header
	lengths := func(v string) []int {
		l := append([]int{}, h.Lengths(v)...)
		if h.IsRecordVariable(v) {
			l[0] = int(numRecs)
		}
		return l
	}

	coords := make(map[string]*Coord)
	var dataVars []string
	for _, v := range h.Variables() {
		dims := h.Dimensions(v)
		if _, ok := h.ZeroValue(v, 0).(string); ok {
			continue // Character variables are not supported.
		}
		if len(dims) == 1 && dims[0] == v {
			vals, err := readCDFVar(ff, v, lengths(v))
			if err != nil {
				return nil, err
			}
			c := &Coord{Name: v, Points: vals}
			c.Units, c.Attributes = cdfAttributes(h, v)
			coords[v] = c
			continue
		}
		dataVars = append(dataVars, v)
	}

	var cubes []*Cube
	for _, v := range dataVars {
		shape := lengths(v)
		vals, err := readCDFVar(ff, v, shape)
		if err != nil {
			return nil, err
		}
		c := &Cube{Name: v}
		c.Units, c.Attributes = cdfAttributes(h, v)
		for i, d := range h.Dimensions(v) {
			cc, ok := coords[d]
			if !ok {
				cc = indexCoord(d, shape[i])
			}
			c.Coords = append(c.Coords, cc.Copy())
		}
		c.Data = sparse.ZerosDense(c.Shape()...)
		copy(c.Data.Elements, vals)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		cubes = append(cubes, c)
	}
	return cubes, nil
}

// readCDFVar reads all values of variable v, replacing fill values with NaN.
func readCDFVar(ff *cdf.File, v string, shape []int) ([]float64, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n == 0 {
		return []float64{}, nil
	}
	r := ff.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", v, err)
	}
	vals, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %v", v, err)
	}
	if fv := ff.Header.GetAttribute(v, "_FillValue"); fv != nil {
		maskFill(vals, fv)
	}
	return vals, nil
}

// maskFill replaces elements of vals equal to the scalar fill value fv
// with NaN.
func maskFill(vals []float64, fv interface{}) {
	fill, err := toFloat64s(fv)
	if err != nil || len(fill) != 1 {
		return
	}
	for i, x := range vals {
		if x == fill[0] {
			vals[i] = math.NaN()
		}
	}
}

// cdfAttributes returns the units and the remaining string attributes of v.
func cdfAttributes(h *cdf.Header, v string) (string, map[string]string) {
	var units string
	var attrs map[string]string
	for _, a := range h.Attributes(v) {
		s, ok := h.GetAttribute(v, a).(string)
		if !ok {
			continue
		}
		if a == "units" {
			units = s
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[a] = s
	}
	return units, attrs
}

// loadNetCDF4 reads the data variables of a NetCDF-4 (HDF5) file.
func loadNetCDF4(path string) ([]*Cube, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	vars := make(map[string]*api.Variable)
	for _, name := range nc.ListVariables() {
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %v", name, err)
		}
		vars[name] = v
	}

	coords := make(map[string]*Coord)
	var dataVars []string
	for name, v := range vars {
		if len(v.Dimensions) == 1 && v.Dimensions[0] == name {
			vals, _, err := flatten(v.Values)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %v", name, err)
			}
			c := &Coord{Name: name, Points: vals}
			c.Units, c.Attributes = nc4Attributes(v.Attributes)
			coords[name] = c
			continue
		}
		dataVars = append(dataVars, name)
	}
	sort.Strings(dataVars)

	var cubes []*Cube
	for _, name := range dataVars {
		v := vars[name]
		vals, shape, err := flatten(v.Values)
		if err != nil {
			if err == errNotNumeric {
				continue
			}
			return nil, fmt.Errorf("variable %s: %v", name, err)
		}
		if len(shape) != len(v.Dimensions) {
			return nil, fmt.Errorf("variable %s has %d dimensions but %d-d data", name, len(v.Dimensions), len(shape))
		}
		c := &Cube{Name: name}
		c.Units, c.Attributes = nc4Attributes(v.Attributes)
		for i, d := range v.Dimensions {
			cc, ok := coords[d]
			if !ok {
				cc = indexCoord(d, shape[i])
			}
			c.Coords = append(c.Coords, cc.Copy())
		}
		c.Data = sparse.ZerosDense(c.Shape()...)
		copy(c.Data.Elements, vals)
		if v.Attributes != nil {
			if fv, ok := v.Attributes.Get("_FillValue"); ok {
				maskFill(c.Data.Elements, fv)
			}
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		cubes = append(cubes, c)
	}
	return cubes, nil
}

func nc4Attributes(am api.AttributeMap) (string, map[string]string) {
	if am == nil {
		return "", nil
	}
	var units string
	var attrs map[string]string
	for _, k := range am.Keys() {
		v, _ := am.Get(k)
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == "units" {
			units = s
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[k] = s
	}
	return units, attrs
}

// indexCoord creates a coordinate of indices for a dimension that has no
// coordinate variable.
func indexCoord(name string, n int) *Coord {
	c := &Coord{Name: name, Units: "1", Points: make([]float64, n)}
	for i := range c.Points {
		c.Points[i] = float64(i)
	}
	return c
}

var errNotNumeric = errors.New("improver: variable is not numeric")

// flatten converts a (possibly nested) slice of numbers into a flat
// []float64 in row-major order, returning the shape of the nesting.
func flatten(v interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		f, err := scalarFloat(rv)
		if err != nil {
			return nil, nil, err
		}
		return []float64{f}, nil, nil
	}
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	var out []float64
	var walk func(reflect.Value) error
	walk = func(x reflect.Value) error {
		if x.Kind() == reflect.Slice {
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		f, err := scalarFloat(x)
		if err != nil {
			return err
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func scalarFloat(x reflect.Value) (float64, error) {
	switch x.Kind() {
	case reflect.Float32, reflect.Float64:
		return x.Float(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(x.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(x.Uint()), nil
	}
	return 0, errNotNumeric
}

// toFloat64s converts the numeric slice types used by the NetCDF
// libraries into []float64.
func toFloat64s(v interface{}) ([]float64, error) {
	switch vv := v.(type) {
	case []float64:
		o := make([]float64, len(vv))
		copy(o, vv)
		return o, nil
	case []float32:
		o := make([]float64, len(vv))
		for i, x := range vv {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(vv))
		for i, x := range vv {
			o[i] = float64(x)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(vv))
		for i, x := range vv {
			o[i] = float64(x)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(vv))
		for i, x := range vv {
			o[i] = float64(x)
		}
		return o, nil
	case []int8:
		o := make([]float64, len(vv))
		for i, x := range vv {
			o[i] = float64(x)
		}
		return o, nil
	case float64:
		return []float64{vv}, nil
	case float32:
		return []float64{float64(vv)}, nil
	case int32:
		return []float64{float64(vv)}, nil
	case int16:
		return []float64{float64(vv)}, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", v)
	}
}

// Save writes cubes to w in classic NetCDF format. Cubes that share a
// coordinate name must agree on its length. Data are written as float32 and
// coordinates as float64.
func Save(w *os.File, cubes ...*Cube) error {
	if len(cubes) == 0 {
		return fmt.Errorf("improver: no cubes to save")
	}
	var dims []string
	coords := make(map[string]*Coord)
	names := make(map[string]bool)
	for _, c := range cubes {
		if err := c.Validate(); err != nil {
			return err
		}
		if names[c.Name] {
			return fmt.Errorf("improver: repeated cube name %s", c.Name)
		}
		names[c.Name] = true
		for _, cc := range c.Coords {
			if prev, ok := coords[cc.Name]; ok {
				if prev.Len() != cc.Len() {
					return fmt.Errorf("improver: coordinate %s has length %d in one cube and %d in another",
						cc.Name, prev.Len(), cc.Len())
				}
				continue
			}
			if cc.Len() == 0 {
				return fmt.Errorf("improver: coordinate %s of cube %s is empty", cc.Name, c.Name)
			}
			coords[cc.Name] = cc
			dims = append(dims, cc.Name)
		}
	}
	// Sort the names so they write in the same order every time.
	sort.Strings(dims)
	lengths := make([]int, len(dims))
	for i, d := range dims {
		if names[d] {
			return fmt.Errorf("improver: cube name %s clashes with a coordinate name", d)
		}
		lengths[i] = coords[d].Len()
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "Conventions", "CF-1.5")
	h.AddAttribute("", "source", "IMPROVER v"+Version)

	for _, name := range dims {
		cc := coords[name]
		h.AddVariable(name, []string{name}, []float64{0})
		if cc.Units != "" {
			h.AddAttribute(name, "units", cc.Units)
		}
		for _, a := range attributeNames(cc.Attributes) {
			h.AddAttribute(name, a, cc.Attributes[a])
		}
	}
	sorted := make([]*Cube, len(cubes))
	copy(sorted, cubes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, c := range sorted {
		h.AddVariable(c.Name, c.CoordNames(), []float32{0})
		if c.Units != "" {
			h.AddAttribute(c.Name, "units", c.Units)
		}
		for _, a := range attributeNames(c.Attributes) {
			if a == "units" {
				continue
			}
			h.AddAttribute(c.Name, a, c.Attributes[a])
		}
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("improver: writing NetCDF header: %v", err)
	}
	for _, name := range dims {
		if err := writeCDF(f, name, coords[name].Points, false); err != nil {
			return fmt.Errorf("improver: writing coordinate %s: %v", name, err)
		}
	}
	for _, c := range sorted {
		if err := writeCDF(f, c.Name, c.Data.Elements, true); err != nil {
			return fmt.Errorf("improver: writing variable %s: %v", c.Name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeCDF(f *cdf.File, v string, data []float64, single bool) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if !single {
		_, err := w.Write(data)
		return err
	}
	data32 := make([]float32, len(data))
	for i, e := range data {
		data32[i] = float32(e)
	}
	_, err := w.Write(data32)
	return err
}
