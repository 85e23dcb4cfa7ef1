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

// Package units parses the unit strings found in meteorological NetCDF
// files (e.g. "mm hr-1", "m s-1", "K") and converts values between
// compatible units.
package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ctessum/unit"
)

// Unit is a parsed unit. A value v in this unit equals v*Scale+Offset
// in SI base units of the same dimensions.
type Unit struct {
	u      *unit.Unit
	Offset float64
	symbol string
}

// Scale is the factor that converts a value in u to SI base units.
func (u *Unit) Scale() float64 { return u.u.Value() }

// Dimensions returns the SI dimensions of u.
func (u *Unit) Dimensions() unit.Dimensions { return u.u.Dimensions() }

func (u *Unit) String() string { return u.symbol }

// Compatible returns whether values in u can be converted to values in o.
func (u *Unit) Compatible(o *Unit) bool {
	return u.Dimensions().Matches(o.Dimensions())
}

// ToSI converts v from u into SI base units.
func (u *Unit) ToSI(v float64) float64 { return v*u.Scale() + u.Offset }

// FromSI converts v from SI base units into u.
func (u *Unit) FromSI(v float64) float64 { return (v - u.Offset) / u.Scale() }

type symbol struct {
	scale  float64
	offset float64
	dims   unit.Dimensions
}

var (
	length   = unit.Dimensions{unit.LengthDim: 1}
	duration = unit.Dimensions{unit.TimeDim: 1}
	mass     = unit.Dimensions{unit.MassDim: 1}
	pressure = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -2}
)

// symbols holds the unit symbols that can appear in a unit string.
var symbols = map[string]symbol{
	"1":       {1, 0, unit.Dimless},
	"%":       {0.01, 0, unit.Dimless},
	"percent": {0.01, 0, unit.Dimless},

	"m":  {1, 0, length},
	"km": {1000, 0, length},
	"cm": {0.01, 0, length},
	"mm": {0.001, 0, length},

	"s":       {1, 0, duration},
	"sec":     {1, 0, duration},
	"second":  {1, 0, duration},
	"seconds": {1, 0, duration},
	"min":     {60, 0, duration},
	"minute":  {60, 0, duration},
	"minutes": {60, 0, duration},
	"h":       {3600, 0, duration},
	"hr":      {3600, 0, duration},
	"hour":    {3600, 0, duration},
	"hours":   {3600, 0, duration},
	"day":     {86400, 0, duration},
	"days":    {86400, 0, duration},

	"kg": {1, 0, mass},
	"g":  {0.001, 0, mass},

	"Pa":  {1, 0, pressure},
	"hPa": {100, 0, pressure},
	"kPa": {1000, 0, pressure},
	"W":   {1, 0, unit.Watt},
	"J":   {1, 0, unit.Joule},

	"K":       {1, 0, unit.Kelvin},
	"kelvin":  {1, 0, unit.Kelvin},
	"degC":    {1, 273.15, unit.Kelvin},
	"celsius": {1, 273.15, unit.Kelvin},
	"Celsius": {1, 273.15, unit.Kelvin},
	"°C":      {1, 273.15, unit.Kelvin},

	"rad":     {1, 0, unit.Dimensions{unit.AngleDim: 1}},
	"degrees": {0.017453292519943295, 0, unit.Dimensions{unit.AngleDim: 1}},
	"degree":  {0.017453292519943295, 0, unit.Dimensions{unit.AngleDim: 1}},
}

// Parse parses a unit string. Terms are separated by spaces or '.', may
// carry an integer exponent ("m2", "s-1", "m^2", "s**-1") and may be
// divided by a single following term with '/' ("mm/h"). The empty string
// is dimensionless.
func Parse(s string) (*Unit, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return &Unit{u: unit.New(1, unit.Dimless), symbol: s}, nil
	}
	u := unit.New(1, unit.Dimless)
	var offset float64
	var nTerms int

	numerator, denominator := str, ""
	if i := strings.Index(str, "/"); i >= 0 {
		numerator, denominator = str[:i], str[i+1:]
		if strings.Contains(denominator, "/") {
			return nil, fmt.Errorf("units: %q has more than one '/'", s)
		}
		if strings.TrimSpace(denominator) == "" || strings.TrimSpace(numerator) == "" {
			return nil, fmt.Errorf("units: %q is missing a term around '/'", s)
		}
	}
	parts := []struct {
		s    string
		sign int
	}{{numerator, 1}, {denominator, -1}}
	for _, part := range parts {
		for _, term := range splitTerms(part.s) {
			sym, pow, err := parseTerm(term)
			if err != nil {
				return nil, fmt.Errorf("units: parsing %q: %v", s, err)
			}
			pow *= part.sign
			if sym.offset != 0 {
				offset = sym.offset
			}
			b := unit.New(sym.scale, sym.dims)
			for i := 0; i < abs(pow); i++ {
				if pow > 0 {
					u.Mul(b)
				} else {
					u.Div(b)
				}
			}
			nTerms++
		}
	}
	if offset != 0 && nTerms != 1 {
		return nil, fmt.Errorf("units: %q: offset temperature units can't be combined with other units", s)
	}
	return &Unit{u: u, Offset: offset, symbol: s}, nil
}

func splitTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})
}

// parseTerm splits a term such as "s-1" into its symbol and exponent.
func parseTerm(term string) (symbol, int, error) {
	name, exp := term, ""
	switch {
	case strings.Contains(term, "**"):
		i := strings.Index(term, "**")
		name, exp = term[:i], term[i+2:]
	case strings.Contains(term, "^"):
		i := strings.Index(term, "^")
		name, exp = term[:i], term[i+1:]
	default:
		i := strings.IndexFunc(term, func(r rune) bool {
			return r == '-' || r == '+' || unicode.IsDigit(r)
		})
		if i > 0 {
			name, exp = term[:i], term[i:]
		}
	}
	sym, ok := symbols[name]
	if !ok {
		return symbol{}, 0, fmt.Errorf("unknown unit %q", name)
	}
	pow := 1
	if exp != "" {
		p, err := strconv.Atoi(exp)
		if err != nil {
			return symbol{}, 0, fmt.Errorf("invalid exponent in %q", term)
		}
		pow = p
	}
	if pow == 0 {
		return symbol{}, 0, fmt.Errorf("zero exponent in %q", term)
	}
	return sym, pow, nil
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// IncompatibleError is returned when a conversion is attempted between
// units with different dimensions.
type IncompatibleError struct {
	From, To string
	fromDims unit.Dimensions
	toDims   unit.Dimensions
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("units: can't convert from %q [%s] to %q [%s]",
		e.From, e.fromDims, e.To, e.toDims)
}

// Converter converts values between two units.
type Converter struct {
	from, to *Unit
}

// NewConverter returns a converter from unit string from to unit string to.
func NewConverter(from, to string) (*Converter, error) {
	f, err := Parse(from)
	if err != nil {
		return nil, err
	}
	t, err := Parse(to)
	if err != nil {
		return nil, err
	}
	if !f.Compatible(t) {
		return nil, &IncompatibleError{From: from, To: to, fromDims: f.Dimensions(), toDims: t.Dimensions()}
	}
	return &Converter{from: f, to: t}, nil
}

// Convert converts v.
func (c *Converter) Convert(v float64) float64 {
	return c.to.FromSI(c.from.ToSI(v))
}

// Convert converts v from unit string from to unit string to.
func Convert(v float64, from, to string) (float64, error) {
	c, err := NewConverter(from, to)
	if err != nil {
		return 0, err
	}
	return c.Convert(v), nil
}
