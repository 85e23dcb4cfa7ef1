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
	"strings"
	"time"

	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/solar"
)

// ErrNoTime is returned by UpdateDayNight when the validity time of the
// symbols is unknown.
var ErrNoTime = errors.New("wxcode: weather symbols have no validity time")

// UpdateDayNight replaces day symbols with their night equivalents in the
// cells of symbols where the sun is below the horizon. Cell positions are
// taken from the latitude and longitude coordinates. If symbols has a time
// coordinate, each time uses its own validity time; otherwise t is used.
func UpdateDayNight(symbols *improver.Cube, t time.Time) error {
	latDim := symbols.DimIndex("latitude")
	lonDim := symbols.DimIndex("longitude")
	if latDim < 0 || lonDim < 0 {
		return fmt.Errorf("wxcode: day/night adjustment needs latitude and longitude coordinates, cube has %v",
			symbols.CoordNames())
	}
	var times []time.Time
	timeDim := symbols.DimIndex("time")
	if timeDim >= 0 {
		var err error
		if times, err = CoordTimes(symbols.Coords[timeDim]); err != nil {
			return err
		}
	} else if t.IsZero() {
		return ErrNoTime
	}
	lats := symbols.Coords[latDim].Points
	lons := symbols.Coords[lonDim].Points

	shape := symbols.Shape()
	idx := make([]int, len(shape))
	suns := make(map[int]solar.Sun)
	sunAt := func(ti int) solar.Sun {
		s, ok := suns[ti]
		if !ok {
			if timeDim >= 0 {
				s = solar.At(times[ti])
			} else {
				s = solar.At(t)
			}
			suns[ti] = s
		}
		return s
	}
	for i, v := range symbols.Data.Elements {
		if i > 0 {
			improver.Increment(idx, shape)
		}
		if math.IsNaN(v) {
			continue
		}
		c := Code(int(v))
		night := c.Night()
		if night == c {
			continue
		}
		ti := 0
		if timeDim >= 0 {
			ti = idx[timeDim]
		}
		if !sunAt(ti).IsDay(lats[idx[latDim]], lons[idx[lonDim]]) {
			symbols.Data.Elements[i] = float64(night)
		}
	}
	return nil
}

// ValidityTime returns the single validity time held in the time
// coordinate or the "time" attribute (RFC 3339) of c.
func ValidityTime(c *improver.Cube) (time.Time, error) {
	if tc := c.Coord("time"); tc != nil {
		ts, err := CoordTimes(tc)
		if err != nil {
			return time.Time{}, err
		}
		if len(ts) != 1 {
			return time.Time{}, fmt.Errorf("wxcode: cube %s has %d times", c.Name, len(ts))
		}
		return ts[0], nil
	}
	if s, ok := c.Attributes["time"]; ok {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("wxcode: cube %s: %v", c.Name, err)
		}
		return t, nil
	}
	return time.Time{}, ErrNoTime
}

// CoordTimes converts the points of a CF time coordinate with units such
// as "seconds since 1970-01-01 00:00:00" to times.
func CoordTimes(c *improver.Coord) ([]time.Time, error) {
	parts := strings.SplitN(c.Units, " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("wxcode: time coordinate %s has invalid units %q", c.Name, c.Units)
	}
	var step time.Duration
	switch strings.TrimSpace(parts[0]) {
	case "seconds", "second", "s":
		step = time.Second
	case "minutes", "minute", "min":
		step = time.Minute
	case "hours", "hour", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return nil, fmt.Errorf("wxcode: time coordinate %s has invalid units %q", c.Name, c.Units)
	}
	ref, err := parseReferenceTime(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("wxcode: time coordinate %s: %v", c.Name, err)
	}
	o := make([]time.Time, len(c.Points))
	for i, p := range c.Points {
		o[i] = ref.Add(time.Duration(p * float64(step)))
	}
	return o, nil
}

func parseReferenceTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, strings.TrimSuffix(s, " UTC")); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("can't parse reference time %q", s)
}
