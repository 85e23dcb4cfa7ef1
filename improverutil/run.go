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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/percentile"
	"github.com/spatialmodel/improver/wxcode"
)

// Percentile reads the single cube in inputFile, converts it to
// percentiles ps, and saves the result to outputFile. Cubes of threshold
// probabilities are inverted into percentiles of the underlying
// diagnostic; any other cube is collapsed over coords, which must then be
// given. If warnOnly is true, thresholds outside the plausible bounds of
// the diagnostic are logged instead of failing the conversion.
func Percentile(inputFile, outputFile string, coords []string, ps []float64, warnOnly bool, log logrus.FieldLogger) error {
	if err := checkOutputFile(outputFile); err != nil {
		return err
	}
	c, err := improver.LoadCube(inputFile, "")
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"cube":        c.Name,
		"coordinates": c.CoordNames(),
		"percentiles": ps,
	}).Debug("improver: converting to percentiles")

	var out *improver.Cube
	if strings.HasPrefix(c.Name, improver.ProbabilityPrefix) {
		if len(coords) > 0 {
			log.Warnf("improver: ignoring coordinates %v when converting probabilities to percentiles", coords)
		}
		bounds, err := percentile.BoundsFor(c.Diagnostic())
		if err != nil {
			return err
		}
		out, err = percentile.FromProbabilities(c, ps, bounds, warnOnly, log)
		if err != nil {
			return err
		}
	} else {
		if len(coords) == 0 {
			return fmt.Errorf("improver: the coordinates to collapse must be specified with --coordinates for cube %s", c.Name)
		}
		out, err = percentile.Collapse(c, coords, ps)
		if err != nil {
			return err
		}
	}
	return save(outputFile, out)
}

// WXCode reads the probability cubes in inputFiles, assigns a weather
// symbol to every grid cell using tree, and saves the symbols to
// outputFile. If dayNight is true, day symbols are replaced by night
// symbols where the sun is down.
func WXCode(inputFiles []string, outputFile string, tree *wxcode.Tree, dayNight bool, log logrus.FieldLogger) error {
	if err := checkOutputFile(outputFile); err != nil {
		return err
	}
	var cubes []*improver.Cube
	for _, f := range inputFiles {
		c, err := improver.Load(f)
		if err != nil {
			return err
		}
		for _, cc := range c {
			log.WithFields(logrus.Fields{"file": f, "cube": cc.Name}).Debug("improver: loaded input")
		}
		cubes = append(cubes, c...)
	}
	e, err := wxcode.NewEvaluator(tree, cubes)
	if err != nil {
		return err
	}
	out, err := e.Evaluate()
	if err != nil {
		return err
	}
	if dayNight {
		if err := updateDayNight(out, cubes, log); err != nil {
			return err
		}
	}
	return save(outputFile, out)
}

// updateDayNight converts day symbols to night symbols, using the
// validity time of the inputs if the symbols have no time coordinate.
func updateDayNight(out *improver.Cube, inputs []*improver.Cube, log logrus.FieldLogger) error {
	var t time.Time
	if out.Coord("time") == nil {
		var err error
		for _, c := range inputs {
			if t, err = wxcode.ValidityTime(c); err == nil {
				break
			}
		}
		if t.IsZero() {
			log.Warn("improver: skipping the day/night adjustment: the inputs have no validity time")
			return nil
		}
	}
	return wxcode.UpdateDayNight(out, t)
}

// save writes cubes to a temporary file next to path, and moves it to
// path once it has been written completely.
func save(path string, cubes ...*improver.Cube) error {
	f, err := ioutil.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".")
	if err != nil {
		return fmt.Errorf("improver: creating output file: %v", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("improver: creating output file: %v", err)
	}
	if err := improver.Save(f, cubes...); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("improver: writing output file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("improver: writing output file: %v", err)
	}
	return nil
}
