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
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/improver/percentile"
	"github.com/spatialmodel/improver/wxcode"
	"github.com/spf13/cast"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// getStringSlice returns a list of strings from a viper configuration,
// accounting for the fact that it might be given as a single comma- or
// space-separated string if it was set from an environment variable.
func getStringSlice(varName string, cfg *viper.Viper) ([]string, error) {
	ss, err := cast.ToStringSliceE(cfg.Get(varName))
	if err != nil {
		return nil, fmt.Errorf("improver: reading '%s': %v", varName, err)
	}
	var o []string
	for _, s := range ss {
		for _, f := range strings.Split(s, ",") {
			if f = strings.TrimSpace(f); f != "" {
				o = append(o, os.ExpandEnv(f))
			}
		}
	}
	return o, nil
}

// getFloat64Slice returns a list of numbers from a viper configuration.
func getFloat64Slice(varName string, cfg *viper.Viper) ([]float64, error) {
	if v, ok := cfg.Get(varName).([]float64); ok {
		return v, nil
	}
	ss, err := getStringSlice(varName, cfg)
	if err != nil {
		return nil, err
	}
	o := make([]float64, len(ss))
	for i, s := range ss {
		if o[i], err = cast.ToFloat64E(s); err != nil {
			return nil, fmt.Errorf("improver: reading '%s': %v", varName, err)
		}
	}
	return o, nil
}

// percentiles returns the percentiles requested by the 'percentiles' or
// 'no-of-percentiles' options, or the default percentiles if neither is set.
func (cfg *Cfg) percentiles() ([]float64, error) {
	ps, err := getFloat64Slice("percentiles", cfg.Viper)
	if err != nil {
		return nil, err
	}
	// An empty no-of-percentiles is unset; any number given must be valid.
	nv := cfg.Get("no-of-percentiles")
	if s, ok := nv.(string); nv == nil || ok && strings.TrimSpace(s) == "" {
		if len(ps) > 0 {
			return ps, percentile.Check(ps)
		}
		return percentile.Default, nil
	}
	if len(ps) > 0 {
		return nil, fmt.Errorf("improver: 'percentiles' and 'no-of-percentiles' can't both be set")
	}
	if s, ok := nv.(string); ok {
		nv = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(nv)
	if err != nil {
		return nil, fmt.Errorf("improver: reading 'no-of-percentiles': %v", err)
	}
	return percentile.Choose(n)
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists.
func checkOutputFile(f string) error {
	if f == "" {
		return fmt.Errorf("improver: no output file specified")
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return fmt.Errorf("improver: the output file directory doesn't exist: %v", err)
	}
	return nil
}

// loadTree returns the decision tree in the given TOML file, or the
// built-in tree if the file name is empty.
func loadTree(file string) (*wxcode.Tree, error) {
	if file == "" {
		return wxcode.DefaultTree(), nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("improver: opening decision tree: %v", err)
	}
	defer f.Close()
	return wxcode.LoadTree(f)
}
