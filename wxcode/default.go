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

import "sync"

// Fractions of the sky covered by cloud separating the cloud categories.
const (
	partlyCloudy  = 0.1875
	mostlyCloudy  = 0.8125
	lowCloudCover = 0.85
)

const (
	rainfall   = "rainfall_rate"
	snowfall   = "lwe_snowfall_rate"
	cloud      = "cloud_area_fraction"
	lowCloud   = "low_type_cloud_area_fraction"
	visibility = "visibility_in_air"
	rateUnits  = "mm hr-1"
)

func above(diag string, threshold float64, u string) Query {
	return Query{Diagnostic: diag, Threshold: threshold, Units: u, Condition: Above}
}

func below(diag string, threshold float64, u string) Query {
	return Query{Diagnostic: diag, Threshold: threshold, Units: u, Condition: Below}
}

// likely returns a node that succeeds when every query (for AND) or any
// query (for OR) has a probability of at least one half.
func likely(comb Combination, succeed, fail Edge, qs ...Query) *Node {
	ps := make([]float64, len(qs))
	for i := range ps {
		ps[i] = 0.5
	}
	return &Node{
		Queries:               qs,
		Combination:           comb,
		ProbabilityThresholds: ps,
		Comparison:            GreaterEqual,
		Succeed:               succeed,
		Fail:                  fail,
	}
}

var (
	defaultTree     *Tree
	defaultTreeOnce sync.Once
)

// DefaultTree returns the built-in weather symbol decision tree. It is
// built once; callers must not modify it.
func DefaultTree() *Tree {
	defaultTreeOnce.Do(func() { defaultTree = buildDefaultTree() })
	return defaultTree
}

func buildDefaultTree() *Tree {
	return &Tree{
		Root: "heavy_precipitation",
		Nodes: map[string]*Node{
			"heavy_precipitation": likely(Or,
				Goto("heavy_precipitation_cloud"), Goto("light_precipitation"),
				above(rainfall, 1, rateUnits), above(snowfall, 1, rateUnits)),
			"heavy_precipitation_cloud": likely(None,
				Goto("heavy_sleet_continuous"), Goto("heavy_sleet_shower"),
				above(cloud, mostlyCloudy, "1")),
			"heavy_sleet_continuous": likely(And,
				Terminal(Sleet), Goto("heavy_snow_continuous"),
				above(rainfall, 0.1, rateUnits), above(snowfall, 0.1, rateUnits)),
			"heavy_snow_continuous": likely(None,
				Terminal(HeavySnow), Terminal(HeavyRain),
				above(snowfall, 1, rateUnits)),
			"heavy_sleet_shower": likely(And,
				Terminal(SleetShowerDay), Goto("heavy_snow_shower"),
				above(rainfall, 0.1, rateUnits), above(snowfall, 0.1, rateUnits)),
			"heavy_snow_shower": likely(None,
				Terminal(HeavySnowShowerDay), Terminal(HeavyShowerDay),
				above(snowfall, 1, rateUnits)),

			"light_precipitation": likely(Or,
				Goto("light_precipitation_cloud"), Goto("drizzle_mist"),
				above(rainfall, 0.1, rateUnits), above(snowfall, 0.1, rateUnits)),
			"light_precipitation_cloud": likely(None,
				Goto("light_sleet_continuous"), Goto("light_sleet_shower"),
				above(cloud, mostlyCloudy, "1")),
			"light_sleet_continuous": likely(And,
				Terminal(Sleet), Goto("light_snow_continuous"),
				above(rainfall, 0.1, rateUnits), above(snowfall, 0.1, rateUnits)),
			"light_snow_continuous": likely(None,
				Terminal(LightSnow), Terminal(LightRain),
				above(snowfall, 0.1, rateUnits)),
			"light_sleet_shower": likely(And,
				Terminal(SleetShowerDay), Goto("light_snow_shower"),
				above(rainfall, 0.1, rateUnits), above(snowfall, 0.1, rateUnits)),
			"light_snow_shower": likely(None,
				Terminal(LightSnowShowerDay), Terminal(LightShowerDay),
				above(snowfall, 0.1, rateUnits)),

			"drizzle_mist": likely(And,
				Terminal(Drizzle), Goto("drizzle_cloud"),
				above(rainfall, 0.03, rateUnits), below(visibility, 5000, "m")),
			"drizzle_cloud": likely(And,
				Terminal(Drizzle), Goto("fog_conditions"),
				above(rainfall, 0.03, rateUnits), above(lowCloud, lowCloudCover, "1")),
			"fog_conditions": likely(None,
				Terminal(Fog), Goto("mist_conditions"),
				below(visibility, 1000, "m")),
			"mist_conditions": likely(None,
				Terminal(Mist), Goto("no_precipitation_cloud"),
				below(visibility, 5000, "m")),
			"no_precipitation_cloud": likely(None,
				Goto("overcast_cloud"), Goto("partly_cloudy"),
				above(cloud, mostlyCloudy, "1")),
			"overcast_cloud": likely(None,
				Terminal(Overcast), Terminal(Cloudy),
				above(lowCloud, lowCloudCover, "1")),
			"partly_cloudy": likely(None,
				Terminal(PartlyCloudyDay), Terminal(SunnyDay),
				above(cloud, partlyCloudy, "1")),
		},
	}
}
