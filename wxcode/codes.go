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

import "fmt"

// Code is a weather symbol code.
type Code int

// Weather symbol codes.
const (
	MissingCode Code = -1

	ClearNight Code = iota - 1
	SunnyDay
	PartlyCloudyNight
	PartlyCloudyDay
	Dust
	Mist
	Fog
	Cloudy
	Overcast
	LightShowerNight
	LightShowerDay
	Drizzle
	LightRain
	HeavyShowerNight
	HeavyShowerDay
	HeavyRain
	SleetShowerNight
	SleetShowerDay
	Sleet
	HailShowerNight
	HailShowerDay
	Hail
	LightSnowShowerNight
	LightSnowShowerDay
	LightSnow
	HeavySnowShowerNight
	HeavySnowShowerDay
	HeavySnow
	ThunderShowerNight
	ThunderShowerDay
	Thunder
)

var codeNames = [...]string{
	"Clear_Night",
	"Sunny_Day",
	"Partly_Cloudy_Night",
	"Partly_Cloudy_Day",
	"Dust",
	"Mist",
	"Fog",
	"Cloudy",
	"Overcast",
	"Light_Shower_Night",
	"Light_Shower_Day",
	"Drizzle",
	"Light_Rain",
	"Heavy_Shower_Night",
	"Heavy_Shower_Day",
	"Heavy_Rain",
	"Sleet_Shower_Night",
	"Sleet_Shower_Day",
	"Sleet",
	"Hail_Shower_Night",
	"Hail_Shower_Day",
	"Hail",
	"Light_Snow_Shower_Night",
	"Light_Snow_Shower_Day",
	"Light_Snow",
	"Heavy_Snow_Shower_Night",
	"Heavy_Snow_Shower_Day",
	"Heavy_Snow",
	"Thunder_Shower_Night",
	"Thunder_Shower_Day",
	"Thunder",
}

// Valid returns whether c is a weather symbol a tree can terminate in.
// MissingCode is not valid.
func (c Code) Valid() bool {
	return c >= 0 && int(c) < len(codeNames)
}

func (c Code) String() string {
	if c == MissingCode {
		return "Missing"
	}
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeNames[c]
}

// Codes returns every valid weather symbol code in ascending order.
func Codes() []Code {
	o := make([]Code, len(codeNames))
	for i := range o {
		o[i] = Code(i)
	}
	return o
}

// nightCodes maps day symbols to the symbols shown for the same weather
// at night.
var nightCodes = map[Code]Code{
	SunnyDay:           ClearNight,
	PartlyCloudyDay:    PartlyCloudyNight,
	LightShowerDay:     LightShowerNight,
	HeavyShowerDay:     HeavyShowerNight,
	SleetShowerDay:     SleetShowerNight,
	HailShowerDay:      HailShowerNight,
	LightSnowShowerDay: LightSnowShowerNight,
	HeavySnowShowerDay: HeavySnowShowerNight,
	ThunderShowerDay:   ThunderShowerNight,
}

// Night returns the night-time equivalent of c, or c itself if it has none.
func (c Code) Night() Code {
	if n, ok := nightCodes[c]; ok {
		return n
	}
	return c
}
