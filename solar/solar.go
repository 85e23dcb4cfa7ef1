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

// Package solar calculates the position of the sun in the sky.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian day of 2000-01-01T12:00:00Z.
const j2000 = 2451545.0

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// wrap returns a in the range [0, 360).
func wrap(a float64) float64 { return a - 360*math.Floor(a/360) }

// Sun holds the quantities that locate the sun at one instant,
// independent of the observer.
type Sun struct {
	// Declination is the solar declination [degrees].
	Declination float64
	// EquationOfTime is apparent minus mean solar time [minutes].
	EquationOfTime float64
	t              time.Time
}

// At returns the position of the sun at t.
func At(t time.Time) Sun {
	t = t.UTC()
	T := (julian.TimeToJD(t) - j2000) / 36525 // Julian centuries since J2000

	meanLong := wrap(280.46646 + T*(36000.76983+T*0.0003032))
	meanAnom := wrap(357.52911 + T*(35999.05029-T*0.0001537))
	ecc := 0.016708634 - T*(0.000042037+T*0.0000001267)
	center := math.Sin(rad(meanAnom))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(rad(2*meanAnom))*(0.019993-T*0.000101) +
		math.Sin(rad(3*meanAnom))*0.000289
	omega := 125.04 - 1934.136*T
	apparentLong := meanLong + center - 0.00569 - 0.00478*math.Sin(rad(omega))
	obliquity := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60

	decl := math.Asin(math.Sin(rad(obliquity)) * math.Sin(rad(apparentLong)))

	y := math.Pow(math.Tan(rad(obliquity)/2), 2)
	eot := 4 * deg(y*math.Sin(rad(2*meanLong))-
		2*ecc*math.Sin(rad(meanAnom))+
		4*ecc*y*math.Sin(rad(meanAnom))*math.Cos(rad(2*meanLong))-
		0.5*y*y*math.Sin(rad(4*meanLong))-
		1.25*ecc*ecc*math.Sin(rad(2*meanAnom)))

	return Sun{Declination: deg(decl), EquationOfTime: eot, t: t}
}

// HourAngle returns the solar hour angle [degrees] at longitude lon.
func (s Sun) HourAngle(lon float64) float64 {
	utcMin := float64(s.t.Hour()*60+s.t.Minute()) + float64(s.t.Second())/60
	trueSolarMin := utcMin + 4*lon + s.EquationOfTime
	return trueSolarMin/4 - 180
}

// Elevation returns the geometric elevation of the sun above the horizon
// [degrees] at latitude lat and longitude lon, without refraction.
func (s Sun) Elevation(lat, lon float64) float64 {
	latR := rad(lat)
	declR := rad(s.Declination)
	cosZen := math.Sin(latR)*math.Sin(declR) +
		math.Cos(latR)*math.Cos(declR)*math.Cos(rad(s.HourAngle(lon)))
	cosZen = math.Max(-1, math.Min(1, cosZen))
	return 90 - deg(math.Acos(cosZen))
}

// Elevation returns the elevation of the sun [degrees] at latitude lat
// and longitude lon at time t.
func Elevation(lat, lon float64, t time.Time) float64 {
	return At(t).Elevation(lat, lon)
}

// IsDay returns whether the sun is on or above the horizon at latitude
// lat and longitude lon.
func (s Sun) IsDay(lat, lon float64) bool {
	return s.Elevation(lat, lon) >= 0
}
