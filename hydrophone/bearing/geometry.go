// Package bearing derives cross-station timing and direction estimates from
// the fixed hydrophone coordinates and the cross-correlation of two traces.
// Every function is stateless.
package bearing

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	// EarthRadius in metres.
	EarthRadius = 6371000.0
	// SpeedOfSound in sea water, m/s.
	SpeedOfSound = 1480.0
)

// Location is a latitude/longitude pair in degrees.
type Location struct {
	Lat float64
	Lon float64
}

var stations = map[string]Location{
	"LJ01D": {44.63714, -124.30598},
	"LJ01C": {44.36943, -124.95357},
	"PC01A": {44.52897, -125.38967},
	"LJ01A": {44.51512, -125.38992},
	"LJ03A": {45.81668, -129.75435},
	"PC03A": {45.83049, -129.75327},
}

// Station returns the location of a hydrophone node. A leading slash is
// accepted.
func Station(name string) (Location, error) {
	key := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	loc, ok := stations[key]
	if !ok {
		names := make([]string, 0, len(stations))
		for n := range stations {
			names = append(names, n)
		}
		slices.Sort(names)
		return Location{}, fmt.Errorf("no coordinates for node %q (known: %s)", name, strings.Join(names, ", "))
	}
	return loc, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance is the haversine great-circle distance in metres.
func Distance(a, b Location) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon) - radians(a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadius
}

// TimeDelay is the acoustic travel time in seconds along the straight path
// between a and b.
func TimeDelay(a, b Location) float64 {
	return Distance(a, b) / SpeedOfSound
}

// Bearing is the initial great-circle bearing from a to b in degrees,
// clockwise from north, in [0, 360).
func Bearing(a, b Location) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dLambda := radians(b.Lon) - radians(a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(degrees(math.Atan2(y, x))+360, 360)
}

// Pair holds the fixed geometry of two stations.
type Pair struct {
	From      Location
	To        Location
	Distance  float64 // metres
	TimeDelay float64 // seconds
	Bearing   float64 // degrees from From to To
}

// NewPair computes the geometry between two named nodes.
func NewPair(from, to string) (Pair, error) {
	a, err := Station(from)
	if err != nil {
		return Pair{}, err
	}
	b, err := Station(to)
	if err != nil {
		return Pair{}, err
	}
	return PairOf(a, b), nil
}

// PairOf computes the geometry between two locations.
func PairOf(a, b Location) Pair {
	return Pair{
		From:      a,
		To:        b,
		Distance:  Distance(a, b),
		TimeDelay: TimeDelay(a, b),
		Bearing:   Bearing(a, b),
	}
}

// BearingFromLag converts a cross-correlation peak lag in seconds into the
// two candidate arrival bearings (degrees, [0, 360)) measured from p.From.
// A lag longer than the direct travel time has no solution.
func (p Pair) BearingFromLag(lag float64) ([2]float64, error) {
	if p.Distance == 0 {
		return [2]float64{}, fmt.Errorf("stations coincide")
	}
	ratio := SpeedOfSound * lag / p.Distance
	if math.Abs(ratio) > 1+1e-9 {
		return [2]float64{}, fmt.Errorf("lag %gs exceeds the %gs travel time between the stations", lag, p.TimeDelay)
	}
	ratio = math.Max(-1, math.Min(1, ratio))

	local := degrees(math.Acos(ratio))
	return [2]float64{
		math.Mod(p.Bearing+local+360, 360),
		math.Mod(p.Bearing-local+360, 360),
	}, nil
}
