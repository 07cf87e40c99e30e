package geo

import (
	"fmt"
	"math"
)

// earthRadiusM is the mean earth radius used for great-circle math (WGS 84).
const earthRadiusM = 6371008.8

// HaversineM returns the great-circle distance in meters between two
// latitude/longitude pairs.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// CellKey quantizes a coordinate into a grid cell of cellDeg degrees per side.
// Two points share a key when they fall in the same cell, which is how the
// zone index decides whether the driver has moved far enough to warrant a
// hazard refresh.
func CellKey(lat, lon, cellDeg float64) string {
	if cellDeg <= 0 {
		cellDeg = 0.01
	}
	return fmt.Sprintf("%d:%d", int(math.Floor(lat/cellDeg)), int(math.Floor(lon/cellDeg)))
}
