package models

// Zone categories as configured by branch operators. Crosswalk is also the
// category assigned to externally discovered crossing hazards.
const (
	CategoryCrosswalk = "Crosswalk"
	CategorySchool    = "School"
	CategoryChurch    = "Church"
	CategoryCurve     = "Curve"
	CategorySlippery  = "Slippery"
	CategoryDefault   = "Default"
)

// Defaults applied when a zone entry leaves them unset.
const (
	DefaultZoneRadiusM = 15.0

	// DefaultSpeedLimitKmh applies outside any zone and inside zones with no
	// configured limit.
	DefaultSpeedLimitKmh = 80.0

	// CrosswalkSpeedLimitKmh is the fixed limit for discovered crossings.
	CrosswalkSpeedLimitKmh = 20.0
)

// LatLng is the short-key coordinate shape used inside branch documents.
type LatLng struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// Zone is a circular geofence with an associated speed limit. Zones are
// immutable once loaded; the index swaps the whole set on refresh.
type Zone struct {
	ID         string  `json:"id" firestore:"id"`
	Category   string  `json:"category" firestore:"category"`
	Location   LatLng  `json:"location" firestore:"location"`
	RadiusM    float64 `json:"radius_m" firestore:"radius"`
	SpeedLimit float64 `json:"speed_limit" firestore:"speedLimit"` // km/h, 0 = unset
}

// Radius returns the effective radius, falling back to the default when the
// configured value is missing or zero.
func (z Zone) Radius() float64 {
	if z.RadiusM > 0 {
		return z.RadiusM
	}
	return DefaultZoneRadiusM
}
