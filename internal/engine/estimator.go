// Package engine implements the overspeed monitoring core: speed estimation
// from raw position fixes, violation issuance with zone-aware debounce, the
// sequential violation confirmation queue, and the per-driver tracking
// session that ties them together.
package engine

import (
	"math"
	"sync"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/pkg/geo"
)

const (
	// speedNoiseFloorKmh treats slow GPS jitter as standing still.
	speedNoiseFloorKmh = 2.0

	// minElapsedSec floors the time delta between fixes so a burst of
	// near-simultaneous fixes cannot produce an absurd derived speed.
	minElapsedSec = 0.5
)

// SpeedEstimator turns raw fixes into a smoothed km/h estimate. The device
// speed is preferred when the platform reports one; otherwise the estimate is
// derived from great-circle distance over elapsed time between consecutive
// fixes.
type SpeedEstimator struct {
	mu      sync.Mutex
	prev    models.PositionFix
	hasPrev bool
}

func NewSpeedEstimator() *SpeedEstimator {
	return &SpeedEstimator{}
}

// Estimate returns the speed in km/h for the given fix. The previous-fix
// baseline advances on every call, including the first and including calls
// whose result the caller ends up discarding.
func (e *SpeedEstimator) Estimate(fix models.PositionFix) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	kmh := math.NaN()
	if fix.SpeedMPS != nil {
		s := *fix.SpeedMPS
		if !math.IsNaN(s) && !math.IsInf(s, 0) && s >= 0 {
			kmh = s * 3.6
		}
	}

	if math.IsNaN(kmh) && e.hasPrev {
		d := geo.HaversineM(
			e.prev.Coordinate.Latitude, e.prev.Coordinate.Longitude,
			fix.Coordinate.Latitude, fix.Coordinate.Longitude,
		)
		dt := fix.Timestamp.Sub(e.prev.Timestamp).Seconds()
		if dt < minElapsedSec {
			dt = minElapsedSec
		}
		kmh = d / dt * 3.6
	}

	e.prev = fix
	e.hasPrev = true

	if math.IsNaN(kmh) || kmh < speedNoiseFloorKmh {
		return 0
	}
	return kmh
}
