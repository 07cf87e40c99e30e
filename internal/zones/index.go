// Package zones maintains the geofenced speed-limit zones active for a
// driver and answers point-containment queries against them.
package zones

import (
	"context"
	"log"
	"sync"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/pkg/geo"
)

// hazardCellDeg is the grid-cell size (~1.1 km at the equator) used to decide
// whether the driver has moved far enough for a hazard refresh.
const hazardCellDeg = 0.01

// HazardSource discovers supplementary hazard zones near a coordinate from an
// external service. Best-effort: failures degrade to no hazards.
type HazardSource interface {
	NearbyHazards(ctx context.Context, coord models.Coordinate) ([]models.Zone, error)
}

// Index holds the current zone set for one driver. The set is replaced
// wholesale on reload; matching is a linear scan in load order, which is
// plenty for the tens of zones a branch configures. Callers never see a
// partially refreshed set.
type Index struct {
	branches store.BranchStore
	hazards  HazardSource

	mu        sync.RWMutex
	zones     []models.Zone
	branchID  string
	cellKey   string
	loaded    bool
	reloading bool
}

func NewIndex(branches store.BranchStore, hazards HazardSource) *Index {
	return &Index{branches: branches, hazards: hazards}
}

// Match returns the first zone in load order containing the coordinate, or
// nil when none does. Ties go to load order, not distance.
func (ix *Index) Match(coord models.Coordinate) *models.Zone {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for i := range ix.zones {
		z := &ix.zones[i]
		d := geo.HaversineM(coord.Latitude, coord.Longitude, z.Location.Lat, z.Location.Lng)
		if d <= z.Radius() {
			match := *z
			return &match
		}
	}
	return nil
}

// Zones returns a copy of the current zone set.
func (ix *Index) Zones() []models.Zone {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]models.Zone(nil), ix.zones...)
}

// Reload replaces the zone set with the branch-configured zones plus hazards
// discovered near the given coordinate. Either source failing contributes an
// empty list; a network problem must never stall tracking.
func (ix *Index) Reload(ctx context.Context, branchID string, near *models.Coordinate) {
	var zones []models.Zone

	if branchID != "" {
		branch, err := ix.branches.BranchZones(ctx, branchID)
		if err != nil {
			log.Printf("⚠️  Failed to load branch zones for %s: %v", branchID, err)
			branch = nil
		}
		zones = append(zones, branch...)
	}

	if near != nil && ix.hazards != nil {
		hazards, err := ix.hazards.NearbyHazards(ctx, *near)
		if err != nil {
			log.Printf("⚠️  Failed to load nearby hazards: %v", err)
			hazards = nil
		}
		zones = append(zones, hazards...)
	}

	cell := ""
	if near != nil {
		cell = geo.CellKey(near.Latitude, near.Longitude, hazardCellDeg)
	}

	ix.mu.Lock()
	ix.zones = zones
	ix.branchID = branchID
	ix.cellKey = cell
	ix.loaded = true
	ix.reloading = false
	ix.mu.Unlock()
}

// MaybeReload refreshes the set when the branch changed or the driver moved
// into a different grid cell. Returns true when a reload ran.
func (ix *Index) MaybeReload(ctx context.Context, branchID string, coord models.Coordinate) bool {
	cell := geo.CellKey(coord.Latitude, coord.Longitude, hazardCellDeg)

	ix.mu.Lock()
	if ix.loaded && ix.branchID == branchID && ix.cellKey == cell {
		ix.mu.Unlock()
		return false
	}
	if ix.reloading {
		ix.mu.Unlock()
		return false
	}
	ix.reloading = true
	ix.mu.Unlock()

	ix.Reload(ctx, branchID, &coord)
	return true
}

// Clear drops all zones, e.g. when the driver has no branch assigned.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.zones = nil
	ix.branchID = ""
	ix.cellKey = ""
	ix.loaded = false
}
