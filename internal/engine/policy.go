package engine

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/internal/zones"
)

const (
	// ViolationCooldown suppresses duplicate issuance for a continuous
	// overspeeding episode within the same zone.
	ViolationCooldown = 60 * time.Second

	// defaultZoneKey is the debounce sentinel for overspeeding outside any
	// configured zone.
	defaultZoneKey = "default"

	violationMessage = "Speeding violation"
)

// PolicyEngine decides whether an overspeeding sample becomes a recorded
// violation. One instance exists per driver session; the cooldown timestamp
// and last-violated-zone key are its only mutable state.
type PolicyEngine struct {
	driverID      string
	zones         *zones.Index
	store         store.DriverStore
	notifier      notify.Notifier
	alertsEnabled func() bool
	clock         func() time.Time

	mu              sync.Mutex
	lastViolationAt time.Time
	lastZoneKey     string
}

func NewPolicyEngine(driverID string, ix *zones.Index, st store.DriverStore, notifier notify.Notifier, alertsEnabled func() bool) *PolicyEngine {
	return &PolicyEngine{
		driverID:      driverID,
		zones:         ix,
		store:         st,
		notifier:      notifier,
		alertsEnabled: alertsEnabled,
		clock:         time.Now,
		lastZoneKey:   defaultZoneKey,
	}
}

// Evaluate checks a speed sample against the applicable limit and issues a
// violation when warranted. Returns the issued violation, or nil for the
// expected steady state of no violation.
func (p *PolicyEngine) Evaluate(ctx context.Context, coord models.Coordinate, speedKmh float64) *models.Violation {
	zone := p.zones.Match(coord)

	limit := models.DefaultSpeedLimitKmh
	if zone != nil && zone.SpeedLimit > 0 {
		limit = zone.SpeedLimit
	}
	if !(speedKmh > limit) {
		return nil
	}

	now := p.clock()
	zoneKey := defaultZoneKey
	if zone != nil {
		zoneKey = zone.ID
	}

	// Entering a new zone resets the debounce immediately: a fresh hazard
	// always gets an immediate violation opportunity.
	p.mu.Lock()
	if now.Sub(p.lastViolationAt) < ViolationCooldown && zoneKey == p.lastZoneKey {
		p.mu.Unlock()
		return nil
	}
	// Advance cooldown state before attempting the write so a slow or
	// failing write cannot cause a burst of duplicate attempts.
	p.lastViolationAt = now
	p.lastZoneKey = zoneKey
	p.mu.Unlock()

	rounded := int(math.Round(speedKmh))
	v := models.Violation{
		ID:             uuid.NewString(),
		Message:        violationMessage,
		Confirmed:      false,
		IssuedAt:       now.UTC(),
		DriverLocation: coord,
		TopSpeed:       rounded,
		AvgSpeed:       rounded,
		DefaultLimit:   models.DefaultSpeedLimitKmh,
	}
	if zone != nil {
		id := zone.ID
		lim := zone.SpeedLimit
		v.ZoneID = &id
		v.ZoneLimit = &lim
	}

	// Persistence failures are swallowed: the cooldown already advanced, so
	// a lost record is preferable to blocking driving feedback. A later
	// overspeeding event past the cooldown retries naturally.
	if err := p.store.AppendViolation(ctx, p.driverID, v); err != nil {
		log.Printf("⚠️  Failed to persist violation for %s: %v", p.driverID, err)
	}

	if p.alertsEnabled == nil || p.alertsEnabled() {
		p.notifier.Speak(violationMessage)
		p.notifier.Alert("Notice of Violation", violationMessage)
	}

	return &v
}
