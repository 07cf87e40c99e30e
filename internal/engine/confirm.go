package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
)

// ReverseGeocoder turns a coordinate into a human-readable address for the
// spoken notice. Best-effort; failures fall back to raw coordinates.
type ReverseGeocoder interface {
	ReverseGeocode(lat, lng float64) (string, error)
}

// ConfirmQueue presents unconfirmed violations to the driver one at a time
// and marks each confirmed only after an explicit acknowledgment. At most one
// prompt is in flight per driver; the list is re-read fresh before every
// presentation and again at acknowledgment time, so concurrent appends from
// the policy engine or an external officer can never cause the wrong entry
// to be confirmed.
type ConfirmQueue struct {
	driverID string
	store    store.DriverStore
	notifier notify.Notifier
	geocoder ReverseGeocoder // nil disables address lookup

	mu       sync.Mutex
	inFlight bool
}

func NewConfirmQueue(driverID string, st store.DriverStore, notifier notify.Notifier, geocoder ReverseGeocoder) *ConfirmQueue {
	return &ConfirmQueue{
		driverID: driverID,
		store:    st,
		notifier: notifier,
		geocoder: geocoder,
	}
}

// Kick starts the presentation loop unless one is already running. Returns
// true when a new loop was started.
func (q *ConfirmQueue) Kick(ctx context.Context) bool {
	q.mu.Lock()
	if q.inFlight {
		q.mu.Unlock()
		return false
	}
	q.inFlight = true
	q.mu.Unlock()

	go q.run(ctx)
	return true
}

// InFlight reports whether a confirmation prompt is currently pending.
func (q *ConfirmQueue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

func (q *ConfirmQueue) run(ctx context.Context) {
	// The flag must clear on every exit path, including read failures;
	// dropping one confirmation attempt is recoverable, a permanent
	// lockout is not.
	defer func() {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}()

	for ctx.Err() == nil {
		doc, err := q.store.Get(ctx, q.driverID)
		if err != nil {
			log.Printf("⚠️  Confirmation queue read failed for %s: %v", q.driverID, err)
			return
		}

		idx := models.FirstUnconfirmed(doc.Violations)
		if idx < 0 {
			return
		}

		lines := q.describe(doc.Violations[idx])
		q.notifier.Speak(strings.Join(lines, ". "))
		if err := q.notifier.PresentBlockingModal(ctx, "Notice of Violation", strings.Join(lines, "\n")); err != nil {
			return
		}

		// Acknowledged. Re-read and re-resolve "first unconfirmed" instead
		// of trusting the index captured above; the list may have been
		// appended to while the modal was up.
		fresh, err := q.store.Get(ctx, q.driverID)
		if err != nil {
			log.Printf("⚠️  Confirmation re-read failed for %s: %v", q.driverID, err)
			return
		}
		j := models.FirstUnconfirmed(fresh.Violations)
		if j < 0 {
			return
		}

		updated := append([]models.Violation(nil), fresh.Violations...)
		updated[j].Confirmed = true
		if err := q.store.SetViolations(ctx, q.driverID, updated); err != nil {
			log.Printf("⚠️  Failed to confirm violation for %s: %v", q.driverID, err)
			return
		}
	}
}

func (q *ConfirmQueue) describe(v models.Violation) []string {
	message := v.Message
	if message == "" {
		message = "Violation"
	}
	lines := []string{message}

	if !v.IssuedAt.IsZero() {
		lines = append(lines, "When: "+v.IssuedAt.Local().Format("Jan 2, 2006 3:04 PM"))
	}

	location := fmt.Sprintf("%.6f, %.6f", v.DriverLocation.Latitude, v.DriverLocation.Longitude)
	if q.geocoder != nil {
		if addr, err := q.geocoder.ReverseGeocode(v.DriverLocation.Latitude, v.DriverLocation.Longitude); err == nil && addr != "" {
			location = addr
		}
	}
	lines = append(lines, "Location: "+location)

	if v.AvgSpeed > 0 {
		lines = append(lines, fmt.Sprintf("Average speed: %d kilometers per hour", v.AvgSpeed))
	}
	if v.TopSpeed > 0 {
		lines = append(lines, fmt.Sprintf("Top speed: %d kilometers per hour", v.TopSpeed))
	}
	return lines
}
