// Package store persists and observes per-driver documents. The production
// backend is Firestore, which gives the engine the three primitives it
// relies on: merge-style field updates, an additive array-append that is
// safe under concurrent writers, and document change subscriptions.
package store

import (
	"context"

	"swiftdrop-backend/internal/models"
)

// DriverStore is the document-store boundary for a driver's record.
type DriverStore interface {
	// Get reads the current driver document.
	Get(ctx context.Context, driverID string) (*models.DriverDoc, error)

	// Subscribe invokes fn with a fresh copy of the document on every
	// change, including changes from external writers. The returned cancel
	// function stops the subscription and is safe to call more than once.
	Subscribe(ctx context.Context, driverID string, fn func(models.DriverDoc)) (func(), error)

	// SetLocation merge-updates the document's location snapshot and
	// last-location timestamp, leaving all other fields alone.
	SetLocation(ctx context.Context, driverID string, snap models.LocationSnapshot) error

	// AppendViolation adds a violation record without clobbering entries
	// appended concurrently by other writers.
	AppendViolation(ctx context.Context, driverID string, v models.Violation) error

	// SetViolations replaces the violation list wholesale. Used to seed the
	// field with [] for new drivers and to flip a single Confirmed flag
	// after re-reading the current list.
	SetViolations(ctx context.Context, driverID string, violations []models.Violation) error
}

// BranchStore reads branch-level configuration.
type BranchStore interface {
	// BranchZones returns the operator-curated slowdown zones for a branch.
	BranchZones(ctx context.Context, branchID string) ([]models.Zone, error)
}
