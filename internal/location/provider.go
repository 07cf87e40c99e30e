// Package location defines the position-fix boundary the tracking engine
// consumes. The production implementation is a device-fed stream: the driver
// app posts raw fixes over HTTP and sessions subscribe to them, preserving
// the "subscribe once, receive many, cancel anytime" contract of a platform
// location watcher.
package location

import (
	"context"
	"errors"

	"swiftdrop-backend/internal/models"
)

// ErrUnavailable is returned when no current fix can be produced within the
// caller's deadline.
var ErrUnavailable = errors.New("location: fix unavailable")

// WatchOptions filters how often a watch callback fires.
type WatchOptions struct {
	MinIntervalMs int     // deliver at most once per interval
	MinDistanceM  float64 // or whenever the device moved at least this far
}

// Subscription is a cancellable handle on a position watch. Cancel is safe to
// call multiple times.
type Subscription interface {
	Cancel()
}

// Provider produces position fixes for a single driver.
type Provider interface {
	// RequestPermission reports whether location access is granted. A denied
	// result is not an error; tracking simply does not start.
	RequestPermission(ctx context.Context) (bool, error)

	// CurrentFix returns the most recent fix, waiting up to the context
	// deadline for one to arrive. Returns ErrUnavailable on timeout.
	CurrentFix(ctx context.Context) (models.PositionFix, error)

	// Watch invokes fn for every fix passing the options filter until the
	// subscription is cancelled.
	Watch(opts WatchOptions, fn func(models.PositionFix)) (Subscription, error)
}
