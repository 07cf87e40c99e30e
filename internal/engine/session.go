package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"sync"

	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/internal/zones"
)

// Config carries the tracking cadence knobs.
type Config struct {
	WatchIntervalMs   int           // continuous watch time filter
	WatchDistanceM    float64       // continuous watch distance filter
	WriteInterval     time.Duration // minimum gap between persisted snapshots
	InitialFixTimeout time.Duration // bounded wait for the first fix
}

func DefaultConfig() Config {
	return Config{
		WatchIntervalMs:   5000,
		WatchDistanceM:    10,
		WriteInterval:     2 * time.Second,
		InitialFixTimeout: 6 * time.Second,
	}
}

// SnapshotRecorder receives the throttled location+speed snapshots, e.g. the
// Postgres history table and the live dashboard broadcast.
type SnapshotRecorder interface {
	Record(ctx context.Context, loc models.DriverLocation) error
}

// MultiRecorder fans a snapshot out to several recorders.
type MultiRecorder []SnapshotRecorder

func (m MultiRecorder) Record(ctx context.Context, loc models.DriverLocation) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, loc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Session owns the continuous position watch for one driver. It runs only
// while the driver status is Delivering and the current screen permits
// background tracking; teardown is immediate and idempotent.
type Session struct {
	driverID  string
	provider  location.Provider
	estimator *SpeedEstimator
	zones     *zones.Index
	policy    *PolicyEngine
	store     store.DriverStore
	recorder  SnapshotRecorder
	cfg       Config
	clock     func() time.Time

	mu          sync.Mutex
	sub         location.Subscription
	running     bool
	gen         int
	branchID    string
	lastWriteAt time.Time
}

func NewSession(driverID string, provider location.Provider, estimator *SpeedEstimator, ix *zones.Index, policy *PolicyEngine, st store.DriverStore, recorder SnapshotRecorder, cfg Config) *Session {
	return &Session{
		driverID:  driverID,
		provider:  provider,
		estimator: estimator,
		zones:     ix,
		policy:    policy,
		store:     st,
		recorder:  recorder,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Apply reconciles the session with the driver's current status and screen.
func (s *Session) Apply(ctx context.Context, status, screen, branchID string) {
	s.mu.Lock()
	s.branchID = branchID
	s.mu.Unlock()

	if models.IsDelivering(status) && models.TrackingAllowed(screen) {
		s.Start(ctx)
	} else {
		s.Stop()
	}
}

// Start begins tracking unless it is already running. The permission request
// and initial fix run off the caller's goroutine so a slow device cannot
// stall document-snapshot handling. Each startup attempt carries a generation
// number; an attempt that survives a Stop (or a Stop+Start restart) finds its
// generation superseded and discards its work instead of leaking a watch.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.begin(ctx, gen)
}

// live reports whether the given startup attempt is still the one the session
// wants running.
func (s *Session) live(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.gen == gen
}

// endAttempt marks a failed startup attempt as not running, unless a newer
// attempt has already taken over.
func (s *Session) endAttempt(gen int) {
	s.mu.Lock()
	if s.gen == gen {
		s.running = false
	}
	s.mu.Unlock()
}

func (s *Session) begin(ctx context.Context, gen int) {
	granted, err := s.provider.RequestPermission(ctx)
	if err != nil || !granted {
		// Denied permission is a silent no-op; it is re-checked on the next
		// permitted-state transition.
		s.endAttempt(gen)
		return
	}

	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.InitialFixTimeout)
	fix, err := s.provider.CurrentFix(fixCtx)
	cancel()
	if err != nil {
		log.Printf("⚠️  Initial fix unavailable for %s: %v", s.driverID, err)
	} else if s.live(gen) {
		s.processFix(ctx, fix, true)
	}

	if !s.live(gen) {
		return
	}

	sub, err := s.provider.Watch(location.WatchOptions{
		MinIntervalMs: s.cfg.WatchIntervalMs,
		MinDistanceM:  s.cfg.WatchDistanceM,
	}, func(fix models.PositionFix) {
		s.processFix(ctx, fix, false)
	})
	if err != nil {
		log.Printf("❌ Failed to start location watch for %s: %v", s.driverID, err)
		s.endAttempt(gen)
		return
	}

	s.mu.Lock()
	if !s.running || s.gen != gen {
		// Stopped or restarted while starting up.
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.sub = sub
	s.mu.Unlock()
}

// Stop cancels the watch immediately. Safe to call repeatedly or before the
// session ever started.
func (s *Session) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.running = false
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// Running reports whether the session currently tracks.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// processFix feeds every fix through the estimator, then persists and
// evaluates only those passing the write throttle.
func (s *Session) processFix(ctx context.Context, fix models.PositionFix, force bool) {
	kmh := s.estimator.Estimate(fix)

	s.mu.Lock()
	now := s.clock()
	if !force && now.Sub(s.lastWriteAt) < s.cfg.WriteInterval {
		s.mu.Unlock()
		return
	}
	s.lastWriteAt = now
	branchID := s.branchID
	s.mu.Unlock()

	// Zone refresh happens off the hot path; a failed or slow fetch never
	// stalls the tracking loop.
	go s.zones.MaybeReload(ctx, branchID, fix.Coordinate)

	snap := models.LocationSnapshot{
		Latitude:  fix.Coordinate.Latitude,
		Longitude: fix.Coordinate.Longitude,
		SpeedKmh:  kmh,
		Heading:   fix.Heading,
		Accuracy:  fix.Accuracy,
	}
	if err := s.store.SetLocation(ctx, s.driverID, snap); err != nil {
		log.Printf("⚠️  Failed to write location snapshot for %s: %v", s.driverID, err)
	}

	if s.recorder != nil {
		loc := models.DriverLocation{
			DriverID:  s.driverID,
			Latitude:  fix.Coordinate.Latitude,
			Longitude: fix.Coordinate.Longitude,
			Heading:   fix.Heading,
			SpeedKmh:  kmh,
			Accuracy:  fix.Accuracy,
			Timestamp: fix.Timestamp.UnixMilli(),
		}
		if err := s.recorder.Record(ctx, loc); err != nil {
			log.Printf("⚠️  Failed to record location history for %s: %v", s.driverID, err)
		}
	}

	s.policy.Evaluate(ctx, fix.Coordinate, kmh)
}
