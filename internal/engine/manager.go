package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/internal/zones"
)

// tokenSetter is implemented by notifiers that route FCM pushes.
type tokenSetter interface {
	SetFCMToken(token string)
}

// ManagerDeps bundles the collaborators a Manager wires into each driver
// runtime.
type ManagerDeps struct {
	Store    store.DriverStore
	Branches store.BranchStore
	Hazards  zones.HazardSource
	Feeds    *location.FeedRegistry
	Recorder SnapshotRecorder
	Notifier func(driverID string) notify.Notifier
	Geocoder ReverseGeocoder
	Config   Config
}

// runtime is the per-driver assembly: fix feed, estimator, zone index,
// policy engine, confirmation queue, and tracking session, all driven by the
// driver-document subscription.
type runtime struct {
	driverID string
	ctx      context.Context
	cancel   context.CancelFunc

	index    *zones.Index
	queue    *ConfirmQueue
	session  *Session
	notifier notify.Notifier
	alerts   atomic.Bool

	mu                sync.Mutex
	unsubscribe       func()
	lastBranch        string
	branchLoaded      bool
	ensuredViolations bool
}

// Manager owns one runtime per driver and reacts to driver-document
// snapshots the way the app's root provider does: ensure the violations
// field exists, kick the confirmation queue, refresh zones on branch change,
// and gate the tracking session on status and screen.
type Manager struct {
	deps    ManagerDeps
	baseCtx context.Context

	mu       sync.Mutex
	runtimes map[string]*runtime
}

func NewManager(ctx context.Context, deps ManagerDeps) *Manager {
	return &Manager{
		deps:     deps,
		baseCtx:  ctx,
		runtimes: make(map[string]*runtime),
	}
}

// Ensure starts (or returns) the runtime for a driver. Called from every
// authenticated driver request so the engine follows whoever is active.
func (m *Manager) Ensure(driverID string) (*runtime, error) {
	m.mu.Lock()
	if rt, ok := m.runtimes[driverID]; ok {
		m.mu.Unlock()
		return rt, nil
	}
	m.mu.Unlock()

	rtCtx, cancel := context.WithCancel(m.baseCtx)
	index := zones.NewIndex(m.deps.Branches, m.deps.Hazards)
	notifier := m.deps.Notifier(driverID)

	rt := &runtime{
		driverID: driverID,
		ctx:      rtCtx,
		cancel:   cancel,
		index:    index,
		notifier: notifier,
	}
	rt.alerts.Store(true)

	policy := NewPolicyEngine(driverID, index, m.deps.Store, notifier, rt.alerts.Load)
	rt.queue = NewConfirmQueue(driverID, m.deps.Store, notifier, m.deps.Geocoder)
	rt.session = NewSession(
		driverID,
		m.deps.Feeds.Feed(driverID),
		NewSpeedEstimator(),
		index,
		policy,
		m.deps.Store,
		m.deps.Recorder,
		m.deps.Config,
	)

	m.mu.Lock()
	if existing, ok := m.runtimes[driverID]; ok {
		// Lost the race to another request; discard ours.
		m.mu.Unlock()
		cancel()
		return existing, nil
	}
	m.runtimes[driverID] = rt
	m.mu.Unlock()

	unsubscribe, err := m.deps.Store.Subscribe(rtCtx, driverID, func(doc models.DriverDoc) {
		m.onSnapshot(rt, doc)
	})
	if err != nil {
		m.Remove(driverID)
		return nil, err
	}
	rt.mu.Lock()
	rt.unsubscribe = unsubscribe
	rt.mu.Unlock()

	log.Printf("✅ Engine runtime started for driver %s", driverID)
	return rt, nil
}

// PushFix feeds a device-reported fix into the driver's stream.
func (m *Manager) PushFix(driverID string, fix models.PositionFix) error {
	if _, err := m.Ensure(driverID); err != nil {
		return err
	}
	m.deps.Feeds.Feed(driverID).Push(fix)
	return nil
}

// ZonesFor returns the driver's current zone set.
func (m *Manager) ZonesFor(driverID string) ([]models.Zone, error) {
	rt, err := m.Ensure(driverID)
	if err != nil {
		return nil, err
	}
	return rt.index.Zones(), nil
}

// MatchZone returns the zone containing the coordinate, if any.
func (m *Manager) MatchZone(driverID string, coord models.Coordinate) (*models.Zone, error) {
	rt, err := m.Ensure(driverID)
	if err != nil {
		return nil, err
	}
	return rt.index.Match(coord), nil
}

// Remove tears down a driver's runtime, e.g. on logout.
func (m *Manager) Remove(driverID string) {
	m.mu.Lock()
	rt, ok := m.runtimes[driverID]
	if ok {
		delete(m.runtimes, driverID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	rt.mu.Lock()
	unsubscribe := rt.unsubscribe
	rt.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	rt.session.Stop()
	rt.cancel()
	log.Printf("🔴 Engine runtime stopped for driver %s", driverID)
}

// Shutdown stops every runtime.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
}

func (m *Manager) onSnapshot(rt *runtime, doc models.DriverDoc) {
	rt.alerts.Store(models.AlertsEnabled(doc.CurrentScreen))

	if ts, ok := rt.notifier.(tokenSetter); ok {
		ts.SetFCMToken(doc.FCMToken)
	}

	// Seed the violations field exactly once for brand-new drivers so the
	// external enforcement tooling always finds an array to append to.
	rt.mu.Lock()
	ensure := !doc.ViolationsPresent && !rt.ensuredViolations
	if ensure {
		rt.ensuredViolations = true
	}
	branchChanged := !rt.branchLoaded || rt.lastBranch != doc.BranchID
	rt.lastBranch = doc.BranchID
	rt.branchLoaded = true
	rt.mu.Unlock()

	if ensure {
		if err := m.deps.Store.SetViolations(rt.ctx, rt.driverID, nil); err != nil {
			log.Printf("⚠️  Failed to seed violations for %s: %v", rt.driverID, err)
		}
	}

	if rt.alerts.Load() && models.FirstUnconfirmed(doc.Violations) >= 0 {
		rt.queue.Kick(rt.ctx)
	}

	if doc.BranchID == "" {
		rt.index.Clear()
	} else if branchChanged {
		var near *models.Coordinate
		if doc.Location != nil {
			near = &models.Coordinate{Latitude: doc.Location.Latitude, Longitude: doc.Location.Longitude}
		}
		go rt.index.Reload(rt.ctx, doc.BranchID, near)
	}

	rt.session.Apply(rt.ctx, doc.Status, doc.CurrentScreen, doc.BranchID)
}
