package engine

import (
	"context"
	"testing"
	"time"

	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
)

func newTestManager(t *testing.T, st *store.MemoryStore, notifiers map[string]*fakeNotifier) *Manager {
	t.Helper()
	cfg := testConfig()
	return NewManager(context.Background(), ManagerDeps{
		Store:    st,
		Branches: st,
		Feeds:    location.NewFeedRegistry(),
		Recorder: &captureRecorder{},
		Notifier: func(driverID string) notify.Notifier {
			n := newFakeNotifier()
			notifiers[driverID] = n
			return n
		},
		Config: cfg,
	})
}

func TestManagerEnsureIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDriver("d1", models.DriverDoc{BranchID: "b1"})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	rt1, err := m.Ensure("d1")
	if err != nil {
		t.Fatal(err)
	}
	rt2, err := m.Ensure("d1")
	if err != nil {
		t.Fatal(err)
	}
	if rt1 != rt2 {
		t.Error("Ensure must return the same runtime for the same driver")
	}
}

func TestManagerSeedsViolationsFieldOnce(t *testing.T) {
	st := store.NewMemoryStore()
	// Fresh driver: violations field never written.
	st.PutDriver("d1", models.DriverDoc{BranchID: "b1"})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	if _, err := m.Ensure("d1"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		doc, err := st.Get(context.Background(), "d1")
		return err == nil && doc.ViolationsPresent
	})
	doc, _ := st.Get(context.Background(), "d1")
	if len(doc.Violations) != 0 {
		t.Errorf("seeded violations = %v, want empty list", doc.Violations)
	}
}

func TestManagerKicksConfirmationOnUnconfirmed(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDriver("d1", models.DriverDoc{
		BranchID:      "b1",
		CurrentScreen: models.ScreenHome,
		Violations:    []models.Violation{violation("v1", false)},
	})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	if _, err := m.Ensure("d1"); err != nil {
		t.Fatal(err)
	}

	// The initial snapshot should trigger the spoken prompt for v1.
	waitFor(t, time.Second, func() bool {
		n, ok := notifiers["d1"]
		return ok && n.spokenCount() >= 1
	})

	notifiers["d1"].modals <- struct{}{}
	waitFor(t, time.Second, func() bool {
		doc, _ := st.Get(context.Background(), "d1")
		return doc.Violations[0].Confirmed
	})
}

func TestManagerNoPromptOnLoginScreen(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDriver("d1", models.DriverDoc{
		BranchID:      "b1",
		CurrentScreen: models.ScreenLogin,
		Violations:    []models.Violation{violation("v1", false)},
	})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	if _, err := m.Ensure("d1"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if n, ok := notifiers["d1"]; ok && n.spokenCount() != 0 {
		t.Error("no violation prompt expected on the login screen")
	}
}

func TestManagerLoadsZonesOnBranchChange(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutBranch("b1", []models.Zone{{ID: "z1", Location: models.LatLng{Lat: 14.6, Lng: 121.0}, RadiusM: 50, SpeedLimit: 30}})
	st.PutBranch("b2", []models.Zone{
		{ID: "z2", Location: models.LatLng{Lat: 14.7, Lng: 121.0}, RadiusM: 50, SpeedLimit: 20},
		{ID: "z3", Location: models.LatLng{Lat: 14.8, Lng: 121.0}, RadiusM: 50, SpeedLimit: 40},
	})
	st.PutDriver("d1", models.DriverDoc{BranchID: "b1", CurrentScreen: models.ScreenHome})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	if _, err := m.Ensure("d1"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool {
		zs, err := m.ZonesFor("d1")
		return err == nil && len(zs) == 1
	})

	// Reassignment to another branch swaps the zone set.
	doc, _ := st.Get(context.Background(), "d1")
	doc.BranchID = "b2"
	st.PutDriver("d1", *doc)
	waitFor(t, time.Second, func() bool {
		zs, _ := m.ZonesFor("d1")
		return len(zs) == 2
	})

	// Losing the branch clears it.
	doc, _ = st.Get(context.Background(), "d1")
	doc.BranchID = ""
	st.PutDriver("d1", *doc)
	waitFor(t, time.Second, func() bool {
		zs, _ := m.ZonesFor("d1")
		return len(zs) == 0
	})
}

func TestManagerPushFixDrivesTracking(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutBranch("b1", nil)
	st.PutDriver("d1", models.DriverDoc{
		BranchID:      "b1",
		Status:        models.StatusDelivering,
		CurrentScreen: models.ScreenHome,
	})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)
	defer m.Shutdown()

	err := m.PushFix("d1", models.PositionFix{
		Coordinate: models.Coordinate{Latitude: 14.6, Longitude: 121.0},
		SpeedMPS:   f64(10),
		Timestamp:  time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		doc, err := st.Get(context.Background(), "d1")
		return err == nil && doc.Location != nil
	})
	doc, _ := st.Get(context.Background(), "d1")
	if doc.Location.SpeedKmh != 36 {
		t.Errorf("SpeedKmh = %v, want 36", doc.Location.SpeedKmh)
	}
}

func TestManagerRemoveStopsRuntime(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDriver("d1", models.DriverDoc{BranchID: "b1"})
	notifiers := map[string]*fakeNotifier{}
	m := newTestManager(t, st, notifiers)

	rt, err := m.Ensure("d1")
	if err != nil {
		t.Fatal(err)
	}
	m.Remove("d1")

	if rt.ctx.Err() == nil {
		t.Error("runtime context must be cancelled after Remove")
	}
	// Removing twice is safe.
	m.Remove("d1")
}
