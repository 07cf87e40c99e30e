package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swiftdrop-backend/internal/engine"
	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/middleware"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Speak(string) {}
func (noopNotifier) Alert(string, string) {}
func (noopNotifier) PresentBlockingModal(ctx context.Context, title, body string) error {
	<-ctx.Done()
	return ctx.Err()
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, models.DriverLocation) error { return nil }

func asDriver(req *http.Request, driverID string) *http.Request {
	claims := middleware.UserClaims{UserID: driverID, Email: driverID + "@swiftdrop.com", Role: "driver"}
	return req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, claims))
}

func newTestEngine(t *testing.T) (*engine.Manager, *store.MemoryStore, *location.FeedRegistry) {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutBranch("b1", nil)
	st.PutDriver("d1", models.DriverDoc{
		BranchID:      "b1",
		Status:        models.StatusDelivering,
		CurrentScreen: models.ScreenHome,
	})

	feeds := location.NewFeedRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := engine.NewManager(ctx, engine.ManagerDeps{
		Store:    st,
		Branches: st,
		Feeds:    feeds,
		Recorder: noopRecorder{},
		Notifier: func(string) notify.Notifier { return noopNotifier{} },
		Config: engine.Config{
			WriteInterval:     0,
			InitialFixTimeout: 100 * time.Millisecond,
		},
	})
	t.Cleanup(m.Shutdown)
	return m, st, feeds
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestUpdateLocationIngestsFix(t *testing.T) {
	m, st, feeds := newTestEngine(t)

	body, _ := json.Marshal(LocationUpdateRequest{
		Latitude:  14.6,
		Longitude: 121.0,
		Speed:     func() *float64 { v := 10.0; return &v }(),
		Timestamp: time.Now().UnixMilli(),
	})
	req := asDriver(httptest.NewRequest(http.MethodPost, "/api/driver/location", bytes.NewReader(body)), "d1")
	rec := httptest.NewRecorder()
	UpdateLocation(m, feeds).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
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

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	m, _, feeds := newTestEngine(t)

	body, _ := json.Marshal(LocationUpdateRequest{Latitude: 91, Longitude: 121.0})
	req := asDriver(httptest.NewRequest(http.MethodPost, "/api/driver/location", bytes.NewReader(body)), "d1")
	rec := httptest.NewRecorder()
	UpdateLocation(m, feeds).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateLocationPermissionRevocation(t *testing.T) {
	m, _, feeds := newTestEngine(t)

	denied := false
	body, _ := json.Marshal(LocationUpdateRequest{PermissionGranted: &denied})
	req := asDriver(httptest.NewRequest(http.MethodPost, "/api/driver/location", bytes.NewReader(body)), "d1")
	rec := httptest.NewRecorder()
	UpdateLocation(m, feeds).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	granted, _ := feeds.Feed("d1").RequestPermission(context.Background())
	if granted {
		t.Error("permission should be revoked on the driver's feed")
	}
}

func TestUpdateLocationUnauthenticated(t *testing.T) {
	m, _, feeds := newTestEngine(t)

	body, _ := json.Marshal(LocationUpdateRequest{Latitude: 14.6, Longitude: 121.0})
	req := httptest.NewRequest(http.MethodPost, "/api/driver/location", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	UpdateLocation(m, feeds).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGetViolations(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDriver("d1", models.DriverDoc{
		Violations: []models.Violation{{
			ID:       "v1",
			Message:  "Speeding violation",
			IssuedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			TopSpeed: 52,
		}},
	})

	req := asDriver(httptest.NewRequest(http.MethodGet, "/api/driver/violations", nil), "d1")
	rec := httptest.NewRecorder()
	GetViolations(st).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Success    bool                       `json:"success"`
		Violations []models.ViolationResponse `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Violations) != 1 || resp.Violations[0].ID != "v1" {
		t.Fatalf("violations = %+v", resp.Violations)
	}
	if resp.Violations[0].IssuedAtISO != "2026-03-10T08:00:00Z" {
		t.Errorf("IssuedAtISO = %q", resp.Violations[0].IssuedAtISO)
	}
}

func TestAckViolation(t *testing.T) {
	acks := notify.NewAckRegistry()

	// No modal pending yet.
	req := asDriver(httptest.NewRequest(http.MethodPost, "/api/driver/violations/ack", nil), "d1")
	rec := httptest.NewRecorder()
	AckViolation(acks).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 with nothing pending", rec.Code)
	}

	// With a blocking modal up, the ack resolves it.
	n := notify.NewPushNotifier("d1", fakeHub{}, nil, acks)
	done := make(chan error, 1)
	go func() {
		done <- n.PresentBlockingModal(context.Background(), "Notice of Violation", "body")
	}()

	waitFor(t, time.Second, func() bool {
		req := asDriver(httptest.NewRequest(http.MethodPost, "/api/driver/violations/ack", nil), "d1")
		rec := httptest.NewRecorder()
		AckViolation(acks).ServeHTTP(rec, req)
		return rec.Code == http.StatusOK
	})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("modal returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("modal did not resolve after ack")
	}
}

type fakeHub struct{}

func (fakeHub) BroadcastToUser(string, interface{}) {}

func TestGetZones(t *testing.T) {
	m, st, _ := newTestEngine(t)
	st.PutBranch("b1", []models.Zone{{ID: "z1", Location: models.LatLng{Lat: 14.6, Lng: 121.0}, RadiusM: 50, SpeedLimit: 30}})

	// Force a fresh runtime so the branch zones load.
	if _, err := m.Ensure("d1"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool {
		zs, err := m.ZonesFor("d1")
		return err == nil && len(zs) == 1
	})

	req := asDriver(httptest.NewRequest(http.MethodGet, "/api/driver/zones", nil), "d1")
	rec := httptest.NewRecorder()
	GetZones(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Success bool          `json:"success"`
		Zones   []models.Zone `json:"zones"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Zones) != 1 || resp.Zones[0].ID != "z1" {
		t.Errorf("zones = %+v", resp.Zones)
	}
}
