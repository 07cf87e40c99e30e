package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"swiftdrop-backend/internal/models"
)

func fix(lat, lng float64, ts time.Time) models.PositionFix {
	return models.PositionFix{
		Coordinate: models.Coordinate{Latitude: lat, Longitude: lng},
		Timestamp:  ts,
	}
}

func TestCurrentFixReturnsLatestImmediately(t *testing.T) {
	f := NewDeviceFeed()
	f.Push(fix(14.6, 121.0, time.Now()))

	got, err := f.CurrentFix(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Coordinate.Latitude != 14.6 {
		t.Errorf("latitude = %v, want 14.6", got.Coordinate.Latitude)
	}
}

func TestCurrentFixWaitsForFirstPush(t *testing.T) {
	f := NewDeviceFeed()

	done := make(chan models.PositionFix, 1)
	go func() {
		got, err := f.CurrentFix(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	f.Push(fix(14.6, 121.0, time.Now()))

	select {
	case got := <-done:
		if got.Coordinate.Latitude != 14.6 {
			t.Errorf("latitude = %v, want 14.6", got.Coordinate.Latitude)
		}
	case <-time.After(time.Second):
		t.Fatal("CurrentFix did not return after Push")
	}
}

func TestCurrentFixTimesOut(t *testing.T) {
	f := NewDeviceFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := f.CurrentFix(ctx); err != ErrUnavailable {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestWatchFirstFixAlwaysDelivered(t *testing.T) {
	f := NewDeviceFeed()

	var mu sync.Mutex
	var got []models.PositionFix
	sub, err := f.Watch(WatchOptions{MinIntervalMs: 60000, MinDistanceM: 1000}, func(fx models.PositionFix) {
		mu.Lock()
		got = append(got, fx)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	f.Push(fix(14.6, 121.0, time.Now()))
	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n != 1 {
		t.Errorf("delivered = %d, want 1 (first fix bypasses filters)", n)
	}
}

func TestWatchIntervalAndDistanceFilters(t *testing.T) {
	f := NewDeviceFeed()
	base := time.Now()

	var mu sync.Mutex
	var got []models.PositionFix
	sub, _ := f.Watch(WatchOptions{MinIntervalMs: 5000, MinDistanceM: 100}, func(fx models.PositionFix) {
		mu.Lock()
		got = append(got, fx)
		mu.Unlock()
	})
	defer sub.Cancel()

	f.Push(fix(14.6000, 121.0, base))                        // first: delivered
	f.Push(fix(14.60001, 121.0, base.Add(time.Second)))      // ~1 m, 1 s: filtered
	f.Push(fix(14.6010, 121.0, base.Add(2*time.Second)))     // ~111 m: passes distance
	f.Push(fix(14.60101, 121.0, base.Add(8*time.Second)))    // ~1 m but 6 s later: passes interval
	f.Push(fix(14.60102, 121.0, base.Add(8500*time.Millisecond))) // neither: filtered

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	f := NewDeviceFeed()

	var mu sync.Mutex
	count := 0
	sub, _ := f.Watch(WatchOptions{}, func(models.PositionFix) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	f.Push(fix(14.6, 121.0, time.Now()))
	sub.Cancel()
	sub.Cancel() // idempotent
	f.Push(fix(14.7, 121.0, time.Now()))

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("delivered = %d, want 1", count)
	}
}

func TestPermissionRoundTrip(t *testing.T) {
	f := NewDeviceFeed()

	granted, err := f.RequestPermission(context.Background())
	if err != nil || !granted {
		t.Fatalf("default permission = %v, %v; want granted", granted, err)
	}

	f.SetPermission(false)
	granted, _ = f.RequestPermission(context.Background())
	if granted {
		t.Error("permission should be revoked after SetPermission(false)")
	}
}

func TestFeedRegistryReturnsSameFeed(t *testing.T) {
	r := NewFeedRegistry()
	if r.Feed("d1") != r.Feed("d1") {
		t.Error("same driver must map to the same feed")
	}
	if r.Feed("d1") == r.Feed("d2") {
		t.Error("different drivers must get distinct feeds")
	}
}
