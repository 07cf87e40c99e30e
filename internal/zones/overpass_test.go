package zones

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"swiftdrop-backend/internal/models"
)

func overpassServer(t *testing.T, hits *atomic.Int64, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		query := r.URL.Query().Get("data")
		if !strings.Contains(query, `node["highway"="crossing"]`) {
			t.Errorf("unexpected Overpass query: %s", query)
		}
		if !strings.Contains(query, "around:1000") {
			t.Errorf("query missing search radius: %s", query)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestNearbyHazardsParsesCrossings(t *testing.T) {
	var hits atomic.Int64
	srv := overpassServer(t, &hits, `{
		"elements": [
			{"id": 101, "lat": 14.5991, "lon": 120.9840},
			{"id": 102, "lat": 14.5997, "lon": 120.9845}
		]
	}`)
	defer srv.Close()

	c := NewOverpassClientWithURL(srv.URL)
	zones, err := c.NearbyHazards(context.Background(), models.Coordinate{Latitude: 14.5995, Longitude: 120.9842})
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 2 {
		t.Fatalf("zones = %d, want 2", len(zones))
	}
	z := zones[0]
	if z.ID != "cross_0" || z.Category != models.CategoryCrosswalk {
		t.Errorf("zone = %+v, want cross_0/Crosswalk", z)
	}
	if z.RadiusM != models.DefaultZoneRadiusM || z.SpeedLimit != models.CrosswalkSpeedLimitKmh {
		t.Errorf("zone defaults = %v/%v, want %v/%v", z.RadiusM, z.SpeedLimit, models.DefaultZoneRadiusM, models.CrosswalkSpeedLimitKmh)
	}
	if z.Location.Lat != 14.5991 || z.Location.Lng != 120.9840 {
		t.Errorf("zone location = %+v", z.Location)
	}
}

func TestNearbyHazardsCapsResults(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"elements": [`)
	for i := 0; i < 35; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id": %d, "lat": 14.6, "lon": 121.0}`, i)
	}
	sb.WriteString(`]}`)

	var hits atomic.Int64
	srv := overpassServer(t, &hits, sb.String())
	defer srv.Close()

	c := NewOverpassClientWithURL(srv.URL)
	zones, err := c.NearbyHazards(context.Background(), models.Coordinate{Latitude: 14.6, Longitude: 121.0})
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != maxCrossings {
		t.Errorf("zones = %d, want capped at %d", len(zones), maxCrossings)
	}
}

func TestNearbyHazardsCachesByCell(t *testing.T) {
	var hits atomic.Int64
	srv := overpassServer(t, &hits, `{"elements": []}`)
	defer srv.Close()

	c := NewOverpassClientWithURL(srv.URL)
	ctx := context.Background()

	// Two lookups in the same grid cell hit the API once.
	if _, err := c.NearbyHazards(ctx, models.Coordinate{Latitude: 14.6001, Longitude: 121.0001}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NearbyHazards(ctx, models.Coordinate{Latitude: 14.6002, Longitude: 121.0002}); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("API hits = %d, want 1 (cached)", got)
	}

	// A different cell misses the cache.
	if _, err := c.NearbyHazards(ctx, models.Coordinate{Latitude: 14.6150, Longitude: 121.0001}); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("API hits = %d, want 2", got)
	}
}

func TestNearbyHazardsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := NewOverpassClientWithURL(srv.URL)
	if _, err := c.NearbyHazards(context.Background(), models.Coordinate{Latitude: 14.6, Longitude: 121.0}); err == nil {
		t.Fatal("expected an error on non-200 response")
	}
}
