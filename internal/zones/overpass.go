package zones

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/pkg/geo"
)

const (
	defaultOverpassURL = "https://overpass-api.de/api/interpreter"

	// crossingSearchRadiusM bounds the Overpass query around the driver.
	crossingSearchRadiusM = 1000

	// overpassCacheTTL keeps discovered crossings warm so a driver circling
	// the same blocks does not hammer the public API.
	overpassCacheTTL = 10 * time.Minute

	// maxCrossings caps how many discovered crossings become zones.
	maxCrossings = 20
)

// OverpassClient discovers pedestrian crossings near a coordinate through the
// Overpass API and exposes them as fixed-limit crosswalk zones.
type OverpassClient struct {
	baseURL string
	client  *http.Client
	cache   *zoneCache
}

// overpassResponse is the subset of the interpreter output we consume.
type overpassResponse struct {
	Elements []struct {
		ID  int64   `json:"id"`
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"elements"`
}

func NewOverpassClient() *OverpassClient {
	return &OverpassClient{
		baseURL: defaultOverpassURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   newZoneCache(overpassCacheTTL),
	}
}

// NewOverpassClientWithURL points the client at a non-default interpreter,
// used by tests and self-hosted mirrors.
func NewOverpassClientWithURL(baseURL string) *OverpassClient {
	c := NewOverpassClient()
	c.baseURL = baseURL
	return c
}

// NearbyHazards returns crossing zones within the search radius of coord.
func (c *OverpassClient) NearbyHazards(ctx context.Context, coord models.Coordinate) ([]models.Zone, error) {
	cacheKey := geo.CellKey(coord.Latitude, coord.Longitude, hazardCellDeg)
	if zones, ok := c.cache.get(cacheKey); ok {
		return zones, nil
	}

	query := fmt.Sprintf(
		`[out:json][timeout:25];(node["highway"="crossing"](around:%d,%f,%f););out body;`,
		crossingSearchRadiusM, coord.Latitude, coord.Longitude,
	)

	params := url.Values{}
	params.Add("data", query)
	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	var result overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Cap discovered crossings; dense downtown grids return hundreds and the
	// closest ones matter most to the match loop anyway.
	elements := result.Elements
	if len(elements) > maxCrossings {
		elements = elements[:maxCrossings]
	}

	zones := make([]models.Zone, 0, len(elements))
	for i, el := range elements {
		zones = append(zones, models.Zone{
			ID:         fmt.Sprintf("cross_%d", i),
			Category:   models.CategoryCrosswalk,
			Location:   models.LatLng{Lat: el.Lat, Lng: el.Lon},
			RadiusM:    models.DefaultZoneRadiusM,
			SpeedLimit: models.CrosswalkSpeedLimitKmh,
		})
	}

	c.cache.put(cacheKey, zones)
	return zones, nil
}
