package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"swiftdrop-backend/internal/models"
)

// LocationHistory persists throttled location snapshots to Postgres and
// serves the recent-history query for the manager dashboard.
type LocationHistory struct {
	db *sqlx.DB
}

func NewLocationHistory(db *sqlx.DB) *LocationHistory {
	return &LocationHistory{db: db}
}

// Record appends one snapshot row.
func (h *LocationHistory) Record(ctx context.Context, loc models.DriverLocation) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO driver_locations (driver_id, latitude, longitude, heading, speed_kmh, accuracy, timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, loc.DriverID, loc.Latitude, loc.Longitude, loc.Heading, loc.SpeedKmh, loc.Accuracy, loc.Timestamp, time.Now().Unix())
	return err
}

// Recent returns the newest rows for a driver, newest first.
func (h *LocationHistory) Recent(ctx context.Context, driverID string, limit int) ([]models.DriverLocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	locations := []models.DriverLocation{}
	err := h.db.SelectContext(ctx, &locations, `
		SELECT id, driver_id, latitude, longitude, heading, speed_kmh, accuracy, timestamp, created_at
		FROM driver_locations
		WHERE driver_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, driverID, limit)
	if err != nil {
		return nil, err
	}
	return locations, nil
}
