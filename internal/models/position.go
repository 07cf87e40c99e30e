package models

import "time"

// Coordinate represents a WGS 84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
}

// PositionFix is a raw location sample as reported by the driver's device.
// Fixes are ephemeral: they feed the speed estimator and the violation
// pipeline but are never stored as-is.
type PositionFix struct {
	Coordinate Coordinate
	SpeedMPS   *float64 // device-reported speed in m/s, nil when unavailable
	Heading    *float64 // degrees 0-360, nil when unavailable
	Accuracy   *float64 // GPS accuracy in meters
	Timestamp  time.Time
}

// LocationSnapshot is the current-location block persisted on the driver
// document after each throttled fix.
type LocationSnapshot struct {
	Latitude  float64  `json:"latitude" firestore:"latitude"`
	Longitude float64  `json:"longitude" firestore:"longitude"`
	SpeedKmh  float64  `json:"speed_kmh" firestore:"speedKmh"`
	Heading   *float64 `json:"heading,omitempty" firestore:"heading"`
	Accuracy  *float64 `json:"accuracy,omitempty" firestore:"accuracy"`
}

// DriverLocation is one row of the Postgres location history, kept for the
// manager dashboard alongside the live document in Firestore.
type DriverLocation struct {
	ID        int      `json:"id" db:"id"`
	DriverID  string   `json:"driver_id" db:"driver_id"`
	Latitude  float64  `json:"latitude" db:"latitude"`
	Longitude float64  `json:"longitude" db:"longitude"`
	Heading   *float64 `json:"heading,omitempty" db:"heading"`
	SpeedKmh  float64  `json:"speed_kmh" db:"speed_kmh"`
	Accuracy  *float64 `json:"accuracy,omitempty" db:"accuracy"`
	Timestamp int64    `json:"timestamp" db:"timestamp"`   // client-side timestamp (ms)
	CreatedAt int64    `json:"created_at" db:"created_at"` // server-side timestamp
}
