package models

import "time"

// Violation is a persisted record asserting the driver exceeded the
// applicable speed limit. Records are append-only; the only mutation ever
// applied is flipping Confirmed from false to true after the driver
// acknowledges the notice.
type Violation struct {
	ID             string     `json:"id" firestore:"id"`
	Message        string     `json:"message" firestore:"message"`
	Confirmed      bool       `json:"confirmed" firestore:"confirmed"`
	IssuedAt       time.Time  `json:"issued_at" firestore:"issuedAt"`
	DriverLocation Coordinate `json:"driver_location" firestore:"driverLocation"`
	TopSpeed       int        `json:"top_speed" firestore:"topSpeed"` // km/h, rounded
	AvgSpeed       int        `json:"avg_speed" firestore:"avgSpeed"` // km/h, rounded
	DistanceM      float64    `json:"distance_m" firestore:"distance"`
	TimeSec        float64    `json:"time_sec" firestore:"time"`
	ZoneID         *string    `json:"zone_id" firestore:"zoneId"`
	ZoneLimit      *float64   `json:"zone_limit" firestore:"zoneLimit"`
	DefaultLimit   float64    `json:"default_limit" firestore:"defaultLimit"`
}

// ViolationResponse is the API shape with an ISO issuance timestamp.
type ViolationResponse struct {
	ID             string     `json:"id"`
	Message        string     `json:"message"`
	Confirmed      bool       `json:"confirmed"`
	IssuedAtISO    string     `json:"issued_at_iso"`
	DriverLocation Coordinate `json:"driver_location"`
	TopSpeed       int        `json:"top_speed"`
	AvgSpeed       int        `json:"avg_speed"`
	ZoneID         *string    `json:"zone_id,omitempty"`
	ZoneLimit      *float64   `json:"zone_limit,omitempty"`
	DefaultLimit   float64    `json:"default_limit"`
}

func (v *Violation) ToResponse() ViolationResponse {
	return ViolationResponse{
		ID:             v.ID,
		Message:        v.Message,
		Confirmed:      v.Confirmed,
		IssuedAtISO:    v.IssuedAt.UTC().Format(time.RFC3339),
		DriverLocation: v.DriverLocation,
		TopSpeed:       v.TopSpeed,
		AvgSpeed:       v.AvgSpeed,
		ZoneID:         v.ZoneID,
		ZoneLimit:      v.ZoneLimit,
		DefaultLimit:   v.DefaultLimit,
	}
}

// FirstUnconfirmed returns the index of the first entry whose Confirmed flag
// is not true, or -1. The confirmation queue re-resolves this rule on every
// read instead of trusting a captured index, since the list may be appended
// to concurrently by the policy engine or an external enforcement actor.
func FirstUnconfirmed(violations []Violation) int {
	for i := range violations {
		if !violations[i].Confirmed {
			return i
		}
	}
	return -1
}
