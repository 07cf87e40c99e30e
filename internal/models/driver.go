package models

import (
	"strings"
	"time"
)

// Driver status values mirrored from the driver document.
const (
	StatusOffline    = "Offline"
	StatusAvailable  = "Available"
	StatusDelivering = "Delivering"
)

// Screen identifiers reported by the app. The login screen disables alerts
// entirely; the map screen runs its own fine-grained tracking, so the
// background session stands down while it is active.
const (
	ScreenLogin = "Login"
	ScreenMap   = "Map"
	ScreenHome  = "Home"
)

// IsDelivering reports whether a raw status string means the driver is out
// delivering. Comparison is case-insensitive, matching how the app writes it.
func IsDelivering(status string) bool {
	return strings.EqualFold(status, StatusDelivering)
}

// TrackingAllowed reports whether the background tracking session may run on
// the given screen.
func TrackingAllowed(screen string) bool {
	return screen != ScreenLogin && screen != ScreenMap
}

// AlertsEnabled reports whether spoken/visual violation alerts may fire.
func AlertsEnabled(screen string) bool {
	return screen != ScreenLogin
}

// DriverDoc is the per-driver document held in Firestore. The engine both
// writes it (location snapshots, violations) and observes it (status and
// screen gating, branch changes, externally appended violations).
type DriverDoc struct {
	Name           string            `json:"name" firestore:"name"`
	Email          string            `json:"email" firestore:"email"`
	Role           string            `json:"role" firestore:"role"`
	BranchID       string            `json:"branch_id" firestore:"branchId"`
	Status         string            `json:"status" firestore:"status"`
	CurrentScreen  string            `json:"current_screen" firestore:"currentScreen"`
	FCMToken       string            `json:"-" firestore:"fcmToken"`
	Location       *LocationSnapshot `json:"location,omitempty" firestore:"location"`
	LastLocationAt time.Time         `json:"last_location_at" firestore:"lastLocationAt"`
	Violations     []Violation       `json:"violations" firestore:"violations"`

	// ViolationsPresent distinguishes a missing violations field from an
	// empty list; the engine writes [] once for brand-new drivers.
	ViolationsPresent bool `json:"-" firestore:"-"`
}

// User is a row of the Postgres users table used for API authentication.
type User struct {
	ID        string  `json:"id" db:"id"`
	Email     string  `json:"email" db:"email"`
	Password  string  `json:"-" db:"password"` // bcrypt hash, never serialized
	Name      string  `json:"name" db:"name"`
	Role      string  `json:"role" db:"role"` // "driver" or "admin"
	BranchID  *string `json:"branch_id,omitempty" db:"branch_id"`
	CreatedAt int64   `json:"created_at" db:"created_at"`
	UpdatedAt int64   `json:"updated_at" db:"updated_at"`
}

type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	BranchID  *string `json:"branch_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		BranchID:  u.BranchID,
		CreatedAt: u.CreatedAt,
	}
}
