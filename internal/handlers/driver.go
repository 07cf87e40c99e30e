package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"swiftdrop-backend/internal/database"
	"swiftdrop-backend/internal/engine"
	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/middleware"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/pkg/utils"
)

// LocationUpdateRequest is the device check-in payload. Speed is the raw
// device reading in m/s; the server derives km/h itself.
type LocationUpdateRequest struct {
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Speed             *float64 `json:"speed,omitempty"`
	Heading           *float64 `json:"heading,omitempty"`
	Accuracy          *float64 `json:"accuracy,omitempty"`
	Timestamp         int64    `json:"timestamp,omitempty"` // ms since epoch
	PermissionGranted *bool    `json:"permission_granted,omitempty"`
}

// UpdateLocation ingests a device position fix into the driver's engine feed.
func UpdateLocation(manager *engine.Manager, feeds *location.FeedRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req LocationUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.PermissionGranted != nil {
			feeds.Feed(claims.UserID).SetPermission(*req.PermissionGranted)
			if !*req.PermissionGranted {
				utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
				return
			}
		}

		if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
			utils.RespondError(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}

		ts := time.Now()
		if req.Timestamp > 0 {
			ts = time.UnixMilli(req.Timestamp)
		}

		fix := models.PositionFix{
			Coordinate: models.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
			SpeedMPS:   req.Speed,
			Heading:    req.Heading,
			Accuracy:   req.Accuracy,
			Timestamp:  ts,
		}

		if err := manager.PushFix(claims.UserID, fix); err != nil {
			log.Printf("❌ Failed to start engine for driver %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to process location")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// GetViolations returns the driver's violation list, newest last.
func GetViolations(drivers store.DriverStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		doc, err := drivers.Get(r.Context(), claims.UserID)
		if err != nil {
			log.Printf("❌ Failed to read driver document for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load violations")
			return
		}

		responses := make([]models.ViolationResponse, 0, len(doc.Violations))
		for _, v := range doc.Violations {
			responses = append(responses, v.ToResponse())
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"violations": responses,
		})
	}
}

// AckViolation resolves the pending violation modal for the driver.
func AckViolation(acks *notify.AckRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if !acks.Resolve(claims.UserID) {
			utils.RespondError(w, http.StatusConflict, "No violation awaiting acknowledgment")
			return
		}

		log.Printf("✅ Violation acknowledged by driver %s", claims.UserID)
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "acknowledged": true})
	}
}

// GetZones returns the slowdown zones currently loaded for the driver.
func GetZones(manager *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		zones, err := manager.ZonesFor(claims.UserID)
		if err != nil {
			log.Printf("❌ Failed to load zones for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load zones")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"zones":   zones,
		})
	}
}

// GetLocationHistory returns the driver's recent persisted snapshots.
func GetLocationHistory(history *database.LocationHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		locations, err := history.Recent(r.Context(), claims.UserID, limit)
		if err != nil {
			log.Printf("❌ Failed to load location history for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load location history")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"locations": locations,
		})
	}
}
