package store

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"cloud.google.com/go/firestore"

	"swiftdrop-backend/internal/models"
)

// FirestoreStore implements DriverStore and BranchStore on top of Firestore.
// Drivers live in the "users" collection keyed by uid; branch configuration
// lives in "branches".
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) driver(driverID string) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(driverID)
}

func (s *FirestoreStore) Get(ctx context.Context, driverID string) (*models.DriverDoc, error) {
	snap, err := s.driver(driverID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver %s: %w", driverID, err)
	}
	return decodeDriver(snap)
}

func (s *FirestoreStore) Subscribe(ctx context.Context, driverID string, fn func(models.DriverDoc)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	iter := s.driver(driverID).Snapshots(subCtx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if subCtx.Err() == nil {
					log.Printf("❌ Driver doc subscription ended for %s: %v", driverID, err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			doc, err := decodeDriver(snap)
			if err != nil {
				log.Printf("⚠️  Skipping malformed driver doc for %s: %v", driverID, err)
				continue
			}
			fn(*doc)
		}
	}()

	return cancel, nil
}

func (s *FirestoreStore) SetLocation(ctx context.Context, driverID string, snap models.LocationSnapshot) error {
	data := map[string]interface{}{
		"location": map[string]interface{}{
			"latitude":  snap.Latitude,
			"longitude": snap.Longitude,
			"speedKmh":  snap.SpeedKmh,
			"heading":   snap.Heading,
			"accuracy":  snap.Accuracy,
		},
		"lastLocationAt": firestore.ServerTimestamp,
	}
	_, err := s.driver(driverID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update location for %s: %w", driverID, err)
	}
	return nil
}

func (s *FirestoreStore) AppendViolation(ctx context.Context, driverID string, v models.Violation) error {
	// ArrayUnion keeps the append additive under concurrent writers; an
	// enforcement system appending at the same moment loses nothing.
	_, err := s.driver(driverID).Update(ctx, []firestore.Update{
		{Path: "violations", Value: firestore.ArrayUnion(v)},
	})
	if err != nil {
		return fmt.Errorf("failed to append violation for %s: %w", driverID, err)
	}
	return nil
}

func (s *FirestoreStore) SetViolations(ctx context.Context, driverID string, violations []models.Violation) error {
	if violations == nil {
		violations = []models.Violation{}
	}
	_, err := s.driver(driverID).Update(ctx, []firestore.Update{
		{Path: "violations", Value: violations},
	})
	if err != nil {
		return fmt.Errorf("failed to update violations for %s: %w", driverID, err)
	}
	return nil
}

// BranchZones reads the operator-curated slowdown list. A missing branch
// document yields an empty list, not an error.
func (s *FirestoreStore) BranchZones(ctx context.Context, branchID string) ([]models.Zone, error) {
	snap, err := s.client.Collection("branches").Doc(branchID).Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return []models.Zone{}, nil
		}
		return nil, fmt.Errorf("failed to read branch %s: %w", branchID, err)
	}

	var data struct {
		Slowdowns []struct {
			ID         interface{}   `firestore:"id"`
			Category   string        `firestore:"category"`
			Location   models.LatLng `firestore:"location"`
			Radius     float64       `firestore:"radius"`
			SpeedLimit float64       `firestore:"speedLimit"`
		} `firestore:"slowdowns"`
	}
	if err := snap.DataTo(&data); err != nil {
		return nil, fmt.Errorf("failed to decode branch %s: %w", branchID, err)
	}

	zones := make([]models.Zone, 0, len(data.Slowdowns))
	for i, sd := range data.Slowdowns {
		id := fmt.Sprint(sd.ID)
		if sd.ID == nil || id == "" {
			id = strconv.Itoa(i)
		}
		category := sd.Category
		if category == "" {
			category = models.CategoryDefault
		}
		radius := sd.Radius
		if radius <= 0 {
			radius = models.DefaultZoneRadiusM
		}
		zones = append(zones, models.Zone{
			ID:         id,
			Category:   category,
			Location:   sd.Location,
			RadiusM:    radius,
			SpeedLimit: sd.SpeedLimit,
		})
	}
	return zones, nil
}

func decodeDriver(snap *firestore.DocumentSnapshot) (*models.DriverDoc, error) {
	var doc models.DriverDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode driver doc: %w", err)
	}
	// DataTo cannot tell a missing violations field from an empty one, so
	// check the raw map; the engine seeds [] exactly once for new drivers.
	_, doc.ViolationsPresent = snap.Data()["violations"]
	return &doc, nil
}
