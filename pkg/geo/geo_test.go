package geo

import (
	"math"
	"testing"
)

func TestHaversineM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantM                  float64
		tolM                   float64
	}{
		{
			name: "same point",
			lat1: 14.5995, lon1: 120.9842,
			lat2: 14.5995, lon2: 120.9842,
			wantM: 0, tolM: 0.001,
		},
		{
			name: "one degree of latitude",
			lat1: 0, lon1: 0,
			lat2: 1, lon2: 0,
			wantM: 111195, tolM: 100,
		},
		{
			name: "short hop across an intersection",
			lat1: 14.59950, lon1: 120.98420,
			lat2: 14.59963, lon2: 120.98420,
			wantM: 14.5, tolM: 0.5,
		},
		{
			name: "manila to quezon city",
			lat1: 14.5995, lon1: 120.9842,
			lat2: 14.6760, lon2: 121.0437,
			wantM: 10640, tolM: 150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineM(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantM) > tt.tolM {
				t.Errorf("HaversineM() = %.2f m, want %.2f m (±%.2f)", got, tt.wantM, tt.tolM)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	ab := HaversineM(14.6, 121.0, 14.7, 121.1)
	ba := HaversineM(14.7, 121.1, 14.6, 121.0)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestCellKey(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		same       bool
	}{
		{"same cell", 14.5995, 120.9842, 14.5998, 120.9849, true},
		{"different latitude cell", 14.5995, 120.9842, 14.6105, 120.9842, false},
		{"different longitude cell", 14.5995, 120.9842, 14.5995, 120.9951, false},
		{"negative coordinates stable", -33.8688, 151.2093, -33.8689, 151.2094, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1 := CellKey(tt.lat1, tt.lon1, 0.01)
			k2 := CellKey(tt.lat2, tt.lon2, 0.01)
			if (k1 == k2) != tt.same {
				t.Errorf("CellKey(%v,%v)=%q vs CellKey(%v,%v)=%q, want same=%v",
					tt.lat1, tt.lon1, k1, tt.lat2, tt.lon2, k2, tt.same)
			}
		})
	}
}

func TestCellKeyDefaultCell(t *testing.T) {
	if CellKey(14.5995, 120.9842, 0) != CellKey(14.5995, 120.9842, 0.01) {
		t.Error("zero cell size should fall back to the default grid")
	}
}
