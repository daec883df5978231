package venue

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var catalog = StaticCatalog{
	{Name: "Riverside Cafe", Address: "1 River Rd", Latitude: 10.77, Longitude: 106.70},
	{Name: "Barista Lab", Address: "9 Hill St", Latitude: 21.03, Longitude: 105.85},
	{Name: "Central Tea", Address: "5 Main Sq", Latitude: 16.05, Longitude: 108.20},
}

func TestRecommenderRecommend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("chooses the venue nearest the midpoint", func(t *testing.T) {
		t.Parallel()

		r := NewRecommender(catalog)
		got, err := r.Recommend(ctx, &Point{Latitude: 10.70, Longitude: 106.60}, &Point{Latitude: 10.80, Longitude: 106.80})
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if got != "Riverside Cafe - 1 River Rd" {
			t.Fatalf("unexpected venue %q", got)
		}
	})

	t.Run("falls back to the first venue by name without coordinates", func(t *testing.T) {
		t.Parallel()

		r := NewRecommender(catalog)
		got, err := r.Recommend(ctx, nil, &Point{Latitude: 10.80, Longitude: 106.80})
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if got != "Barista Lab - 9 Hill St" {
			t.Fatalf("unexpected venue %q", got)
		}
	})

	t.Run("empty catalog yields the unknown label", func(t *testing.T) {
		t.Parallel()

		r := NewRecommender(StaticCatalog{})
		got, err := r.Recommend(ctx, nil, nil)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if got != Unknown {
			t.Fatalf("expected %q, got %q", Unknown, got)
		}
	})
}

func TestHaversine(t *testing.T) {
	t.Parallel()

	d := Haversine(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 0, Longitude: 1})
	if math.Abs(d-111.19) > 0.1 {
		t.Fatalf("unexpected distance %.3f", d)
	}
	if Haversine(Point{Latitude: 5, Longitude: 5}, Point{Latitude: 5, Longitude: 5}) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "venues.json")
	if err := os.WriteFile(path, []byte(`[{"name":"Park","address":"2 Green Ln","latitude":1.5,"longitude":2.5}]`), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	loaded, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Label() != "Park - 2 Green Ln" {
		t.Fatalf("unexpected catalog %#v", loaded)
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	defaults, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog failed: %v", err)
	}
	if len(defaults) != 15 {
		t.Fatalf("expected 15 built-in venues, got %d", len(defaults))
	}

	thuDuc := &Point{Latitude: 10.8488, Longitude: 106.7710}
	label, err := NewRecommender(defaults).Recommend(context.Background(), thuDuc, thuDuc)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if label != "Phuc Long - Vo Van Ngan - Thu Duc" {
		t.Fatalf("unexpected venue %q", label)
	}
}
