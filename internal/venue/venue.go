// Package venue recommends a meeting place for two participants.
package venue

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Unknown is the venue label used when no catalog entry can be chosen.
const Unknown = "TBD"

const earthRadiusKm = 6371.0

// Venue is a catalog entry.
type Venue struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Label formats the venue the way bookings display it.
func (v Venue) Label() string {
	if strings.TrimSpace(v.Address) == "" {
		return v.Name
	}
	return v.Name + " - " + v.Address
}

// Point is a geographic coordinate in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Catalog lists candidate venues.
type Catalog interface {
	Venues(ctx context.Context) ([]Venue, error)
}

// StaticCatalog is an in-memory catalog.
type StaticCatalog []Venue

// Venues implements Catalog.
func (c StaticCatalog) Venues(context.Context) ([]Venue, error) {
	out := make([]Venue, len(c))
	copy(out, c)
	return out, nil
}

//go:embed data/venues.json
var defaultCatalog []byte

// LoadCatalog reads a JSON array of venues from path.
func LoadCatalog(path string) (StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("venue: read catalog: %w", err)
	}
	return decodeCatalog(data)
}

// DefaultCatalog returns the built-in catalog used when no file is configured.
func DefaultCatalog() (StaticCatalog, error) {
	return decodeCatalog(defaultCatalog)
}

func decodeCatalog(data []byte) (StaticCatalog, error) {
	var venues []Venue
	if err := json.Unmarshal(data, &venues); err != nil {
		return nil, fmt.Errorf("venue: decode catalog: %w", err)
	}
	return StaticCatalog(venues), nil
}

// Recommender picks the catalog venue nearest to the midpoint of two participants.
type Recommender struct {
	catalog Catalog
}

// NewRecommender constructs a recommender over catalog. A nil catalog always yields Unknown.
func NewRecommender(catalog Catalog) *Recommender {
	return &Recommender{catalog: catalog}
}

// Recommend returns the label of the chosen venue. When either location is
// unknown the first venue in name order is used; an empty catalog yields Unknown.
func (r *Recommender) Recommend(ctx context.Context, a, b *Point) (string, error) {
	if r == nil || r.catalog == nil {
		return Unknown, nil
	}
	venues, err := r.catalog.Venues(ctx)
	if err != nil {
		return "", err
	}
	if len(venues) == 0 {
		return Unknown, nil
	}
	sort.SliceStable(venues, func(i, j int) bool { return venues[i].Name < venues[j].Name })

	if a == nil || b == nil {
		return venues[0].Label(), nil
	}

	mid := Midpoint(*a, *b)
	best := venues[0]
	bestDistance := math.Inf(1)
	for _, v := range venues {
		d := Haversine(mid, Point{Latitude: v.Latitude, Longitude: v.Longitude})
		if d < bestDistance {
			best, bestDistance = v, d
		}
	}
	return best.Label(), nil
}

// Midpoint returns the arithmetic midpoint of two coordinates.
func Midpoint(a, b Point) Point {
	return Point{
		Latitude:  (a.Latitude + b.Latitude) / 2,
		Longitude: (a.Longitude + b.Longitude) / 2,
	}
}

// Haversine returns the great-circle distance between two points in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
