// Package geo computes great-circle distances and proximity verdicts between a customer and a vendor.
package geo

import (
	"math"

	"github.com/chris/trustline/pkg/models"
)

const (
	// EarthRadiusKm is the IUGG mean Earth radius.
	EarthRadiusKm = 6371.0088

	// DefaultThresholdKm is the geofence radius a customer must be within.
	DefaultThresholdKm = 0.5
)

// Proximity is the outcome of a proximity check.
type Proximity struct {
	Verified   bool    `json:"verified"`
	DistanceKm float64 `json:"distance_km"`
	Reason     string  `json:"reason"`
}

// DistanceKm returns the haversine distance between a and b in kilometers.
func DistanceKm(a, b models.Coordinate) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h marginally outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// VerifyProximity checks whether customer is within thresholdKm of vendor.
// A nil coordinate yields an unverified result with a reason instead of an error.
// A non-positive threshold falls back to DefaultThresholdKm.
func VerifyProximity(customer, vendor *models.Coordinate, thresholdKm float64) Proximity {
	if thresholdKm <= 0 {
		thresholdKm = DefaultThresholdKm
	}
	switch {
	case customer == nil:
		return Proximity{Reason: "customer location missing"}
	case vendor == nil:
		return Proximity{Reason: "vendor location missing"}
	case !Valid(*customer):
		return Proximity{Reason: "customer location out of range"}
	case !Valid(*vendor):
		return Proximity{Reason: "vendor location out of range"}
	}

	d := DistanceKm(*customer, *vendor)
	if d <= thresholdKm {
		return Proximity{Verified: true, DistanceKm: d, Reason: "location verified"}
	}
	return Proximity{DistanceKm: d, Reason: "too far from vendor"}
}

// Valid reports whether c is a finite coordinate within WGS84 bounds.
func Valid(c models.Coordinate) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
