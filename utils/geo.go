package utils

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// DefaultGeofenceThresholdMeters is the allowed distance between a task's
// site and a worker's reported position before a warning is raised.
const DefaultGeofenceThresholdMeters = 100.0

type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

type GeofenceResult struct {
	DistanceMeters float64  `json:"distance_meters"`
	WithinRange    bool     `json:"within_range"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Distance returns the great-circle distance between two points in meters,
// using the Haversine formula. Symmetric, zero for identical points.
func Distance(a, b GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// VerifyGeofence classifies an observed position against a reference point.
// It never fails: out-of-range readings produce a warning carrying the
// rounded distance, not an error. GPS accuracy is not weighted; every
// reading is treated as equally trustworthy.
func VerifyGeofence(reference, observed GeoPoint, thresholdMeters float64) GeofenceResult {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultGeofenceThresholdMeters
	}

	d := Distance(reference, observed)
	result := GeofenceResult{
		DistanceMeters: d,
		WithinRange:    d <= thresholdMeters,
	}

	if !result.WithinRange {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"reported position is %d m from the task site (allowed %d m)",
			int(math.Round(d)), int(math.Round(thresholdMeters)),
		))
	}

	return result
}
