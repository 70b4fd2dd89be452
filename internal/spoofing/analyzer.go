// Package spoofing implements the heuristic location-spoofing analyzer. It is
// pure: verdicts are a deterministic function of the sample, the history
// window and the platform flag, and are recomputed on demand, never cached.
package spoofing

import (
	"math"
	"strconv"
	"strings"

	"geosnap-service/internal/model"
)

const (
	// earthRadiusMeters is the sphere radius used for haversine distances.
	earthRadiusMeters = 6371000.0

	// maxPlausibleSpeed in m/s. Anything above 3600 km/h is impossible.
	maxPlausibleSpeed = 1000.0

	// minPlausibleAccuracy in meters. Real GPS fixes rarely claim better.
	minPlausibleAccuracy = 5.0

	// minCoordinateDecimals below which coordinates look hand-typed.
	minCoordinateDecimals = 4
)

// Reason strings, in evaluation order. The first triggered reason is what the
// client surfaces, so order is part of the contract.
const (
	ReasonHighAccuracy    = "Unusually high accuracy reported"
	ReasonMissingAltitude = "Missing altitude data on mobile device"
	ReasonImpossibleSpeed = "Impossible movement speed detected"
	ReasonRoundCoords     = "Suspiciously round coordinates"
	ReasonTestLocation    = "Known test location detected"
)

// referenceTestLat/Lon is a well-known default coordinate that location
// spoofers frequently leave in place.
const (
	referenceTestLat = 37.422
	referenceTestLon = -122.084
	referenceTestTol = 0.001
)

// Analyze runs the fixed check sequence against the current sample and up to
// the last 10 prior samples. Every check is evaluated; none short-circuits.
func Analyze(current model.LocationSample, history []model.LocationSample, platformIsMobile bool) model.SpoofingVerdict {
	reasons := []string{}

	if current.Accuracy < minPlausibleAccuracy {
		reasons = append(reasons, ReasonHighAccuracy)
	}

	if current.Altitude == nil && platformIsMobile {
		reasons = append(reasons, ReasonMissingAltitude)
	}

	if impossibleSpeed(history) {
		reasons = append(reasons, ReasonImpossibleSpeed)
	}

	if decimalDigits(current.Latitude) < minCoordinateDecimals ||
		decimalDigits(current.Longitude) < minCoordinateDecimals {
		reasons = append(reasons, ReasonRoundCoords)
	}

	if isKnownTestLocation(current.Latitude, current.Longitude) {
		reasons = append(reasons, ReasonTestLocation)
	}

	verdict := model.SpoofingVerdict{
		IsSuspicious: len(reasons) > 0,
		Reasons:      reasons,
		Confidence:   model.ConfidenceLow,
	}
	switch {
	case len(reasons) >= 3:
		verdict.Confidence = model.ConfidenceHigh
	case len(reasons) >= 1:
		verdict.Confidence = model.ConfidenceMedium
	}
	return verdict
}

// impossibleSpeed checks the last two history entries for a movement speed no
// vehicle reaches. A zero time delta counts as infinite speed only when the
// two fixes are actually apart.
func impossibleSpeed(history []model.LocationSample) bool {
	if len(history) < 2 {
		return false
	}

	prev := history[len(history)-2]
	last := history[len(history)-1]

	distance := Haversine(prev.Latitude, prev.Longitude, last.Latitude, last.Longitude)
	deltaSeconds := float64(last.Timestamp-prev.Timestamp) / 1000.0

	if deltaSeconds == 0 {
		return distance > 0
	}

	return distance/deltaSeconds > maxPlausibleSpeed
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// decimalDigits counts the digits after the decimal point in the shortest
// base-10 rendering of v.
func decimalDigits(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func isKnownTestLocation(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return true
	}
	return math.Abs(lat-referenceTestLat) < referenceTestTol &&
		math.Abs(lon-referenceTestLon) < referenceTestTol
}
