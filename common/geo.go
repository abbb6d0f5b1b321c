package common

import (
	"math"
	"time"
)

// EarthRadiusM is the spherical earth radius used for all distance math here.
// The companion apps use the same constant, so server- and client-side
// distances agree. (orb/geo assumes a WGS84 radius; don't mix them.)
const EarthRadiusM = 6371000.0

// MPSToMPH converts meters-per-second to miles-per-hour.
const MPSToMPH = 2.237

// DistanceMeters returns the haversine great-circle distance between two
// lat/lon pairs, in meters. Total: degenerate and antipodal inputs return
// a finite value.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// DerivedSpeedMPH returns the speed implied by covering the distance between
// two points over the elapsed wall time, in mph. Zero or negative elapsed
// time yields 0. Plausibility is the caller's problem; see PlausibleSpeedMPH.
func DerivedSpeedMPH(lat1, lon1 float64, t1 time.Time, lat2, lon2 float64, t2 time.Time) float64 {
	elapsed := t2.Sub(t1).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return DistanceMeters(lat1, lon1, lat2, lon2) / elapsed * MPSToMPH
}

// PlausibleSpeedMPH reports whether a derived speed is believable for the
// elapsed interval, bounding GPS-jump artifacts. Anything over 150 mph is
// rejected outright; over 80 mph is rejected when the interval is under 5s.
func PlausibleSpeedMPH(speedMPH float64, elapsed time.Duration) bool {
	if speedMPH > 150 {
		return false
	}
	if speedMPH > 80 && elapsed < 5*time.Second {
		return false
	}
	return true
}
