// Package motion holds the derived per-fix motion sample and GPS quality tiers.
package motion

import (
	"time"

	"github.com/golang/geo/s2"
	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Tier grades the GPS accuracy of a fix.
type Tier int

const (
	TierUnknown Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	}
	return "unknown"
}

// TierForAccuracy is the steady-state tier policy.
func TierForAccuracy(accuracyMeters float64) Tier {
	switch {
	case accuracyMeters <= 3:
		return TierHigh
	case accuracyMeters <= 10:
		return TierMedium
	default:
		return TierLow
	}
}

// TierForFirstFix is the looser bootstrap policy for the first fix of a
// subscription, before the receiver has settled. Distinct from
// TierForAccuracy on purpose; both are product policy.
func TierForFirstFix(accuracyMeters float64) Tier {
	switch {
	case accuracyMeters <= 5:
		return TierHigh
	case accuracyMeters <= 20:
		return TierMedium
	default:
		return TierLow
	}
}

// Sample is the classified motion state derived from one RawFix. It is owned
// by the publisher for one publish cycle and superseded by the next sample;
// the store keeps only "latest".
type Sample struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	SpeedMPH       int       `json:"speedMph"`
	BatteryPct     int       `json:"batteryPct"`
	IsDriving      bool      `json:"isDriving"`
	Moving         bool      `json:"moving"`
	AccuracyMeters float64   `json:"accuracy"`
	HeadingDeg     float64   `json:"heading"`
	AltitudeMeters float64   `json:"altitude"`
	Tier           Tier      `json:"-"`
	ObservedAt     time.Time `json:"observedAt"`
}

func (s Sample) Point() orb.Point {
	return orb.Point{s.Lon, s.Lat}
}

// CellToken returns the s2 cell token for the sample at params.S2CellLevel.
func (s Sample) CellToken() string {
	ll := s2.LatLngFromDegrees(s.Lat, s.Lon)
	return s2.CellIDFromLatLng(ll).Parent(params.S2CellLevel).ToToken()
}

// Feature renders the sample as the user's current-location geojson record.
// Only keys present here participate in the store's merge-upsert; identity
// metadata written by other subsystems survives a publish.
func (s Sample) Feature(user fix.UserID) *geojson.Feature {
	f := geojson.NewFeature(s.Point())
	f.Properties = geojson.Properties{
		"User":       user.String(),
		"Speed":      s.SpeedMPH,
		"Battery":    s.BatteryPct,
		"IsDriving":  s.IsDriving,
		"Moving":     s.Moving,
		"Accuracy":   s.AccuracyMeters,
		"Heading":    s.HeadingDeg,
		"Elevation":  s.AltitudeMeters,
		"GPSQuality": s.Tier.String(),
		"CellToken":  s.CellToken(),
		"Time":       s.ObservedAt.Format(time.RFC3339),
		"UnixTime":   s.ObservedAt.Unix(),
	}
	return f
}
