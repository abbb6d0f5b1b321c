// Package fix holds the raw device position report and its ingest helpers.
package fix

import (
	"time"

	"github.com/paulmach/orb"
)

// UserID identifies one user of the companion app. Opaque; minted elsewhere.
type UserID string

func (id UserID) String() string { return string(id) }

// RawFix is one raw device position report. Ephemeral: it is consumed by
// inference and never persisted directly.
//
// Heading, altitude and reported speed follow the device convention of
// negative-means-unavailable.
type RawFix struct {
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	AccuracyMeters   float64   `json:"accuracy"`
	HeadingDeg       float64   `json:"heading"`
	AltitudeMeters   float64   `json:"altitude"`
	ReportedSpeedMPS float64   `json:"speed"`
	Time             time.Time `json:"time"`
}

func (f RawFix) Point() orb.Point {
	return orb.Point{f.Lon, f.Lat}
}

func (f RawFix) HasReportedSpeed() bool {
	return f.ReportedSpeedMPS >= 0
}

func (f RawFix) HasHeading() bool {
	return f.HeadingDeg >= 0
}

// IsZero is useful for dealing with zero-value fixes.
func (f RawFix) IsZero() bool {
	return f.Time.IsZero() && f.Lat == 0 && f.Lon == 0
}
