/*
Package infer turns raw position fixes into smoothed, classified motion state.
*/
package infer

import (
	"math"
	"time"

	"github.com/halocircle/guardd/common"
	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
)

type pathPoint struct {
	Time time.Time
	Pt   orb.Point
}

// Inferrer consumes raw fixes in device-delivery order and produces motion
// samples. It owns the speed and movement history windows. Not safe for
// concurrent Observe calls; each session drives exactly one Inferrer from
// one loop, which is what gives fix N+1 the histories as updated by fix N.
type Inferrer struct {
	config params.InferConfig

	speeds *common.RingBuffer[int]
	path   *common.RingBuffer[pathPoint]

	last     fix.RawFix
	hasLast  bool
	smoothed int
	booted   bool
}

func New(config *params.InferConfig) *Inferrer {
	if config == nil {
		c := params.DefaultInferConfig
		config = &c
	}
	return &Inferrer{
		config: *config,
		speeds: common.NewRingBuffer[int](config.SpeedWindow),
		path:   common.NewRingBuffer[pathPoint](config.MovementWindow),
	}
}

// Reset clears both history windows and the bootstrap state. Called when
// sharing toggles off; the clear is explicit, never implicit decay.
func (n *Inferrer) Reset() {
	n.speeds.Reset()
	n.path.Reset()
	n.last = fix.RawFix{}
	n.hasLast = false
	n.smoothed = 0
	n.booted = false
}

// Observe derives the motion sample for one fix. BatteryPct is left zero;
// the session fills it in from the battery estimator.
func (n *Inferrer) Observe(f fix.RawFix) motion.Sample {
	n.path.Add(pathPoint{Time: f.Time, Pt: f.Point()})

	n.observeSpeed(f)
	moving := n.detectMovement(f)

	// Preserved as shipped: the moving disjunct is absorbed by the speed
	// condition, so this reduces to smoothed > threshold. Movement was
	// probably meant to lower the speed bar, not to be ANDed away; the
	// raw signal is still reported on the sample.
	minSpeed := n.config.DrivingMinSpeedMPH
	isDriving := (moving || n.smoothed > minSpeed) && n.smoothed > minSpeed

	tier := motion.TierForAccuracy(f.AccuracyMeters)
	if !n.booted {
		tier = motion.TierForFirstFix(f.AccuracyMeters)
		n.booted = true
	}

	n.last = f
	n.hasLast = true

	return motion.Sample{
		Lat:            f.Lat,
		Lon:            f.Lon,
		SpeedMPH:       n.smoothed,
		IsDriving:      isDriving,
		Moving:         moving,
		AccuracyMeters: f.AccuracyMeters,
		HeadingDeg:     f.HeadingDeg,
		AltitudeMeters: f.AltitudeMeters,
		Tier:           tier,
		ObservedAt:     f.Time,
	}
}

// observeSpeed picks the candidate speed for the fix and folds it into the
// smoothing window. Device-reported speed wins when present; otherwise speed
// is derived from displacement, gated so high-rate fixes don't destabilize
// the window.
func (n *Inferrer) observeSpeed(f fix.RawFix) {
	if f.HasReportedSpeed() {
		n.smooth(common.Round(f.ReportedSpeedMPS * common.MPSToMPH))
		return
	}
	if !n.hasLast {
		n.smooth(0)
		return
	}
	elapsed := f.Time.Sub(n.last.Time)
	if elapsed < n.config.MinDeriveInterval {
		// Too soon to trust displacement; hold the previous smoothed speed.
		return
	}
	derived := common.DerivedSpeedMPH(n.last.Lat, n.last.Lon, n.last.Time, f.Lat, f.Lon, f.Time)
	if !common.PlausibleSpeedMPH(derived, elapsed) {
		// Not an error. GPS-jump artifact, normalized to 0.
		derived = 0
	}
	n.smooth(common.Round(derived))
}

// smooth appends a candidate and recomputes the linearly-weighted average:
// the i-th oldest entry weighs i, privileging the newest reading while
// damping single-sample spikes.
func (n *Inferrer) smooth(candidate int) {
	if candidate < 0 {
		candidate = 0
	}
	n.speeds.Add(candidate)
	var num, den float64
	for i, v := range n.speeds.Get() {
		w := float64(i + 1)
		num += float64(v) * w
		den += w
	}
	n.smoothed = common.Round(num / den)
}

// detectMovement sums pairwise distances across the recent movement window.
// The threshold scales with fix accuracy so a noisy receiver sitting still
// does not read as movement.
func (n *Inferrer) detectMovement(f fix.RawFix) bool {
	if n.path.Len() < 3 {
		return false
	}
	recent := make([]pathPoint, 0, n.path.Len())
	n.path.Scan(func(p pathPoint) bool {
		if f.Time.Sub(p.Time) <= n.config.MovementHorizon {
			recent = append(recent, p)
		}
		return true
	})
	if len(recent) < 2 {
		return false
	}
	dists := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		a, b := recent[i-1].Pt, recent[i].Pt
		dists = append(dists, common.DistanceMeters(a.Lat(), a.Lon(), b.Lat(), b.Lon()))
	}
	total, err := stats.Sum(dists)
	if err != nil {
		return false
	}
	threshold := math.Max(n.config.MovementFloorMeters,
		f.AccuracyMeters*n.config.MovementAccuracyFactor)
	return total > threshold
}
