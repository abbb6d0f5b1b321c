package infer

import (
	"testing"
	"time"

	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
)

var t0 = time.Unix(1731952467, 0)

// fixAt builds a fix with no reported speed or heading.
func fixAt(lat, lon float64, accuracy float64, at time.Time) fix.RawFix {
	return fix.RawFix{
		Lat: lat, Lon: lon,
		AccuracyMeters:   accuracy,
		HeadingDeg:       -1,
		ReportedSpeedMPS: -1,
		Time:             at,
	}
}

func reporting(f fix.RawFix, mps float64) fix.RawFix {
	f.ReportedSpeedMPS = mps
	return f
}

func TestSmoothingIdempotentUnderConstantInput(t *testing.T) {
	n := New(nil)
	var s motion.Sample
	for i := 0; i < 8; i++ {
		// 13.4112 m/s is 30 mph.
		f := reporting(fixAt(46.9, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 13.4112)
		s = n.Observe(f)
	}
	if s.SpeedMPH != 30 {
		t.Errorf("smoothed = %d, want 30", s.SpeedMPH)
	}
}

func TestHistoryCaps(t *testing.T) {
	n := New(nil)
	for i := 0; i < 50; i++ {
		f := reporting(fixAt(46.9, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 5)
		n.Observe(f)
	}
	if n.speeds.Len() > 5 {
		t.Errorf("speed history len = %d, cap is 5", n.speeds.Len())
	}
	if n.path.Len() > 10 {
		t.Errorf("movement history len = %d, cap is 10", n.path.Len())
	}
}

func TestSmoothingDampsSpike(t *testing.T) {
	n := New(nil)
	for i := 0; i < 5; i++ {
		n.Observe(reporting(fixAt(46.9, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 13.4112))
	}
	// One wild reading of 60 mph (26.8224 m/s) among steady 30s.
	s := n.Observe(reporting(fixAt(46.9, -114.1, 3, t0.Add(50*time.Second)), 26.8224))
	if s.SpeedMPH <= 30 || s.SpeedMPH >= 60 {
		t.Errorf("smoothed = %d, want between 30 and 60", s.SpeedMPH)
	}
}

func TestImplausibleDerivedSpeedNormalizedToZero(t *testing.T) {
	// Two fixes 1 second apart implying ~200 mph must smooth to 0, not 200.
	n := New(nil)
	s := n.Observe(fixAt(46.9, -114.1, 3, t0))
	if s.SpeedMPH != 0 {
		t.Fatalf("first fix smoothed = %d, want 0", s.SpeedMPH)
	}
	// ~90 m in 1s is ~200 mph; under the derive gate, so previous speed holds.
	s = n.Observe(fixAt(46.9008, -114.1, 3, t0.Add(time.Second)))
	if s.SpeedMPH != 0 {
		t.Errorf("1s jump smoothed = %d, want 0", s.SpeedMPH)
	}
	// ~270 m in 3s is also ~200 mph; past the gate, rejected as implausible.
	s = n.Observe(fixAt(46.9032, -114.1, 3, t0.Add(4*time.Second)))
	if s.SpeedMPH != 0 {
		t.Errorf("teleport smoothed = %d, want 0", s.SpeedMPH)
	}
}

func TestDerivedSpeedUsedWhenNoReportedSpeed(t *testing.T) {
	n := New(nil)
	n.Observe(fixAt(0, 0, 3, t0))
	// 0.001 deg along the equator is ~111 m; over 10s that's ~24.9 mph.
	s := n.Observe(fixAt(0, 0.001, 3, t0.Add(10*time.Second)))
	// Window is [0, 25] weighted 1:2, so ~17.
	if s.SpeedMPH < 15 || s.SpeedMPH > 18 {
		t.Errorf("smoothed = %d, want ~17", s.SpeedMPH)
	}
}

func TestMovementDetection(t *testing.T) {
	n := New(nil)
	var s motion.Sample
	// Walking north, ~111 m between fixes, well past max(5, 2*accuracy)=10.
	for i := 0; i < 4; i++ {
		s = n.Observe(reporting(fixAt(46.9+float64(i)*0.001, -114.1, 5, t0.Add(time.Duration(i)*10*time.Second)), 1.5))
	}
	if !s.Moving {
		t.Error("spread fixes should detect movement")
	}

	n.Reset()
	// Parked: identical coordinates.
	for i := 0; i < 4; i++ {
		s = n.Observe(reporting(fixAt(46.9, -114.1, 5, t0.Add(time.Duration(i)*10*time.Second)), 0))
	}
	if s.Moving {
		t.Error("identical fixes should not detect movement")
	}
	if s.IsDriving {
		t.Error("stationary zero-speed should never classify as driving")
	}
}

func TestMovementRequiresThreeEntries(t *testing.T) {
	n := New(nil)
	s := n.Observe(fixAt(46.9, -114.1, 5, t0))
	if s.Moving {
		t.Error("one entry cannot be movement")
	}
	s = n.Observe(fixAt(46.91, -114.1, 5, t0.Add(10*time.Second)))
	if s.Moving {
		t.Error("two entries cannot be movement")
	}
}

func TestDrivingClassification(t *testing.T) {
	n := New(nil)
	var s motion.Sample
	for i := 0; i < 5; i++ {
		s = n.Observe(reporting(fixAt(46.9+float64(i)*0.003, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 13.4112))
	}
	if !s.IsDriving {
		t.Error("30 mph with movement should classify as driving")
	}

	// Movement noise at near-zero smoothed speed stays stationary:
	// the speed condition dominates the formula.
	n.Reset()
	for i := 0; i < 5; i++ {
		s = n.Observe(reporting(fixAt(46.9+float64(i)*0.001, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 0.5))
	}
	if s.IsDriving {
		t.Error("~1 mph should not classify as driving even while moving")
	}
}

func TestBootstrapTierPolicy(t *testing.T) {
	n := New(nil)
	s := n.Observe(fixAt(46.9, -114.1, 4, t0))
	if s.Tier != motion.TierHigh {
		t.Errorf("first fix at 4m = %v, want high (bootstrap policy)", s.Tier)
	}
	s = n.Observe(fixAt(46.9, -114.1, 4, t0.Add(10*time.Second)))
	if s.Tier != motion.TierMedium {
		t.Errorf("steady fix at 4m = %v, want medium", s.Tier)
	}

	// Reset returns to the bootstrap policy.
	n.Reset()
	s = n.Observe(fixAt(46.9, -114.1, 15, t0.Add(20*time.Second)))
	if s.Tier != motion.TierMedium {
		t.Errorf("first fix at 15m after reset = %v, want medium (bootstrap policy)", s.Tier)
	}
}

func TestHoldSmoothedSpeedOnRapidFixes(t *testing.T) {
	n := New(nil)
	for i := 0; i < 5; i++ {
		n.Observe(reporting(fixAt(46.9, -114.1, 3, t0.Add(time.Duration(i)*10*time.Second)), 13.4112))
	}
	before := n.smoothed
	// A rapid fix without reported speed holds the window steady.
	s := n.Observe(fixAt(46.9001, -114.1, 3, t0.Add(41*time.Second)))
	if s.SpeedMPH != before {
		t.Errorf("rapid fix changed smoothed speed %d -> %d", before, s.SpeedMPH)
	}
}
