package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/source"
	"github.com/halocircle/guardd/state"
	"github.com/halocircle/guardd/types/fix"
)

type fixedBattery float64

func (b fixedBattery) Level() (float64, error) { return float64(b), nil }

// fakeWatcher hands the test direct control of the device channels.
type fakeWatcher struct {
	fixes chan fix.RawFix
	errs  chan *source.FixError
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		fixes: make(chan fix.RawFix),
		errs:  make(chan *source.FixError),
	}
}

func (w *fakeWatcher) WatchPosition(ctx context.Context, _ params.SourceConfig) (<-chan fix.RawFix, <-chan *source.FixError, error) {
	return w.fixes, w.errs, nil
}

var t0 = time.Unix(1731952467, 0)

func drivingFix(n int, gap time.Duration) fix.RawFix {
	return fix.RawFix{
		Lat: 46.9 + float64(n)*0.01, Lon: -114.1,
		AccuracyMeters:   3,
		HeadingDeg:       0,
		AltitudeMeters:   980,
		ReportedSpeedMPS: 26.8224, // 60 mph
		Time:             t0.Add(time.Duration(n) * gap),
	}
}

func at(f fix.RawFix, t time.Time) fix.RawFix {
	f.Time = t
	return f
}

func newTestSession(t *testing.T, user fix.UserID, opts Options) (*Session, *state.Store) {
	t.Helper()
	store := state.NewStore(t.TempDir())
	t.Cleanup(func() { store.Close() })
	opts.Store = store
	opts.Battery = fixedBattery(0.8)
	return NewSession(user, opts), store
}

func TestHandleFixPublishes(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	s.HandleFix(context.Background(), drivingFix(0, 0))

	f, err := store.LastKnown("rye")
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("no current-location record")
	}
	if f.Properties.MustInt("Speed") != 60 {
		t.Errorf("Speed = %v, want 60", f.Properties["Speed"])
	}
	if f.Properties.MustInt("Battery") != 80 {
		t.Errorf("Battery = %v, want 80", f.Properties["Battery"])
	}
	if !f.Properties.MustBool("IsDriving") {
		t.Errorf("IsDriving = %v, want true", f.Properties["IsDriving"])
	}
}

func TestHandleFixDropsDuplicates(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	ctx := context.Background()

	f := drivingFix(0, 0)
	s.HandleFix(ctx, f)
	s.HandleFix(ctx, f) // exact duplicate, must not re-enter the windows
	s.HandleFix(ctx, at(drivingFix(1, 0), t0.Add(2*time.Minute)))

	// Two distinct fixes two minutes apart produce exactly one reward
	// observation billing the full gap.
	rs, err := store.RewardState("rye")
	if err != nil {
		t.Fatal(err)
	}
	if rs == nil {
		t.Fatal("no reward state written")
	}
	if rs.TotalDrivingMinutes != 2 {
		t.Errorf("totalDrivingMinutes = %v, want 2", rs.TotalDrivingMinutes)
	}
}

func TestRewardObservationRateGated(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	ctx := context.Background()

	// Three driving fixes two minutes apart. The first sets the baseline;
	// each later one clears the 30s guard and bills 2 minutes at 60 mph.
	for n := 0; n < 3; n++ {
		s.HandleFix(ctx, drivingFix(n, 2*time.Minute))
	}

	rs, err := store.RewardState("rye")
	if err != nil {
		t.Fatal(err)
	}
	if rs == nil {
		t.Fatal("no reward state written")
	}
	if rs.TotalReward != 32 { // 2 observations * 2 min * 8 tokens
		t.Errorf("totalReward = %d, want 32", rs.TotalReward)
	}
	if rs.TotalDrivingMinutes != 4 {
		t.Errorf("totalDrivingMinutes = %v, want 4", rs.TotalDrivingMinutes)
	}
	if rs.AverageSpeedMPH != 60 {
		t.Errorf("averageSpeed = %v, want 60", rs.AverageSpeedMPH)
	}
}

func TestRewardGuardHoldsUnderRapidFixes(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	ctx := context.Background()

	// Fixes every 10 seconds for 100 seconds. The guard admits at most
	// one observation per 30s, so three reach the engine, each billing
	// half a minute.
	for n := 0; n < 11; n++ {
		s.HandleFix(ctx, drivingFix(n, 10*time.Second))
	}
	rs, err := store.RewardState("rye")
	if err != nil {
		t.Fatal(err)
	}
	if rs == nil {
		t.Fatal("no reward state written")
	}
	if rs.TotalDrivingMinutes != 1.5 {
		t.Errorf("totalDrivingMinutes = %v, want 1.5", rs.TotalDrivingMinutes)
	}
	if rs.TotalReward != 0 {
		t.Errorf("totalReward = %d, want 0 (sub-minute observations)", rs.TotalReward)
	}
}

func TestStationaryResetsObservationBaseline(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	ctx := context.Background()

	// Drive, park for an hour, drive again. The idle hour must not be
	// billed as driving time.
	s.HandleFix(ctx, drivingFix(0, 0))
	for i := 0; i < 5; i++ {
		s.HandleFix(ctx, fix.RawFix{
			Lat: 46.9, Lon: -114.1, AccuracyMeters: 3,
			HeadingDeg: -1, ReportedSpeedMPS: 0,
			Time: t0.Add(time.Minute + time.Duration(i)*10*time.Second),
		})
	}
	s.HandleFix(ctx, at(drivingFix(0, 0), t0.Add(time.Hour)))
	s.HandleFix(ctx, at(drivingFix(1, 0), t0.Add(time.Hour+2*time.Minute)))

	rs, err := store.RewardState("rye")
	if err != nil {
		t.Fatal(err)
	}
	if rs == nil {
		t.Fatal("no reward state written")
	}
	if rs.TotalDrivingMinutes > 5 {
		t.Errorf("idle gap billed as driving: %v minutes", rs.TotalDrivingMinutes)
	}
}

func TestEnableSharingDeliversFixes(t *testing.T) {
	w := newFakeWatcher()
	s, store := newTestSession(t, "rye", Options{Watcher: w})
	ctx := context.Background()

	if err := s.EnableSharing(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.EnableSharing(ctx); !errors.Is(err, ErrSharingEnabled) {
		t.Fatalf("second enable: err = %v, want ErrSharingEnabled", err)
	}

	w.fixes <- drivingFix(0, 0)
	waitFor(t, func() bool {
		f, err := store.LastKnown("rye")
		return err == nil && f != nil
	})

	s.DisableSharing()
	if s.Sharing() {
		t.Fatal("still sharing after disable")
	}
}

func TestPermissionDeniedForcesSharingOff(t *testing.T) {
	w := newFakeWatcher()
	s, _ := newTestSession(t, "rye", Options{Watcher: w})

	if err := s.EnableSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.errs <- &source.FixError{Kind: source.PermissionDenied, Err: errors.New("user revoked access")}

	waitFor(t, func() bool { return !s.Sharing() })
	e := s.LastError()
	if e == nil || e.Kind != source.PermissionDenied {
		t.Fatalf("LastError = %v, want permission-denied", e)
	}

	// The session is reusable after the failure.
	if err := s.EnableSharing(context.Background()); err != nil {
		t.Fatalf("re-enable after permission failure: %v", err)
	}
	if s.LastError() != nil {
		t.Error("LastError not cleared on re-enable")
	}
	s.DisableSharing()
}

func TestDisableSharingClearsHistories(t *testing.T) {
	s, store := newTestSession(t, "rye", Options{})
	ctx := context.Background()

	if err := s.EnableSharing(ctx); err != nil {
		t.Fatal(err)
	}
	s.HandleFix(ctx, drivingFix(0, 0))
	s.HandleFix(ctx, drivingFix(1, 10*time.Second))
	s.DisableSharing()

	// After the reset the next fix is a first fix again: accuracy 15 m
	// grades medium under the first-fix policy, low under steady-state.
	if err := s.EnableSharing(ctx); err != nil {
		t.Fatal(err)
	}
	f := drivingFix(2, 10*time.Second)
	f.AccuracyMeters = 15
	s.HandleFix(ctx, f)

	rec, err := store.LastKnown("rye")
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Properties.MustString("GPSQuality"); got != "medium" {
		t.Errorf("GPSQuality = %q, want %q (first-fix grading after reset)", got, "medium")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
