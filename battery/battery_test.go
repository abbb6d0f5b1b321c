package battery

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

type sourceFunc func() (float64, error)

func (f sourceFunc) Level() (float64, error) { return f() }

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(42, 42))
}

func TestPercentFromSource(t *testing.T) {
	e := NewEstimator(sourceFunc(func() (float64, error) { return 0.954, nil }), seeded())
	if got := e.Percent(); got != 95 {
		t.Errorf("Percent() = %d, want 95", got)
	}
}

func TestPercentDrainModel(t *testing.T) {
	e := NewEstimator(nil, seeded())
	// 6 pm: 1080 minutes since midnight, base = 100 - floor(1080/14.4) = 25.
	e.now = func() time.Time {
		return time.Date(2024, 11, 18, 18, 0, 0, 0, time.UTC)
	}
	for i := 0; i < 100; i++ {
		got := e.Percent()
		if got < 20 || got > 30 {
			t.Fatalf("Percent() = %d, want 25 ± 5", got)
		}
	}
}

func TestPercentDrainModelClamped(t *testing.T) {
	e := NewEstimator(sourceFunc(func() (float64, error) { return 0, ErrUnavailable }), seeded())
	// Just before midnight the base runs negative; the clamp floors it at 15.
	e.now = func() time.Time {
		return time.Date(2024, 11, 18, 23, 59, 0, 0, time.UTC)
	}
	for i := 0; i < 100; i++ {
		if got := e.Percent(); got < 15 || got > 100 {
			t.Fatalf("Percent() = %d, out of [15,100]", got)
		}
	}

	// Just after midnight the jitter can push above 100; clamp ceils it.
	e.now = func() time.Time {
		return time.Date(2024, 11, 18, 0, 1, 0, 0, time.UTC)
	}
	for i := 0; i < 100; i++ {
		if got := e.Percent(); got < 15 || got > 100 {
			t.Fatalf("Percent() = %d, out of [15,100]", got)
		}
	}
}

func TestPercentErrorFallback(t *testing.T) {
	e := NewEstimator(sourceFunc(func() (float64, error) { return 0, errors.New("boom") }), seeded())
	for i := 0; i < 200; i++ {
		if got := e.Percent(); got < 50 || got > 90 {
			t.Fatalf("Percent() = %d, out of [50,90]", got)
		}
	}
}

func TestPercentDeterministicWithSeed(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 11, 18, 12, 0, 0, 0, time.UTC) }
	a := NewEstimator(nil, seeded())
	a.now = now
	b := NewEstimator(nil, seeded())
	b.now = now
	for i := 0; i < 20; i++ {
		if x, y := a.Percent(), b.Percent(); x != y {
			t.Fatalf("same seed diverged: %d != %d", x, y)
		}
	}
}
