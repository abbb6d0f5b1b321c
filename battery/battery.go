// Package battery estimates the device battery percentage for display.
// This is a display heuristic, not power management; the only promises are
// the stated bounds.
package battery

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/halocircle/guardd/common"
)

// ErrUnavailable is returned by a Source that has no battery level to give.
// It selects the drain-model fallback rather than the error fallback.
var ErrUnavailable = errors.New("battery level unavailable")

// Source yields a fractional charge level in [0,1], or ErrUnavailable,
// or any other error for a failed read.
type Source interface {
	Level() (float64, error)
}

// drainMinutesPerPct paces the fallback model at one percent per 14.4
// minutes, i.e. a full charge lasting a 24-hour day.
const drainMinutesPerPct = 14.4

const (
	fallbackFloor = 15
	fallbackCeil  = 100

	errorFloor = 50
	errorCeil  = 90
)

// Estimator returns a best-effort battery percentage. The random source is
// injected so the jittered fallbacks are reproducible in tests.
type Estimator struct {
	src Source
	rng *rand.Rand
	now func() time.Time
}

func NewEstimator(src Source, rng *rand.Rand) *Estimator {
	if rng == nil {
		n := time.Now().UnixNano()
		rng = rand.New(rand.NewPCG(uint64(n), uint64(n>>32)))
	}
	return &Estimator{src: src, rng: rng, now: time.Now}
}

// Percent returns the battery percentage. A working source wins; an
// unavailable one falls back to a time-of-day drain model jittered ±5 and
// clamped to [15,100]; any other failure yields a uniform value in [50,90].
func (e *Estimator) Percent() int {
	if e.src != nil {
		level, err := e.src.Level()
		switch {
		case err == nil:
			return common.Round(level * 100)
		case errors.Is(err, ErrUnavailable):
			// fall through to the drain model
		default:
			return errorFloor + e.rng.IntN(errorCeil-errorFloor+1)
		}
	}
	return e.drainModel()
}

func (e *Estimator) drainModel() int {
	now := e.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	minutes := now.Sub(midnight).Minutes()
	base := 100 - int(math.Floor(minutes/drainMinutesPerPct))
	jitter := e.rng.IntN(11) - 5
	return common.ClampInt(base+jitter, fallbackFloor, fallbackCeil)
}
