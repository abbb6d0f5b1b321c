/*
Package reward maintains each user's safety score and token-reward ledger.

The engine consumes (speed, duration) observations at a bounded rate and is
the only writer of the reward state. Callers must not run RecordObservation
concurrently for one user; the 30-second observation guard upstream is the
mutual exclusion, not just a throttle.
*/
package reward

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
	"github.com/shopspring/decimal"
)

// State is one user's cumulative reward and safety-score ledger. Created at
// account creation, mutated only by the Engine, deleted only with the
// account.
type State struct {
	TotalReward         int64     `json:"totalReward"`
	WeeklyReward        int64     `json:"weeklyReward"`
	MonthlyReward       int64     `json:"monthlyReward"`
	SafetyScore         float64   `json:"safetyScore"`
	SpeedViolationCount int       `json:"speedViolationCount"`
	AverageSpeedMPH     float64   `json:"averageSpeedMph"`
	TotalDrivingMinutes float64   `json:"totalDrivingMinutes"`
	LastEvaluatedAt     time.Time `json:"lastEvaluatedAt"`
}

// NewState returns the account-creation defaults.
func NewState(now time.Time) *State {
	return &State{
		SafetyScore:     100,
		LastEvaluatedAt: now,
	}
}

// Store persists reward states. RewardState returns (nil, nil) for a user
// with no state yet.
type Store interface {
	RewardState(user fix.UserID) (*State, error)
	SaveRewardState(user fix.UserID, s *State) error
}

// Engine applies observations to reward states.
type Engine struct {
	store  Store
	config params.RewardConfig
	rules  []Rule
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, config *params.RewardConfig) *Engine {
	if config == nil {
		c := params.DefaultRewardConfig
		config = &c
	}
	return &Engine{
		store:  store,
		config: *config,
		rules:  DefaultRules(*config),
		logger: slog.With("c", "reward"),
		now:    time.Now,
	}
}

// RecordObservation folds one (speed, duration) observation into the user's
// state and persists it. durationMinutes must be non-negative. On
// persistence failure the observation is dropped, not retried; the next one
// supersedes it. Telemetry loss is acceptable, corruption is not.
func (e *Engine) RecordObservation(ctx context.Context, user fix.UserID, speedMPH, durationMinutes float64) (*State, error) {
	if durationMinutes < 0 {
		return nil, fmt.Errorf("negative duration: %v", durationMinutes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur, err := e.store.RewardState(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	var working State
	if cur != nil {
		working = *cur
	} else {
		working = *NewState(now)
	}

	// Calendar rollovers reset the working copy only; lifetime totals,
	// the weighted average, and driving minutes survive.
	if monthChanged(working.LastEvaluatedAt, now) {
		working.MonthlyReward = 0
		working.SpeedViolationCount = 0
	}
	if weekChanged(working.LastEvaluatedAt, now) {
		working.WeeklyReward = 0
	}

	newTotalMinutes := working.TotalDrivingMinutes + durationMinutes
	newAverage := speedMPH
	if newTotalMinutes > 0 {
		newAverage = (working.AverageSpeedMPH*working.TotalDrivingMinutes +
			speedMPH*durationMinutes) / newTotalMinutes
	}

	wholeMinutes := int64(math.Floor(durationMinutes))
	tokens, scoreDelta, violations := evaluate(e.rules, speedMPH, wholeMinutes)

	// Monthly aggregate adjustment, once enough driving has accumulated.
	if newTotalMinutes >= e.config.AggregateMinMinutes {
		if newAverage <= e.config.SafeSpeedMaxMPH {
			tokens += e.config.AggregateBonus
		} else if newAverage > e.config.CautionSpeedMaxMPH {
			tokens -= e.config.AggregatePenalty
		}
	}

	working.TotalReward = max(0, working.TotalReward+tokens)
	if tokens > 0 {
		// Negative deltas reduce only the lifetime total; the weekly and
		// monthly counters never decrease within a period.
		working.WeeklyReward += tokens
		working.MonthlyReward += tokens
	}
	working.SafetyScore = clampScore(
		decimal.NewFromFloat(working.SafetyScore).Add(scoreDelta))
	working.SpeedViolationCount += violations
	working.AverageSpeedMPH = newAverage
	working.TotalDrivingMinutes = newTotalMinutes
	working.LastEvaluatedAt = now

	if err := e.store.SaveRewardState(user, &working); err != nil {
		e.logger.Error("Reward state persist failed, observation dropped",
			"user", user, "error", err)
		return nil, err
	}
	return &working, nil
}

func monthChanged(a, b time.Time) bool {
	return a.Year() != b.Year() || a.Month() != b.Month()
}

func weekChanged(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay != by || aw != bw
}

func clampScore(d decimal.Decimal) float64 {
	if d.IsNegative() {
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	return d.InexactFloat64()
}
