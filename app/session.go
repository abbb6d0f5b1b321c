/*
Package app runs one event loop per user session: fixes in, motion samples
and reward observations out. All derived state for a session is owned by its
loop; there is no parallel derivation, only cooperative interleaving.
*/
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/halocircle/guardd/battery"
	"github.com/halocircle/guardd/events"
	"github.com/halocircle/guardd/geo/infer"
	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/publisher"
	"github.com/halocircle/guardd/reward"
	"github.com/halocircle/guardd/source"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
)

var ErrSharingEnabled = errors.New("sharing already enabled")

// Store is the durable collaborator a session needs: current-location
// merge-upsert plus the reward ledger. *state.Store satisfies it.
type Store interface {
	publisher.Store
	reward.Store
}

// Options wires a session. Watcher may be nil for ingest-only sessions
// (HTTP populate, replay) that are fed via HandleFix instead of a device
// subscription.
type Options struct {
	Config  *params.Config
	Watcher source.Watcher
	Battery battery.Source
	Store   Store
}

// Session is the per-user actor. One logical event loop: fix N+1 always
// sees the histories as updated by fix N.
type Session struct {
	User fix.UserID

	config    params.Config
	adapter   *source.Adapter
	inferrer  *infer.Inferrer
	estimator *battery.Estimator
	publisher *publisher.Publisher
	rewards   *reward.Engine
	dedupe    func(fix.RawFix) bool
	logger    *slog.Logger

	mu              sync.Mutex
	sharing         bool
	sub             *source.Subscription
	cancel          context.CancelFunc
	lastObservation time.Time
	lastErr         *source.FixError
}

func NewSession(user fix.UserID, opts Options) *Session {
	config := params.Config{
		SourceConfig: params.DefaultSourceConfig,
		InferConfig:  params.DefaultInferConfig,
		RewardConfig: params.DefaultRewardConfig,
	}
	if opts.Config != nil {
		config = *opts.Config
	}
	s := &Session{
		User:      user,
		config:    config,
		inferrer:  infer.New(&config.InferConfig),
		estimator: battery.NewEstimator(opts.Battery, nil),
		publisher: publisher.New(opts.Store),
		rewards:   reward.NewEngine(opts.Store, &config.RewardConfig),
		dedupe:    fix.NewDedupePassLRUFunc(),
		logger:    slog.With("c", "session", "user", user),
	}
	if opts.Watcher != nil {
		s.adapter = source.NewAdapter(opts.Watcher, &config.SourceConfig, nil)
	}
	return s
}

// EnableSharing starts the device subscription and its loop. Exactly one
// active subscription per enabled session.
func (s *Session) EnableSharing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sharing {
		return ErrSharingEnabled
	}
	if s.adapter == nil {
		// Ingest-only session: sharing is just a flag.
		s.sharing = true
		s.lastErr = nil
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.adapter.Subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}
	s.sharing = true
	s.lastErr = nil
	s.sub = sub
	s.cancel = cancel
	go s.run(ctx, sub)
	return nil
}

// DisableSharing cancels the subscription and clears the history windows.
// In-flight publish or reward work completes; nothing is retried after.
func (s *Session) DisableSharing() {
	s.mu.Lock()
	if !s.sharing {
		s.mu.Unlock()
		return
	}
	s.sharing = false
	sub, cancel := s.sub, s.cancel
	s.sub = nil
	s.cancel = nil
	s.inferrer.Reset()
	s.lastObservation = time.Time{}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		<-sub.Done()
	}
}

func (s *Session) Sharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

// LastError returns the fatal fix error that ended the last subscription,
// if any.
func (s *Session) LastError() *source.FixError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) run(ctx context.Context, sub *source.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sub.Fixes:
			if !ok {
				return
			}
			s.HandleFix(ctx, f)
		case e, ok := <-sub.Errs:
			if !ok {
				return
			}
			// Only fatal errors surface here; force-disable and record.
			s.logger.Error("Subscription ended", "error", e)
			s.forceDisable(e)
			return
		}
	}
}

// forceDisable is DisableSharing minus waiting on the loop, since it runs
// on the loop.
func (s *Session) forceDisable(e *source.FixError) {
	s.mu.Lock()
	s.sharing = false
	cancel := s.cancel
	s.sub = nil
	s.cancel = nil
	s.lastErr = e
	s.inferrer.Reset()
	s.lastObservation = time.Time{}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HandleFix processes one fix end to end: dedupe, infer, battery, publish,
// and a rate-gated reward observation. Safe for external callers (HTTP
// populate, replay); the session mutex keeps fix handling serial.
func (s *Session) HandleFix(ctx context.Context, f fix.RawFix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dedupe(f) {
		return
	}

	sample := s.inferrer.Observe(f)
	sample.BatteryPct = s.estimator.Percent()

	s.publisher.Publish(s.User, sample)
	s.maybeRecordObservation(ctx, sample)
}

// maybeRecordObservation enforces the observation interval guard. The guard
// is the engine's mutual exclusion for this user, not merely a throttle.
func (s *Session) maybeRecordObservation(ctx context.Context, sample motion.Sample) {
	if !sample.IsDriving {
		// Not driving; restart the measurement window so a later drive
		// doesn't bill the idle gap as driving time.
		s.lastObservation = time.Time{}
		return
	}
	now := sample.ObservedAt
	if s.lastObservation.IsZero() {
		s.lastObservation = now
		return
	}
	elapsed := now.Sub(s.lastObservation)
	if elapsed < s.config.MinObservationInterval {
		return
	}
	s.lastObservation = now

	state, err := s.rewards.RecordObservation(ctx, s.User,
		float64(sample.SpeedMPH), elapsed.Minutes())
	if err != nil {
		// Already logged by the engine; the observation is dropped and the
		// next one supersedes it.
		return
	}
	events.RewardUpdatedFeed.Send(events.RewardUpdated{User: s.User, State: *state})
}
