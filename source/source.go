/*
Package source adapts the device's continuous location stream into a
cancellable, strictly-ordered fix subscription.
*/
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
)

// ErrKind tags the failure modes a position source can report.
type ErrKind int

const (
	// PermissionDenied is fatal to the session: sharing must be
	// force-disabled and the error surfaced.
	PermissionDenied ErrKind = iota + 1
	// Unavailable is transient; the subscription continues.
	Unavailable
	// Timeout means the device missed the fix deadline. Non-fatal.
	Timeout
)

func (k ErrKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission-denied"
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// FixError is a structured fix failure from the device.
type FixError struct {
	Kind ErrKind
	Err  error
}

func (e *FixError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FixError) Unwrap() error { return e.Err }

// ErrSubscriptionActive is returned when a second subscription is requested
// while one is live. Exactly one subscription per enabled session.
var ErrSubscriptionActive = errors.New("fix subscription already active")

// Watcher is the device collaborator: a continuous-subscription API that
// yields fixes or typed errors until its context is cancelled.
type Watcher interface {
	WatchPosition(ctx context.Context, config params.SourceConfig) (<-chan fix.RawFix, <-chan *FixError, error)
}

// Subscription is one live fix stream. Fixes arrive in device-delivery
// order. Errs carries only fatal errors; transient ones are logged and the
// stream continues. Both channels close when the subscription ends.
type Subscription struct {
	Fixes <-chan fix.RawFix
	Errs  <-chan *FixError

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription. Idempotent. In-flight downstream work may
// complete but no further fixes are delivered.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Done closes when the pump has exited and the channels are closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Adapter wraps a Watcher with the session's error policy.
type Adapter struct {
	watcher Watcher
	config  params.SourceConfig
	logger  *slog.Logger

	// onPermissionDenied is the force-disable-sharing side effect,
	// invoked before the error is surfaced.
	onPermissionDenied func()

	mu     sync.Mutex
	active *Subscription
}

func NewAdapter(watcher Watcher, config *params.SourceConfig, onPermissionDenied func()) *Adapter {
	if config == nil {
		c := params.DefaultSourceConfig
		config = &c
	}
	return &Adapter{
		watcher:            watcher,
		config:             *config,
		logger:             slog.With("c", "source"),
		onPermissionDenied: onPermissionDenied,
	}
}

// Subscribe starts the device watch and returns the pumped subscription.
func (a *Adapter) Subscribe(ctx context.Context) (*Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		select {
		case <-a.active.done:
			// Previous subscription finished; fall through.
		default:
			return nil, ErrSubscriptionActive
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	devFixes, devErrs, err := a.watcher.WatchPosition(ctx, a.config)
	if err != nil {
		cancel()
		return nil, err
	}

	fixes := make(chan fix.RawFix)
	errs := make(chan *FixError, 1)
	sub := &Subscription{
		Fixes:  fixes,
		Errs:   errs,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.active = sub

	go a.pump(ctx, cancel, devFixes, devErrs, fixes, errs, sub.done)
	return sub, nil
}

func (a *Adapter) pump(ctx context.Context, cancel context.CancelFunc,
	devFixes <-chan fix.RawFix, devErrs <-chan *FixError,
	fixes chan<- fix.RawFix, errs chan<- *FixError, done chan struct{}) {

	defer func() {
		cancel()
		close(fixes)
		close(errs)
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-devFixes:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case fixes <- f:
			}
		case e, ok := <-devErrs:
			if !ok {
				return
			}
			switch e.Kind {
			case Timeout:
				a.logger.Debug("Fix deadline missed", "error", e)
			case Unavailable:
				a.logger.Warn("Position unavailable", "error", e)
			case PermissionDenied:
				a.logger.Error("Location permission denied, disabling sharing", "error", e)
				if a.onPermissionDenied != nil {
					a.onPermissionDenied()
				}
				errs <- e
				return
			default:
				a.logger.Warn("Unclassified fix error", "error", e)
			}
		}
	}
}
