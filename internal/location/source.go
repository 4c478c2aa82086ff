// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package location delivers position fixes from a device or feed. Every
// source hands out fixes through a Subscription that the caller removes
// when it stops listening.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/gps"
)

// ErrPermissionDenied is returned when the source refuses access to
// location data.
var ErrPermissionDenied = errors.New("location permission denied")

// WatchOptions throttle fix delivery. A fix is delivered only when at
// least TimeInterval has passed and the position moved at least
// DistanceInterval meters since the last delivered fix. Zero disables a
// check.
type WatchOptions struct {
	TimeInterval     time.Duration
	DistanceInterval float64 // meters
}

// DefaultWatchOptions delivers at most one fix every 2 s and 5 m.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{TimeInterval: 2 * time.Second, DistanceInterval: 5}
}

// Handler receives fixes. Calls for one subscription never overlap.
type Handler func(gps.Fix)

// Subscription is an active watch. Remove is safe to call more than once.
type Subscription interface {
	Remove()
}

// Source provides position fixes.
type Source interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (gps.Fix, error)
	Watch(ctx context.Context, opts WatchOptions, h Handler) (Subscription, error)
}

// gate applies WatchOptions to a stream of fixes.
type gate struct {
	opts WatchOptions
	now  func() time.Time

	mu   sync.Mutex
	last gps.Fix
	at   time.Time
	have bool
}

func newGate(opts WatchOptions, now func() time.Time) *gate {
	if now == nil {
		now = time.Now
	}
	return &gate{opts: opts, now: now}
}

// allow reports whether f passes the throttle and records it if so.
func (g *gate) allow(f gps.Fix) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	at := f.Time
	if at.IsZero() {
		at = g.now()
	}
	if g.have {
		if g.opts.TimeInterval > 0 && at.Sub(g.at) < g.opts.TimeInterval {
			return false
		}
		if g.opts.DistanceInterval > 0 && geo.DistanceMeters(g.last.Point(), f.Point()) < g.opts.DistanceInterval {
			return false
		}
	}
	g.last, g.at, g.have = f, at, true
	return true
}

// cancelSubscription removes a watch by cancelling its context and then
// running an optional cleanup. It waits for the delivery goroutine, if
// any, so no handler call happens after Remove returns.
type cancelSubscription struct {
	once    sync.Once
	cancel  context.CancelFunc
	cleanup func()
	done    <-chan struct{}
}

func (s *cancelSubscription) Remove() {
	s.once.Do(func() {
		s.cancel()
		if s.cleanup != nil {
			s.cleanup()
		}
		if s.done != nil {
			<-s.done
		}
	})
}

// Done is closed once the delivery goroutine exits, either after Remove
// or because the source ran out of fixes. It is nil when there is none.
func (s *cancelSubscription) Done() <-chan struct{} {
	return s.done
}

// Done returns a channel closed when sub can deliver no more fixes. It
// returns nil, which blocks forever, for subscriptions that only end on
// Remove.
func Done(sub Subscription) <-chan struct{} {
	if d, ok := sub.(interface{ Done() <-chan struct{} }); ok {
		return d.Done()
	}
	return nil
}
