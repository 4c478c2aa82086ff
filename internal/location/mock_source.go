// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/route"
)

// MockSource replays a route: it walks each leg in StepsPerLeg straight
// steps and emits one fix per Interval until it reaches the destination.
type MockSource struct {
	Interval time.Duration
	Deny     bool // every call fails with ErrPermissionDenied

	path []geo.Point
	now  func() time.Time

	mu   sync.Mutex
	next int
}

// NewMockSource creates a mock source moving along r.
func NewMockSource(r *route.Route, stepsPerLeg int, interval time.Duration) *MockSource {
	return &MockSource{
		Interval: interval,
		path:     Interpolate(r.Path(), stepsPerLeg),
		now:      time.Now,
	}
}

// Interpolate splits each segment of path into steps equal parts. The
// result starts at path[0] and ends at the last point.
func Interpolate(path []geo.Point, steps int) []geo.Point {
	if len(path) < 2 || steps < 1 {
		out := make([]geo.Point, len(path))
		copy(out, path)
		return out
	}
	out := make([]geo.Point, 0, (len(path)-1)*steps+1)
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		for s := 0; s < steps; s++ {
			f := float64(s) / float64(steps)
			out = append(out, geo.Point{
				Latitude:  a.Latitude + (b.Latitude-a.Latitude)*f,
				Longitude: a.Longitude + (b.Longitude-a.Longitude)*f,
			})
		}
	}
	return append(out, path[len(path)-1])
}

func (m *MockSource) RequestPermission(context.Context) error {
	if m.Deny {
		return fmt.Errorf("%w: mock source configured to deny", ErrPermissionDenied)
	}
	return nil
}

// CurrentPosition returns the point the replay is at without advancing.
func (m *MockSource) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	if err := m.RequestPermission(ctx); err != nil {
		return gps.Fix{}, err
	}
	if len(m.path) == 0 {
		return gps.Fix{}, fmt.Errorf("mock source: empty path")
	}
	m.mu.Lock()
	i := min(m.next, len(m.path)-1)
	m.mu.Unlock()
	return m.fix(m.path[i], m.now()), nil
}

// Watch starts the replay from where the last watch stopped. Fix k of a
// watch is stamped start+k*Interval, so a TimeInterval no longer than
// Interval never drops a step.
func (m *MockSource) Watch(ctx context.Context, opts WatchOptions, h Handler) (Subscription, error) {
	if err := m.RequestPermission(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g := newGate(opts, m.now)

	go func() {
		defer close(done)
		interval := m.Interval
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		at := m.now().UTC()
		for {
			m.mu.Lock()
			if m.next >= len(m.path) {
				m.mu.Unlock()
				return
			}
			p := m.path[m.next]
			m.next++
			m.mu.Unlock()

			if f := m.fix(p, at); g.allow(f) {
				h(f)
			}
			at = at.Add(interval)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return &cancelSubscription{cancel: cancel, done: done}, nil
}

// Reset rewinds the replay to the origin.
func (m *MockSource) Reset() {
	m.mu.Lock()
	m.next = 0
	m.mu.Unlock()
}

func (m *MockSource) fix(p geo.Point, at time.Time) gps.Fix {
	return gps.Fix{
		Time:      at.UTC(),
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Validity:  gps.ValidityValid,
		Source:    "mock",
	}
}
