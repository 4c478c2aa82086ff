// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/route"
	"github.com/relabs-tech/route_tracker/internal/store"
	"github.com/relabs-tech/route_tracker/internal/tracker"
	"github.com/relabs-tech/route_tracker/internal/view"
)

// History persists sessions and their trails. store.MySQLStore
// implements it.
type History interface {
	StartSession(ctx context.Context, id, routeName string, startedAt time.Time) error
	AppendPoint(ctx context.Context, sessionID string, p store.TrailPoint) error
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	Points(ctx context.Context, sessionID string) ([]store.TrailPoint, error)
}

// Sink receives everything the map renderer needs.
type Sink interface {
	PublishProgress(p tracker.Progress)
	PublishOverlay(o view.Overlay)
	PublishAnimate(cmd view.AnimateCommand)
}

// MonitorConfig holds the tunables of a Monitor.
type MonitorConfig struct {
	Watch           location.WatchOptions
	JitterThreshold float64
	LiveZoomDelta   float64
	RouteZoomDelta  float64
	AnimateDuration time.Duration
}

// DefaultMonitorConfig returns the default watch and map settings.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Watch:           location.DefaultWatchOptions(),
		JitterThreshold: 0.00005,
		LiveZoomDelta:   view.DefaultLiveDelta,
		RouteZoomDelta:  view.DefaultRouteDelta,
		AnimateDuration: view.DefaultAnimateDuration,
	}
}

const historyTimeout = 5 * time.Second

// Monitor ties a location source to the tracker. Fixes, HTTP reads and
// map commands all go through mu, so the tracker sees one call at a time.
type Monitor struct {
	cfg     MonitorConfig
	source  location.Source
	history History
	ctx     context.Context

	mu       sync.Mutex
	tracker  *tracker.Tracker
	trail    *tracker.Trail
	viewport *view.Viewport
	sub      location.Subscription
	lastFix  gps.Fix
	haveFix  bool
	sinks    []Sink
}

// NewMonitor builds an idle monitor. ctx bounds every watch started by
// the monitor. history may be nil.
func NewMonitor(ctx context.Context, tr *tracker.Tracker, src location.Source, history History, cfg MonitorConfig) *Monitor {
	return &Monitor{
		cfg:      cfg,
		source:   src,
		history:  history,
		ctx:      ctx,
		tracker:  tr,
		trail:    tracker.NewTrail(cfg.JitterThreshold),
		viewport: view.RouteViewport(tr.Route(), cfg.RouteZoomDelta, cfg.AnimateDuration),
	}
}

// AddSink registers s for every later update.
func (m *Monitor) AddSink(s Sink) {
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

// HasHistory reports whether sessions are persisted.
func (m *Monitor) HasHistory() bool { return m.history != nil }

// History returns the store, or nil.
func (m *Monitor) History() History { return m.history }

// Tracking reports whether a session is active.
func (m *Monitor) Tracking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.State() == tracker.Tracking
}

// Route returns the current route.
func (m *Monitor) Route() *route.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Route()
}

// RouteOverlay draws the current route.
func (m *Monitor) RouteOverlay() view.Overlay {
	return view.RouteOverlay(m.Route())
}

// TrailOverlay draws the live trail of the current session.
func (m *Monitor) TrailOverlay() view.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view.TrailOverlay(m.trail.Points())
}

// Progress reports the active session, or tracker.ErrInvalidState.
func (m *Monitor) Progress() (tracker.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Progress()
}

// Animate returns a command for the current region.
func (m *Monitor) Animate() view.AnimateCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport.Animate()
}

// Start asks the source for permission, opens a session and begins
// watching. Permission errors wrap location.ErrPermissionDenied.
func (m *Monitor) Start(ctx context.Context) (tracker.Session, error) {
	if m.Tracking() {
		return tracker.Session{}, fmt.Errorf("%w: already tracking", tracker.ErrInvalidState)
	}
	if err := m.source.RequestPermission(ctx); err != nil {
		return tracker.Session{}, err
	}

	m.mu.Lock()
	sess, err := m.tracker.Start()
	if err != nil {
		m.mu.Unlock()
		return tracker.Session{}, err
	}
	m.trail.Reset()
	m.haveFix = false
	routeName := m.tracker.Route().Name()
	m.mu.Unlock()

	sub, err := m.source.Watch(m.ctx, m.cfg.Watch, m.OnFix)
	if err != nil {
		m.mu.Lock()
		m.tracker.Stop()
		m.mu.Unlock()
		return tracker.Session{}, fmt.Errorf("watch location: %w", err)
	}

	m.mu.Lock()
	cur, serr := m.tracker.Session()
	if serr != nil || cur.ID != sess.ID {
		// stopped while the watch was starting
		m.mu.Unlock()
		sub.Remove()
		return tracker.Session{}, fmt.Errorf("%w: session %s stopped during start", tracker.ErrInvalidState, sess.ID)
	}
	m.sub = sub
	m.mu.Unlock()

	if m.history != nil {
		hctx, cancel := context.WithTimeout(m.ctx, historyTimeout)
		if err := m.history.StartSession(hctx, sess.ID, routeName, sess.StartTime); err != nil {
			log.Printf("tracker: history start %s: %v", sess.ID, err)
		}
		cancel()
	}

	log.Printf("tracker: session %s started on route %q", sess.ID, routeName)
	m.publishTrail()
	return sess, nil
}

// Stop ends the active session and removes the location subscription.
// Stopping while idle returns false and does nothing.
func (m *Monitor) Stop(ctx context.Context) (tracker.Session, bool) {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	sess, stopped := m.tracker.Stop()
	if stopped {
		m.viewport = view.RouteViewport(m.tracker.Route(), m.cfg.RouteZoomDelta, m.cfg.AnimateDuration)
	}
	m.mu.Unlock()

	// outside mu: Remove waits for an in-flight OnFix
	if sub != nil {
		sub.Remove()
	}
	if !stopped {
		return tracker.Session{}, false
	}

	if m.history != nil {
		hctx, cancel := context.WithTimeout(ctx, historyTimeout)
		if err := m.history.EndSession(hctx, sess.ID, time.Now()); err != nil {
			log.Printf("tracker: history end %s: %v", sess.ID, err)
		}
		cancel()
	}
	log.Printf("tracker: session %s stopped", sess.ID)
	return sess, true
}

// OnFix is the location handler. Fixes arriving while idle are dropped.
func (m *Monitor) OnFix(f gps.Fix) {
	m.mu.Lock()
	idx, err := m.tracker.OnFix(f)
	if err != nil {
		m.mu.Unlock()
		return
	}
	kept := m.trail.Add(f.Point())
	if !m.haveFix {
		m.viewport = view.NewViewport(f.Point(), m.cfg.LiveZoomDelta, m.cfg.AnimateDuration)
	}
	m.lastFix, m.haveFix = f, true
	anim := m.viewport.Recenter(f.Point())
	progress, _ := m.tracker.Progress()
	trail := view.TrailOverlay(m.trail.Points())
	sinks := m.sinks
	m.mu.Unlock()

	if kept && m.history != nil {
		at := f.Time
		if at.IsZero() {
			at = time.Now()
		}
		hctx, cancel := context.WithTimeout(m.ctx, historyTimeout)
		err := m.history.AppendPoint(hctx, progress.SessionID, store.TrailPoint{
			Latitude:   f.Latitude,
			Longitude:  f.Longitude,
			RecordedAt: at,
			LegIndex:   idx,
		})
		cancel()
		if err != nil {
			log.Printf("tracker: history append: %v", err)
		}
	}

	for _, s := range sinks {
		if kept {
			s.PublishOverlay(trail)
		}
		s.PublishAnimate(anim)
		s.PublishProgress(progress)
	}
}

// SetRoute replaces the route. An active session keeps running against
// the new waypoints.
func (m *Monitor) SetRoute(r *route.Route) {
	m.mu.Lock()
	m.tracker.SetRoute(r)
	if m.tracker.State() == tracker.Idle {
		m.viewport = view.RouteViewport(r, m.cfg.RouteZoomDelta, m.cfg.AnimateDuration)
	}
	anim := m.viewport.Animate()
	sinks := m.sinks
	m.mu.Unlock()

	log.Printf("tracker: route set to %q (%d waypoints)", r.Name(), r.Len())
	o := view.RouteOverlay(r)
	for _, s := range sinks {
		s.PublishOverlay(o)
		s.PublishAnimate(anim)
	}
}

// ZoomIn halves the visible span.
func (m *Monitor) ZoomIn() view.AnimateCommand {
	return m.moveView(func(v *view.Viewport) view.AnimateCommand { return v.ZoomIn() })
}

// ZoomOut doubles the visible span.
func (m *Monitor) ZoomOut() view.AnimateCommand {
	return m.moveView(func(v *view.Viewport) view.AnimateCommand { return v.ZoomOut() })
}

// Recenter moves the view back to the route center while idle. While
// tracking it moves to the last fix, or asks the source for the current
// position when there is none yet.
func (m *Monitor) Recenter(ctx context.Context) (view.AnimateCommand, error) {
	m.mu.Lock()
	idle := m.tracker.State() == tracker.Idle
	center := m.tracker.Route().Center()
	f, have := m.lastFix, m.haveFix
	m.mu.Unlock()

	switch {
	case idle:
	case have:
		center = f.Point()
	default:
		cur, err := m.source.CurrentPosition(ctx)
		if err != nil {
			return view.AnimateCommand{}, fmt.Errorf("current position: %w", err)
		}
		center = cur.Point()
	}
	return m.moveView(func(v *view.Viewport) view.AnimateCommand { return v.Recenter(center) }), nil
}

func (m *Monitor) moveView(fn func(*view.Viewport) view.AnimateCommand) view.AnimateCommand {
	m.mu.Lock()
	cmd := fn(m.viewport)
	sinks := m.sinks
	m.mu.Unlock()
	for _, s := range sinks {
		s.PublishAnimate(cmd)
	}
	return cmd
}

func (m *Monitor) publishTrail() {
	m.mu.Lock()
	trail := view.TrailOverlay(m.trail.Points())
	sinks := m.sinks
	m.mu.Unlock()
	for _, s := range sinks {
		s.PublishOverlay(trail)
	}
}
