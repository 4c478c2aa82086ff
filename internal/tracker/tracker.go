// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker follows progress along a route: it maps each incoming
// fix to the nearest waypoint and reports elapsed time and the ETA of the
// current leg.
//
// A Tracker is not safe for concurrent use. Fixes must be delivered one at
// a time; callers that also read progress from other goroutines serialize
// access themselves.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/route"
)

// ErrInvalidState is returned when an operation is not allowed in the
// tracker's current state.
var ErrInvalidState = errors.New("invalid tracker state")

// State is the tracker lifecycle state.
type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the state of one tracking run.
type Session struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	CurrentLegIndex int       `json:"current_leg_index"`
	LastFix         *gps.Fix  `json:"last_fix,omitempty"`
}

// Progress is a point-in-time report of a tracking session.
type Progress struct {
	SessionID        string        `json:"session_id"`
	RouteName        string        `json:"route_name"`
	StartTime        time.Time     `json:"start_time"`
	Elapsed          time.Duration `json:"elapsed_ns"`
	ElapsedText      string        `json:"elapsed"`
	CurrentLegIndex  int           `json:"current_leg_index"`
	CurrentWaypoint  string        `json:"current_waypoint"`
	NextWaypoint     string        `json:"next_waypoint,omitempty"`
	ETAMinutes       float64       `json:"eta_minutes"`
	AtDestination    bool          `json:"at_destination"`
	RemainingKm      float64       `json:"remaining_km"`
	RemainingMinutes float64       `json:"remaining_minutes"`
	DistanceToNextKm *float64      `json:"distance_to_next_km,omitempty"`
	LastFix          *gps.Fix      `json:"last_fix,omitempty"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(t *Tracker) { t.newID = newID }
}

// Tracker is the Idle/Tracking state machine for one route.
type Tracker struct {
	route   *route.Route
	session *Session
	now     func() time.Time
	newID   func() string
}

// New returns an idle tracker for r.
func New(r *route.Route, opts ...Option) *Tracker {
	t := &Tracker{
		route: r,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Route returns the route being tracked.
func (t *Tracker) Route() *route.Route { return t.route }

// State reports Idle or Tracking.
func (t *Tracker) State() State {
	if t.session == nil {
		return Idle
	}
	return Tracking
}

// Start opens a session at the first waypoint.
func (t *Tracker) Start() (Session, error) {
	if t.session != nil {
		return Session{}, fmt.Errorf("%w: start while %s", ErrInvalidState, Tracking)
	}
	t.session = &Session{
		ID:              t.newID(),
		StartTime:       t.now(),
		CurrentLegIndex: 0,
	}
	return *t.session, nil
}

// Stop closes the current session and returns it. Stopping an idle tracker
// is a no-op and returns false.
func (t *Tracker) Stop() (Session, bool) {
	if t.session == nil {
		return Session{}, false
	}
	s := *t.session
	t.session = nil
	return s, true
}

// Session returns a copy of the active session.
func (t *Tracker) Session() (Session, error) {
	if t.session == nil {
		return Session{}, fmt.Errorf("%w: no active session", ErrInvalidState)
	}
	return *t.session, nil
}

// OnFix moves the current leg index to the waypoint nearest to fix and
// returns the new index.
func (t *Tracker) OnFix(fix gps.Fix) (int, error) {
	if t.session == nil {
		return 0, fmt.Errorf("%w: fix received while %s", ErrInvalidState, Idle)
	}
	idx := t.route.Nearest(fix.Point())
	t.session.CurrentLegIndex = idx
	f := fix
	t.session.LastFix = &f
	return idx, nil
}

// Elapsed returns the time since Start.
func (t *Tracker) Elapsed() (time.Duration, error) {
	if t.session == nil {
		return 0, fmt.Errorf("%w: elapsed while %s", ErrInvalidState, Idle)
	}
	return t.now().Sub(t.session.StartTime), nil
}

// ETAForCurrentLeg returns the ETA in minutes of the leg starting at the
// current waypoint. atDestination is true, and minutes zero, once the
// current waypoint is the last one.
func (t *Tracker) ETAForCurrentLeg() (minutes float64, atDestination bool, err error) {
	if t.session == nil {
		return 0, false, fmt.Errorf("%w: eta while %s", ErrInvalidState, Idle)
	}
	legs := t.route.Legs()
	idx := t.session.CurrentLegIndex
	if idx >= len(legs) {
		return 0, true, nil
	}
	return legs[idx].ETAMinutes, false, nil
}

// SetRoute swaps in a new route. An active session keeps running; its leg
// index is recomputed from the last fix, or clamped when there is none.
func (t *Tracker) SetRoute(r *route.Route) {
	t.route = r
	if t.session == nil {
		return
	}
	if t.session.LastFix != nil {
		t.session.CurrentLegIndex = r.Nearest(t.session.LastFix.Point())
		return
	}
	if t.session.CurrentLegIndex >= r.Len() {
		t.session.CurrentLegIndex = r.Len() - 1
	}
}

// Progress builds a report of the active session.
func (t *Tracker) Progress() (Progress, error) {
	if t.session == nil {
		return Progress{}, fmt.Errorf("%w: progress while %s", ErrInvalidState, Idle)
	}
	elapsed, _ := t.Elapsed()
	eta, atDest, _ := t.ETAForCurrentLeg()
	idx := t.session.CurrentLegIndex

	p := Progress{
		SessionID:        t.session.ID,
		RouteName:        t.route.Name(),
		StartTime:        t.session.StartTime,
		Elapsed:          elapsed,
		ElapsedText:      elapsed.Truncate(time.Second).String(),
		CurrentLegIndex:  idx,
		CurrentWaypoint:  t.route.Waypoint(idx).Name,
		ETAMinutes:       eta,
		AtDestination:    atDest,
		RemainingKm:      t.route.RemainingDistanceKm(idx),
		RemainingMinutes: t.route.RemainingETAMinutes(idx),
		LastFix:          t.session.LastFix,
	}
	if !atDest {
		next := t.route.Waypoint(idx + 1)
		p.NextWaypoint = next.Name
		if t.session.LastFix != nil {
			d := geo.Distance(t.session.LastFix.Point(), next.Point())
			p.DistanceToNextKm = &d
		}
	}
	return p, nil
}
