// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package route builds the leg table (distance and ETA per leg) for an
// ordered list of waypoints and locates the waypoint nearest to a fix.
package route

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/route_tracker/internal/geo"
)

var (
	// ErrInvalidRoute is returned for a malformed waypoint table: fewer than
	// two waypoints or a non-positive speed.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrEmptyRoute is returned when looking up the nearest waypoint of an
	// empty route.
	ErrEmptyRoute = errors.New("empty route")
)

// Waypoint is one stop of a route. SpeedKmh is the expected speed on the
// leg that starts at this waypoint.
type Waypoint struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"lon" validate:"gte=-180,lte=180"`
	SpeedKmh  float64 `json:"speed_kmh" yaml:"speed_kmh" validate:"gt=0"`
}

// Point returns the waypoint coordinate.
func (w Waypoint) Point() geo.Point {
	return geo.Point{Latitude: w.Latitude, Longitude: w.Longitude}
}

// Leg covers the stretch between two consecutive waypoints.
type Leg struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes float64 `json:"eta_minutes"`
}

// BuildLegs computes one Leg per consecutive waypoint pair. The ETA of a
// leg uses the speed of its origin waypoint.
func BuildLegs(waypoints []Waypoint) ([]Leg, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints, got %d", ErrInvalidRoute, len(waypoints))
	}
	for i, w := range waypoints {
		if !(w.SpeedKmh > 0) {
			return nil, fmt.Errorf("%w: waypoint %d (%s) has speed %v km/h", ErrInvalidRoute, i, w.Name, w.SpeedKmh)
		}
	}

	legs := make([]Leg, 0, len(waypoints)-1)
	for i := 0; i < len(waypoints)-1; i++ {
		from := waypoints[i]
		to := waypoints[i+1]
		km := geo.Distance(from.Point(), to.Point())
		legs = append(legs, Leg{
			From:       i,
			To:         i + 1,
			DistanceKm: km,
			ETAMinutes: km / from.SpeedKmh * 60,
		})
	}
	return legs, nil
}

// Route is an immutable waypoint sequence with its precomputed legs.
type Route struct {
	name      string
	waypoints []Waypoint
	legs      []Leg
}

// New validates waypoints and builds the leg table. The slice is copied.
func New(name string, waypoints []Waypoint) (*Route, error) {
	legs, err := BuildLegs(waypoints)
	if err != nil {
		return nil, err
	}
	wps := make([]Waypoint, len(waypoints))
	copy(wps, waypoints)
	return &Route{name: name, waypoints: wps, legs: legs}, nil
}

// Name returns the route name.
func (r *Route) Name() string { return r.name }

// Len returns the number of waypoints.
func (r *Route) Len() int { return len(r.waypoints) }

// Waypoints returns a copy of the waypoint sequence.
func (r *Route) Waypoints() []Waypoint {
	out := make([]Waypoint, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

// Waypoint returns the waypoint at index i.
func (r *Route) Waypoint(i int) Waypoint { return r.waypoints[i] }

// Legs returns a copy of the leg table.
func (r *Route) Legs() []Leg {
	out := make([]Leg, len(r.legs))
	copy(out, r.legs)
	return out
}

// Path returns the waypoint coordinates in order, for a polyline overlay.
func (r *Route) Path() []geo.Point {
	pts := make([]geo.Point, len(r.waypoints))
	for i, w := range r.waypoints {
		pts[i] = w.Point()
	}
	return pts
}

// Center is the middle waypoint, used as the initial map center.
func (r *Route) Center() geo.Point {
	return r.waypoints[len(r.waypoints)/2].Point()
}

// TotalDistanceKm sums all leg distances.
func (r *Route) TotalDistanceKm() float64 {
	return r.RemainingDistanceKm(0)
}

// TotalETAMinutes sums all leg ETAs.
func (r *Route) TotalETAMinutes() float64 {
	return r.RemainingETAMinutes(0)
}

// RemainingDistanceKm sums leg distances from leg index from onwards.
func (r *Route) RemainingDistanceKm(from int) float64 {
	total := 0.0
	for i := max(from, 0); i < len(r.legs); i++ {
		total += r.legs[i].DistanceKm
	}
	return total
}

// RemainingETAMinutes sums leg ETAs from leg index from onwards.
func (r *Route) RemainingETAMinutes(from int) float64 {
	total := 0.0
	for i := max(from, 0); i < len(r.legs); i++ {
		total += r.legs[i].ETAMinutes
	}
	return total
}

// Nearest returns the index of the waypoint closest to p. Ties resolve to
// the lowest index.
func Nearest(p geo.Point, waypoints []Waypoint) (int, error) {
	if len(waypoints) == 0 {
		return 0, ErrEmptyRoute
	}
	best := 0
	bestKm := geo.Distance(p, waypoints[0].Point())
	for i := 1; i < len(waypoints); i++ {
		if d := geo.Distance(p, waypoints[i].Point()); d < bestKm {
			best = i
			bestKm = d
		}
	}
	return best, nil
}

// Nearest is Nearest over the route's waypoints.
func (r *Route) Nearest(p geo.Point) int {
	// a Route always has at least two waypoints
	i, _ := Nearest(p, r.waypoints)
	return i
}
