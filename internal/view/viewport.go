// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package view holds the map-facing state the renderer consumes: the
// visible region, animate commands, and the overlays drawn on top.
package view

import (
	"time"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/route"
)

const (
	DefaultLiveDelta       = 0.01
	DefaultRouteDelta      = 10.0
	DefaultAnimateDuration = 500 * time.Millisecond

	minDelta    = 1e-6
	maxLatDelta = 180.0
	maxLonDelta = 360.0
)

// Region is the visible map area: a center and its span in degrees.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// Center returns the region center.
func (r Region) Center() geo.Point {
	return geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}
}

// AnimateCommand tells the renderer to move to Region over DurationMS.
type AnimateCommand struct {
	Region     Region `json:"region"`
	DurationMS int64  `json:"duration_ms"`
}

// Viewport tracks the current region. It is not safe for concurrent use.
type Viewport struct {
	region   Region
	duration time.Duration
}

// NewViewport centers a viewport on center with the same delta on both
// axes. A non-positive duration falls back to DefaultAnimateDuration.
func NewViewport(center geo.Point, delta float64, duration time.Duration) *Viewport {
	if duration <= 0 {
		duration = DefaultAnimateDuration
	}
	v := &Viewport{duration: duration}
	v.region = clampRegion(Region{
		Latitude:       center.Latitude,
		Longitude:      center.Longitude,
		LatitudeDelta:  delta,
		LongitudeDelta: delta,
	})
	return v
}

// LiveViewport is the initial view when following the device.
func LiveViewport(center geo.Point) *Viewport {
	return NewViewport(center, DefaultLiveDelta, DefaultAnimateDuration)
}

// RouteViewport centers on the middle waypoint of r.
func RouteViewport(r *route.Route, delta float64, duration time.Duration) *Viewport {
	return NewViewport(r.Center(), delta, duration)
}

// Region returns the current region.
func (v *Viewport) Region() Region { return v.region }

// Animate returns a command for the current region.
func (v *Viewport) Animate() AnimateCommand {
	return AnimateCommand{Region: v.region, DurationMS: v.duration.Milliseconds()}
}

// ZoomIn halves both deltas.
func (v *Viewport) ZoomIn() AnimateCommand {
	return v.scale(0.5)
}

// ZoomOut doubles both deltas.
func (v *Viewport) ZoomOut() AnimateCommand {
	return v.scale(2)
}

// Recenter moves the center to p and keeps the zoom level.
func (v *Viewport) Recenter(p geo.Point) AnimateCommand {
	v.region.Latitude = p.Latitude
	v.region.Longitude = p.Longitude
	return v.Animate()
}

func (v *Viewport) scale(f float64) AnimateCommand {
	v.region.LatitudeDelta *= f
	v.region.LongitudeDelta *= f
	v.region = clampRegion(v.region)
	return v.Animate()
}

func clampRegion(r Region) Region {
	r.LatitudeDelta = clamp(r.LatitudeDelta, minDelta, maxLatDelta)
	r.LongitudeDelta = clamp(r.LongitudeDelta, minDelta, maxLonDelta)
	return r
}

func clamp(x, lo, hi float64) float64 {
	return min(max(x, lo), hi)
}
