// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"time"

	"github.com/relabs-tech/route_tracker/internal/geo"
)

// Validity values carried over from NMEA RMC.
const (
	ValidityValid = "A"
	ValidityVoid  = "V"
)

// Fix represents a single position fix suitable for JSON and MQTT.
type Fix struct {
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lon"`         // decimal degrees
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
	Validity   string    `json:"validity"`    // "A" (valid) / "V" (void)
	Source     string    `json:"source,omitempty"`
}

// Point returns the fix position.
func (f Fix) Point() geo.Point {
	return geo.Point{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Valid reports whether the receiver had a usable position. Fixes from
// sources without a validity flag count as valid.
func (f Fix) Valid() bool {
	return f.Validity != ValidityVoid
}

// SpeedKmh converts the ground speed from knots.
func (f Fix) SpeedKmh() float64 {
	return f.SpeedKnots * 1.852
}
