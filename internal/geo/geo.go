// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geo holds the coordinate type shared by routes, trails and the
// map overlay, plus great-circle distance on a spherical Earth.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// DefaultJitterThreshold is the per-axis delta, in degrees, a new fix must
// exceed before it is appended to a live trail.
const DefaultJitterThreshold = 0.00005

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the haversine distance between a and b in kilometres.
// Coordinates are not validated.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	la1 := toRad(a.Latitude)
	la2 := toRad(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceMeters is Distance in metres.
func DistanceMeters(a, b Point) float64 {
	return Distance(a, b) * 1000
}

// PathLength sums Distance over consecutive points.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// IsSignificantMove reports whether next moved more than threshold degrees
// from prev on either axis.
//
// The threshold is a raw degree epsilon, so its ground distance shrinks in
// longitude as latitude grows.
func IsSignificantMove(prev, next Point, threshold float64) bool {
	latDiff := math.Abs(prev.Latitude - next.Latitude)
	lonDiff := math.Abs(prev.Longitude - next.Longitude)
	return latDiff > threshold || lonDiff > threshold
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
