// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package view

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/route"
)

// Pin and stroke colors understood by the renderer.
const (
	ColorStart  = "green"
	ColorEnd    = "red"
	ColorStop   = "orange"
	ColorPath   = "blue"
	StrokeWidth = 5
)

// Overlay kinds.
const (
	KindRoute = "route"
	KindTrail = "trail"
)

// Marker is a labelled pin.
type Marker struct {
	Title    string    `json:"title,omitempty"`
	Position geo.Point `json:"coordinate"`
	Color    string    `json:"pinColor,omitempty"`
}

// Polyline is the drawn path.
type Polyline struct {
	Points      []geo.Point `json:"coordinates"`
	StrokeColor string      `json:"strokeColor"`
	StrokeWidth int         `json:"strokeWidth"`
}

// Overlay is everything drawn on top of the map tiles.
type Overlay struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Polyline Polyline `json:"polyline"`
	Markers  []Marker `json:"markers"`
}

// RouteOverlay draws r as a path with one pin per waypoint. The first pin
// is titled "Start: <name>", the last "End: <name>".
func RouteOverlay(r *route.Route) Overlay {
	wps := r.Waypoints()
	markers := make([]Marker, len(wps))
	for i, w := range wps {
		m := Marker{Title: w.Name, Position: w.Point(), Color: ColorStop}
		switch i {
		case 0:
			m.Title, m.Color = "Start: "+w.Name, ColorStart
		case len(wps) - 1:
			m.Title, m.Color = "End: "+w.Name, ColorEnd
		}
		markers[i] = m
	}
	return Overlay{
		Kind:     KindRoute,
		Name:     r.Name(),
		Polyline: Polyline{Points: r.Path(), StrokeColor: ColorPath, StrokeWidth: StrokeWidth},
		Markers:  markers,
	}
}

// TrailOverlay draws a live trail with an untitled marker on its last
// point.
func TrailOverlay(points []geo.Point) Overlay {
	o := Overlay{
		Kind:     KindTrail,
		Polyline: Polyline{Points: points, StrokeColor: ColorPath, StrokeWidth: StrokeWidth},
		Markers:  []Marker{},
	}
	if n := len(points); n > 0 {
		o.Markers = append(o.Markers, Marker{Position: points[n-1]})
	}
	if o.Polyline.Points == nil {
		o.Polyline.Points = []geo.Point{}
	}
	return o
}

// FeatureCollection converts the overlay to GeoJSON: one LineString for
// the path (when it has at least two points) and one Point per marker.
func (o Overlay) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(o.Polyline.Points) >= 2 {
		ls := make(orb.LineString, len(o.Polyline.Points))
		for i, p := range o.Polyline.Points {
			ls[i] = toOrb(p)
		}
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = o.Kind
		f.Properties["stroke"] = o.Polyline.StrokeColor
		f.Properties["stroke-width"] = o.Polyline.StrokeWidth
		if o.Name != "" {
			f.Properties["name"] = o.Name
		}
		fc.Append(f)
	}

	for _, m := range o.Markers {
		f := geojson.NewFeature(toOrb(m.Position))
		if m.Title != "" {
			f.Properties["title"] = m.Title
		}
		if m.Color != "" {
			f.Properties["marker-color"] = m.Color
		}
		fc.Append(f)
	}
	return fc
}

// GeoJSON encodes the overlay as a FeatureCollection.
func (o Overlay) GeoJSON() ([]byte, error) {
	return o.FeatureCollection().MarshalJSON()
}

// orb points are lon, lat.
func toOrb(p geo.Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
