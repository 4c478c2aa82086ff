package view

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/route_tracker/internal/geo"
	"github.com/relabs-tech/route_tracker/internal/route"
)

func testRoute(t *testing.T) *route.Route {
	t.Helper()
	r, err := route.New("Delhi to Bangalore", route.DelhiToBangalore(route.DefaultSpeedKmh))
	if err != nil {
		t.Fatalf("route.New: %v", err)
	}
	return r
}

func TestRouteOverlay_Markers(t *testing.T) {
	o := RouteOverlay(testRoute(t))

	if len(o.Markers) != 6 {
		t.Fatalf("markers = %d, want 6", len(o.Markers))
	}
	tests := []struct {
		idx   int
		title string
		color string
	}{
		{0, "Start: Delhi", ColorStart},
		{1, "Jaipur", ColorStop},
		{4, "Hyderabad", ColorStop},
		{5, "End: Bangalore", ColorEnd},
	}
	for _, tt := range tests {
		m := o.Markers[tt.idx]
		if m.Title != tt.title || m.Color != tt.color {
			t.Errorf("marker %d = %q/%s, want %q/%s", tt.idx, m.Title, m.Color, tt.title, tt.color)
		}
	}
	if len(o.Polyline.Points) != 6 || o.Polyline.StrokeColor != "blue" || o.Polyline.StrokeWidth != 5 {
		t.Errorf("unexpected polyline %+v", o.Polyline)
	}
}

func TestTrailOverlay(t *testing.T) {
	empty := TrailOverlay(nil)
	if len(empty.Markers) != 0 || empty.Polyline.Points == nil {
		t.Errorf("empty trail overlay = %+v", empty)
	}

	pts := []geo.Point{{Latitude: 1, Longitude: 2}, {Latitude: 1.001, Longitude: 2.001}}
	o := TrailOverlay(pts)
	if len(o.Markers) != 1 || o.Markers[0].Position != pts[1] {
		t.Errorf("current position marker = %+v", o.Markers)
	}
}

func TestOverlay_GeoJSON(t *testing.T) {
	data, err := RouteOverlay(testRoute(t)).GeoJSON()
	if err != nil {
		t.Fatalf("GeoJSON: %v", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// one line plus six pins
	if len(fc.Features) != 7 {
		t.Fatalf("features = %d, want 7", len(fc.Features))
	}

	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("first feature is %T, want LineString", fc.Features[0].Geometry)
	}
	// lon, lat order
	if ls[0] != (orb.Point{77.2090, 28.6139}) {
		t.Errorf("first vertex = %v", ls[0])
	}
	if got := fc.Features[1].Properties.MustString("title"); got != "Start: Delhi" {
		t.Errorf("first pin title = %q", got)
	}
}

func TestOverlay_GeoJSONSinglePointTrail(t *testing.T) {
	data, err := TrailOverlay([]geo.Point{{Latitude: 1, Longitude: 2}}).GeoJSON()
	if err != nil {
		t.Fatalf("GeoJSON: %v", err)
	}
	var raw struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.Type != "FeatureCollection" || len(raw.Features) != 1 {
		t.Errorf("got %s with %d features", raw.Type, len(raw.Features))
	}
}
