package route

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const delhiJaipurYAML = `
name: Delhi to Jaipur
default_speed_kmh: 70
waypoints:
  - name: Delhi
    lat: 28.6139
    lon: 77.2090
  - name: Jaipur
    lat: 26.9124
    lon: 75.7873
    speed_kmh: 80
`

func TestParse_AppliesDefaultSpeed(t *testing.T) {
	r, err := Parse([]byte(delhiJaipurYAML), DefaultSpeedKmh)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Name() != "Delhi to Jaipur" {
		t.Errorf("name = %q", r.Name())
	}
	if got := r.Waypoint(0).SpeedKmh; got != 70 {
		t.Errorf("Delhi speed = %v, want file default 70", got)
	}
	if got := r.Waypoint(1).SpeedKmh; got != 80 {
		t.Errorf("Jaipur speed = %v, want 80", got)
	}
}

func TestParse_FallbackSpeed(t *testing.T) {
	data := []byte("name: r\nwaypoints:\n  - {lat: 1, lon: 1}\n  - {lat: 2, lon: 2}\n")
	r, err := Parse(data, 45)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i, w := range r.Waypoints() {
		if w.SpeedKmh != 45 {
			t.Errorf("waypoint %d speed = %v, want 45", i, w.SpeedKmh)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing name", data: "waypoints:\n  - {lat: 1, lon: 1, speed_kmh: 5}\n  - {lat: 2, lon: 2, speed_kmh: 5}\n"},
		{name: "one waypoint", data: "name: r\nwaypoints:\n  - {lat: 1, lon: 1, speed_kmh: 5}\n"},
		{name: "latitude out of range", data: "name: r\nwaypoints:\n  - {lat: 91, lon: 1, speed_kmh: 5}\n  - {lat: 2, lon: 2, speed_kmh: 5}\n"},
		{name: "negative speed", data: "name: r\nwaypoints:\n  - {lat: 1, lon: 1, speed_kmh: -5}\n  - {lat: 2, lon: 2, speed_kmh: 5}\n"},
		{name: "no speed anywhere", data: "name: r\nwaypoints:\n  - {lat: 1, lon: 1}\n  - {lat: 2, lon: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), 0)
			if !errors.Is(err, ErrInvalidRoute) {
				t.Errorf("expected ErrInvalidRoute, got %v", err)
			}
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("invalid: yaml: content: [[["), DefaultSpeedKmh)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if errors.Is(err, ErrInvalidRoute) {
		t.Errorf("syntax errors should not be reported as ErrInvalidRoute: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.yml")
	if err := os.WriteFile(path, []byte(delhiJaipurYAML), 0644); err != nil {
		t.Fatalf("write route file: %v", err)
	}
	r, err := LoadFile(path, DefaultSpeedKmh)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 waypoints, got %d", r.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"), DefaultSpeedKmh); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_ShippedRoute(t *testing.T) {
	r, err := LoadFile(filepath.Join("..", "..", "routes", "delhi_bangalore.yaml"), 1)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	builtin := DelhiToBangalore(DefaultSpeedKmh)
	if r.Len() != len(builtin) {
		t.Fatalf("expected %d waypoints, got %d", len(builtin), r.Len())
	}
	for i, w := range builtin {
		got := r.Waypoint(i)
		if got.Name != w.Name || got.Latitude != w.Latitude || got.Longitude != w.Longitude {
			t.Errorf("waypoint %d = %+v, want %+v", i, got, w)
		}
	}
	if got := r.Waypoint(5).SpeedKmh; got != 50 {
		t.Errorf("Bangalore speed = %v, want 50", got)
	}
	if got := r.Waypoint(0).SpeedKmh; got != DefaultSpeedKmh {
		t.Errorf("Delhi speed = %v, want file default %v", got, DefaultSpeedKmh)
	}
}
