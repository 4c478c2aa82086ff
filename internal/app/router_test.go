package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRouter_SessionFlow(t *testing.T) {
	m, src, _ := newTestMonitor(t, nil)
	r := NewRouter(m, nil, RouterConfig{DefaultSpeedKmh: 60})

	w := doRequest(t, r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK || decode(t, w)["tracking"] != false {
		t.Fatalf("health = %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	if w := doRequest(t, r, http.MethodGet, "/api/progress", ""); w.Code != http.StatusConflict {
		t.Errorf("progress while idle = %d, want 409", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/api/session/start", "")
	if w.Code != http.StatusCreated || decode(t, w)["id"] != "session-1" {
		t.Fatalf("start = %d %s", w.Code, w.Body)
	}
	if w := doRequest(t, r, http.MethodPost, "/api/session/start", ""); w.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", w.Code)
	}

	src.emit(fixAt(t, m, 5))
	w = doRequest(t, r, http.MethodGet, "/api/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("progress = %d %s", w.Code, w.Body)
	}
	p := decode(t, w)
	if p["at_destination"] != true || p["current_waypoint"] != "Bangalore" {
		t.Errorf("progress = %v", p)
	}

	w = doRequest(t, r, http.MethodPost, "/api/session/stop", "")
	if w.Code != http.StatusOK || decode(t, w)["stopped"] != true {
		t.Errorf("stop = %d %s", w.Code, w.Body)
	}
	w = doRequest(t, r, http.MethodPost, "/api/session/stop", "")
	if w.Code != http.StatusOK || decode(t, w)["stopped"] != false {
		t.Errorf("second stop = %d %s", w.Code, w.Body)
	}
}

func TestRouter_StartPermissionDenied(t *testing.T) {
	m, src, _ := newTestMonitor(t, nil)
	src.deny = true
	r := NewRouter(m, nil, RouterConfig{})

	if w := doRequest(t, r, http.MethodPost, "/api/session/start", ""); w.Code != http.StatusForbidden {
		t.Errorf("start = %d, want 403", w.Code)
	}
}

func TestRouter_Route(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	r := NewRouter(m, nil, RouterConfig{DefaultSpeedKmh: 60})

	w := doRequest(t, r, http.MethodGet, "/api/route", "")
	if w.Code != http.StatusOK {
		t.Fatalf("route = %d", w.Code)
	}
	var body routeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Waypoints) != 6 || len(body.Legs) != 5 {
		t.Errorf("waypoints/legs = %d/%d", len(body.Waypoints), len(body.Legs))
	}

	w = doRequest(t, r, http.MethodGet, "/api/route/geojson", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/geo+json" {
		t.Fatalf("geojson = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if decode(t, w)["type"] != "FeatureCollection" {
		t.Errorf("geojson body = %s", w.Body)
	}

	if w := doRequest(t, r, http.MethodGet, "/api/trail/geojson", ""); w.Code != http.StatusOK {
		t.Errorf("trail geojson = %d", w.Code)
	}
}

func TestRouter_PutRoute(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	r := NewRouter(m, nil, RouterConfig{DefaultSpeedKmh: 50})

	yaml := `
name: Mumbai to Pune
waypoints:
  - {name: Mumbai, lat: 19.0760, lon: 72.8777}
  - {name: Pune, lat: 18.5204, lon: 73.8567}
`
	w := doRequest(t, r, http.MethodPut, "/api/route", yaml)
	if w.Code != http.StatusOK {
		t.Fatalf("put route = %d %s", w.Code, w.Body)
	}
	if m.Route().Name() != "Mumbai to Pune" || m.Route().Waypoint(0).SpeedKmh != 50 {
		t.Errorf("route not replaced: %q", m.Route().Name())
	}

	bad := "name: x\nwaypoints:\n  - {name: A, lat: 1, lon: 1}\n"
	if w := doRequest(t, r, http.MethodPut, "/api/route", bad); w.Code != http.StatusBadRequest {
		t.Errorf("invalid route = %d, want 400", w.Code)
	}
}

func TestRouter_SessionPoints(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	r := NewRouter(m, nil, RouterConfig{})
	if w := doRequest(t, r, http.MethodGet, "/api/sessions/session-1/points", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without history = %d, want 503", w.Code)
	}

	history := newMemoryHistory()
	m, src, _ := newTestMonitor(t, history)
	r = NewRouter(m, nil, RouterConfig{})
	doRequest(t, r, http.MethodPost, "/api/session/start", "")
	src.emit(fixAt(t, m, 0))
	src.emit(fixAt(t, m, 1))

	w := doRequest(t, r, http.MethodGet, "/api/sessions/session-1/points", "")
	if w.Code != http.StatusOK {
		t.Fatalf("points = %d %s", w.Code, w.Body)
	}
	if pts, _ := decode(t, w)["points"].([]any); len(pts) != 2 {
		t.Errorf("points = %v", pts)
	}

	if w := doRequest(t, r, http.MethodGet, "/api/sessions/other/points", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d, want 404", w.Code)
	}
}

func TestRouter_NotFoundAndCORS(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	r := NewRouter(m, nil, RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	if w := doRequest(t, r, http.MethodGet, "/api/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/route", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("disallowed origin = %d, want 403", w.Code)
	}
}

func TestCORSConfig(t *testing.T) {
	if !corsConfig(nil).AllowAllOrigins {
		t.Error("empty list should allow all")
	}
	if !corsConfig([]string{"*"}).AllowAllOrigins {
		t.Error("* should allow all")
	}
	cfg := corsConfig([]string{"http://a.example"})
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}
