package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/route"
	"github.com/relabs-tech/route_tracker/internal/store"
	"github.com/relabs-tech/route_tracker/internal/tracker"
	"github.com/relabs-tech/route_tracker/internal/view"
)

// manualSource delivers fixes only when the test calls emit.
type manualSource struct {
	mu      sync.Mutex
	deny    bool
	handler location.Handler
	removed int
	current gps.Fix
}

type removeFunc func()

func (f removeFunc) Remove() { f() }

func (s *manualSource) RequestPermission(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deny {
		return fmt.Errorf("%w: test", location.ErrPermissionDenied)
	}
	return nil
}

func (s *manualSource) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	if err := s.RequestPermission(ctx); err != nil {
		return gps.Fix{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *manualSource) Watch(_ context.Context, _ location.WatchOptions, h location.Handler) (location.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	var once sync.Once
	return removeFunc(func() {
		once.Do(func() {
			s.mu.Lock()
			s.handler = nil
			s.removed++
			s.mu.Unlock()
		})
	}), nil
}

func (s *manualSource) emit(f gps.Fix) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(f)
	}
}

func (s *manualSource) removedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// recordingSink keeps what the monitor published.
type recordingSink struct {
	mu       sync.Mutex
	progress []tracker.Progress
	overlays []view.Overlay
	animates []view.AnimateCommand
}

func (s *recordingSink) PublishProgress(p tracker.Progress) {
	s.mu.Lock()
	s.progress = append(s.progress, p)
	s.mu.Unlock()
}

func (s *recordingSink) PublishOverlay(o view.Overlay) {
	s.mu.Lock()
	s.overlays = append(s.overlays, o)
	s.mu.Unlock()
}

func (s *recordingSink) PublishAnimate(cmd view.AnimateCommand) {
	s.mu.Lock()
	s.animates = append(s.animates, cmd)
	s.mu.Unlock()
}

func (s *recordingSink) counts() (progress, overlays, animates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.progress), len(s.overlays), len(s.animates)
}

func (s *recordingSink) lastAnimate() view.AnimateCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.animates[len(s.animates)-1]
}

// memoryHistory is an in-memory History.
type memoryHistory struct {
	mu       sync.Mutex
	sessions map[string]string
	ended    map[string]bool
	points   map[string][]store.TrailPoint
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{
		sessions: map[string]string{},
		ended:    map[string]bool{},
		points:   map[string][]store.TrailPoint{},
	}
}

func (h *memoryHistory) StartSession(_ context.Context, id, routeName string, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = routeName
	return nil
}

func (h *memoryHistory) AppendPoint(_ context.Context, sessionID string, p store.TrailPoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points[sessionID] = append(h.points[sessionID], p)
	return nil
}

func (h *memoryHistory) EndSession(_ context.Context, id string, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrSessionNotFound, id)
	}
	h.ended[id] = true
	return nil
}

func (h *memoryHistory) Points(_ context.Context, sessionID string) ([]store.TrailPoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSessionNotFound, sessionID)
	}
	return append([]store.TrailPoint{}, h.points[sessionID]...), nil
}

func testRoute(t *testing.T) *route.Route {
	t.Helper()
	r, err := route.New("Delhi to Bangalore", route.DelhiToBangalore(route.DefaultSpeedKmh))
	if err != nil {
		t.Fatalf("route.New: %v", err)
	}
	return r
}

func newTestMonitor(t *testing.T, history History) (*Monitor, *manualSource, *recordingSink) {
	t.Helper()
	src := &manualSource{}
	tr := tracker.New(testRoute(t), tracker.WithIDGenerator(func() string { return "session-1" }))
	m := NewMonitor(context.Background(), tr, src, history, DefaultMonitorConfig())
	sink := &recordingSink{}
	m.AddSink(sink)
	return m, src, sink
}

func fixAt(t *testing.T, m *Monitor, i int) gps.Fix {
	t.Helper()
	w := m.Route().Waypoint(i)
	return gps.Fix{Latitude: w.Latitude, Longitude: w.Longitude, Validity: gps.ValidityValid}
}
