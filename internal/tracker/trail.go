package tracker

import "github.com/relabs-tech/route_tracker/internal/geo"

// Trail is the live breadcrumb path drawn behind the current position.
// Fixes that move less than the jitter threshold on both axes are dropped.
type Trail struct {
	threshold float64
	points    []geo.Point
}

// NewTrail returns an empty trail. A non-positive threshold keeps every
// point.
func NewTrail(threshold float64) *Trail {
	return &Trail{threshold: threshold}
}

// Add appends p when the trail is empty or p is a significant move from
// the last point. It reports whether p was kept.
func (t *Trail) Add(p geo.Point) bool {
	if n := len(t.points); n > 0 && t.threshold > 0 {
		if !geo.IsSignificantMove(t.points[n-1], p, t.threshold) {
			return false
		}
	}
	t.points = append(t.points, p)
	return true
}

// Points returns a copy of the trail.
func (t *Trail) Points() []geo.Point {
	out := make([]geo.Point, len(t.points))
	copy(out, t.points)
	return out
}

// Last returns the most recent point.
func (t *Trail) Last() (geo.Point, bool) {
	if len(t.points) == 0 {
		return geo.Point{}, false
	}
	return t.points[len(t.points)-1], true
}

// Len returns the number of points kept.
func (t *Trail) Len() int { return len(t.points) }

// LengthKm is the travelled distance along the trail.
func (t *Trail) LengthKm() float64 { return geo.PathLength(t.points) }

// Reset clears the trail.
func (t *Trail) Reset() { t.points = nil }
