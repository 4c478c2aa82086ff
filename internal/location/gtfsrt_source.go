// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/relabs-tech/route_tracker/internal/gps"
)

// ErrVehicleNotFound is returned when the feed has no position for the
// configured vehicle.
var ErrVehicleNotFound = errors.New("vehicle not in feed")

const knotsPerMeterPerSecond = 1.943844

// GTFSRTSource polls a GTFS-Realtime VehiclePositions feed and follows one
// vehicle.
type GTFSRTSource struct {
	url        string
	vehicleID  string
	poll       time.Duration
	httpClient *http.Client
}

// NewGTFSRTSource follows vehicleID in the feed at url, polling every
// poll (at least the watch time interval).
func NewGTFSRTSource(url, vehicleID string, poll time.Duration) *GTFSRTSource {
	return &GTFSRTSource{
		url:        url,
		vehicleID:  vehicleID,
		poll:       poll,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RequestPermission fetches the feed once. 401 and 403 map to
// ErrPermissionDenied.
func (s *GTFSRTSource) RequestPermission(ctx context.Context) error {
	_, err := s.fetch(ctx)
	return err
}

func (s *GTFSRTSource) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return gps.Fix{}, err
	}
	return ParseVehicleFix(data, s.vehicleID)
}

// Watch polls until the subscription is removed. Fetch errors are logged
// and retried on the next tick; a permission error ends the watch.
func (s *GTFSRTSource) Watch(ctx context.Context, opts WatchOptions, h Handler) (Subscription, error) {
	if err := s.RequestPermission(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g := newGate(opts, nil)
	interval := max(s.poll, opts.TimeInterval, time.Second)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastTS time.Time
		for {
			fix, err := s.CurrentPosition(ctx)
			switch {
			case errors.Is(err, ErrPermissionDenied):
				log.Printf("gtfsrt: %v, stopping watch", err)
				return
			case err != nil:
				if ctx.Err() == nil {
					log.Printf("gtfsrt: %v", err)
				}
			case !fix.Time.IsZero() && fix.Time.Equal(lastTS):
				// vehicle has not reported since the last poll
			default:
				lastTS = fix.Time
				if g.allow(fix) {
					h(fix)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return &cancelSubscription{cancel: cancel, done: done}, nil
}

func (s *GTFSRTSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("gtfsrt request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrPermissionDenied, resp.StatusCode, s.url)
	default:
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, s.url)
	}
	return io.ReadAll(resp.Body)
}

// ParseVehicleFix decodes a FeedMessage and returns the position of the
// vehicle whose descriptor ID (or entity ID) is vehicleID.
func ParseVehicleFix(data []byte, vehicleID string) (gps.Fix, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return gps.Fix{}, fmt.Errorf("gtfsrt decode: %w", err)
	}

	for _, e := range fm.Entity {
		vp := e.Vehicle
		if vp == nil || vp.Position == nil {
			continue
		}
		id := e.GetId()
		if vp.Vehicle != nil && vp.Vehicle.Id != nil {
			id = *vp.Vehicle.Id
		}
		if id != vehicleID {
			continue
		}

		pos := vp.Position
		fix := gps.Fix{
			Latitude:  float64(pos.GetLatitude()),
			Longitude: float64(pos.GetLongitude()),
			CourseDeg: float64(pos.GetBearing()),
			Validity:  gps.ValidityValid,
			Source:    "gtfsrt",
		}
		if pos.Speed != nil {
			fix.SpeedKnots = float64(*pos.Speed) * knotsPerMeterPerSecond
		}
		switch {
		case vp.Timestamp != nil:
			fix.Time = time.Unix(int64(*vp.Timestamp), 0).UTC()
		case fm.Header != nil && fm.Header.Timestamp != nil:
			fix.Time = time.Unix(int64(*fm.Header.Timestamp), 0).UTC()
		}
		return fix, nil
	}
	return gps.Fix{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
}
