// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/route_tracker/internal/config"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/route"
	"github.com/relabs-tech/route_tracker/internal/tracker"
)

// RunMockConsole drives a tracker with the mock source and prints
// progress, without MQTT. It returns once the replay is exhausted.
func RunMockConsole(w io.Writer) error {
	cfg := config.Get()
	r, err := LoadRoute(cfg)
	if err != nil {
		return err
	}
	return runMockConsole(w, r, cfg.MockStepsPerLeg, 100*time.Millisecond)
}

func runMockConsole(w io.Writer, r *route.Route, stepsPerLeg int, interval time.Duration) error {
	tr := tracker.New(r)
	if _, err := tr.Start(); err != nil {
		return err
	}

	src := location.NewMockSource(r, stepsPerLeg, interval)

	// the mock source delivers fixes one at a time, so tr needs no lock here
	sub, err := src.Watch(context.Background(), location.WatchOptions{}, func(f gps.Fix) {
		if _, err := tr.OnFix(f); err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			return
		}
		p, err := tr.Progress()
		if err != nil {
			return
		}
		fmt.Fprintln(w, formatProgress(p))
	})
	if err != nil {
		return err
	}
	<-location.Done(sub)
	sub.Remove()

	s, _ := tr.Stop()
	fmt.Fprintf(w, "session %s finished\n", s.ID)
	return nil
}
