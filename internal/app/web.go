// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/route_tracker/internal/config"
	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/route"
	"github.com/relabs-tech/route_tracker/internal/store"
	"github.com/relabs-tech/route_tracker/internal/tracker"
)

// LoadRoute reads ROUTE_FILE, or builds the Delhi to Bangalore route when
// it is empty.
func LoadRoute(cfg *config.Config) (*route.Route, error) {
	if cfg.RouteFile != "" {
		return route.LoadFile(cfg.RouteFile, cfg.DefaultSpeedKmh)
	}
	return route.New("Delhi to Bangalore", route.DelhiToBangalore(cfg.DefaultSpeedKmh))
}

// NewSource builds the location source named by LOCATION_SOURCE. client
// is only used by the mqtt source.
func NewSource(cfg *config.Config, r *route.Route, client mqtt.Client) (location.Source, error) {
	switch cfg.LocationSource {
	case config.SourceMQTT:
		return location.NewMQTTSource(client, cfg.TopicGPS), nil
	case config.SourceNMEA:
		return location.NewSerialNMEASource(cfg.GPSSerialPort, cfg.GPSBaudRate), nil
	case config.SourceGTFSRT:
		return location.NewGTFSRTSource(cfg.GTFSRTURL, cfg.GTFSRTVehicle, cfg.GTFSRTPollInterval()), nil
	case config.SourceMock:
		return location.NewMockSource(r, cfg.MockStepsPerLeg, cfg.WatchInterval()), nil
	default:
		return nil, fmt.Errorf("unknown location source %q", cfg.LocationSource)
	}
}

func monitorConfig(cfg *config.Config) MonitorConfig {
	return MonitorConfig{
		Watch: location.WatchOptions{
			TimeInterval:     cfg.WatchInterval(),
			DistanceInterval: cfg.WatchDistanceInterval,
		},
		JitterThreshold: cfg.JitterThreshold,
		LiveZoomDelta:   cfg.LiveZoomDelta,
		RouteZoomDelta:  cfg.RouteZoomDelta,
		AnimateDuration: cfg.AnimateDuration(),
	}
}

// RunTracker runs the route tracker: location source, progress over MQTT
// and websocket, the REST API and, when MYSQL_DSN is set, session history.
func RunTracker() error {
	cfg := config.Get()

	r, err := LoadRoute(cfg)
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	log.Printf("tracker: route %q, %d waypoints, %.1f km, %.0f min",
		r.Name(), r.Len(), r.TotalDistanceKm(), r.TotalETAMinutes())

	// 1) MQTT for the fix source and the progress topics
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTracker)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) optional history
	var history History
	if cfg.MySQLDSN != "" {
		st, err := store.Open(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = st.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
		history = st
	}

	src, err := NewSource(cfg, r, client)
	if err != nil {
		return err
	}
	log.Printf("tracker: location source %s", cfg.LocationSource)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(ctx, tracker.New(r), src, history, monitorConfig(cfg))
	m.AddSink(NewPublisher(client, cfg.TopicProgress, cfg.TopicOverlay))
	hub := NewHub(m)
	m.SetRoute(r) // publishes the route overlay

	if cfg.AutoStart {
		if _, err := m.Start(ctx); err != nil {
			if errors.Is(err, location.ErrPermissionDenied) {
				return err
			}
			log.Printf("tracker: auto start failed: %v", err)
		}
	}
	defer m.Stop(context.Background())

	// 3) REST API and map websocket
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: NewRouter(m, hub, RouterConfig{
			AllowedOrigins:  cfg.CORSAllowedOrigins,
			DefaultSpeedKmh: cfg.DefaultSpeedKmh,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return err
	}

	log.Println("tracker: shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
