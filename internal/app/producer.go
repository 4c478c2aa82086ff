// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/route_tracker/internal/config"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/location"
)

// RunMockProducer replays the configured route as GPS fixes on the GPS
// topic, one every WATCH_TIME_INTERVAL, until interrupted.
func RunMockProducer() error {
	cfg := config.Get()

	r, err := LoadRoute(cfg)
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src := location.NewMockSource(r, cfg.MockStepsPerLeg, cfg.WatchInterval())
	sub, err := src.Watch(context.Background(), location.WatchOptions{}, func(f gps.Fix) {
		payload, err := json.Marshal(f)
		if err != nil {
			log.Printf("producer: json marshal error: %v", err)
			return
		}
		token := client.Publish(cfg.TopicGPS, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("producer: publish error: %v", token.Error())
			return
		}
		log.Printf("producer: published fix lat=%.5f lon=%.5f", f.Latitude, f.Longitude)
	})
	if err != nil {
		return err
	}
	defer sub.Remove()
	log.Printf("producer: replaying %q on %s", r.Name(), cfg.TopicGPS)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("producer: shutting down")
	return nil
}
