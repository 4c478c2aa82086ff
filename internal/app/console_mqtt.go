// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/route_tracker/internal/config"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/tracker"
)

// RunConsoleMQTT prints fixes and progress reports as they arrive.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	// Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Println(formatFix(f))
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Subscribe to progress
	progressToken := client.Subscribe(cfg.TopicProgress, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p tracker.Progress
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: progress unmarshal error: %v", err)
			return
		}
		fmt.Println(formatProgress(p))
	})
	progressToken.Wait()
	if progressToken.Error() != nil {
		return progressToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicProgress)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf(
		"[GPS ]  time=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time.Format("15:04:05"), f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
	)
}

func formatProgress(p tracker.Progress) string {
	if p.AtDestination {
		return fmt.Sprintf("[PROG]  %s  at destination %s  elapsed=%s",
			p.RouteName, p.CurrentWaypoint, p.ElapsedText)
	}
	return fmt.Sprintf("[PROG]  %s  leg=%d %s -> %s  eta=%.0fmin  remaining=%.1fkm/%.0fmin  elapsed=%s",
		p.RouteName, p.CurrentLegIndex, p.CurrentWaypoint, p.NextWaypoint,
		p.ETAMinutes, p.RemainingKm, p.RemainingMinutes, p.ElapsedText)
}
