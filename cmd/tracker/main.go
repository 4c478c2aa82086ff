// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/route_tracker/internal/app"
	"github.com/relabs-tech/route_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "route_tracker_config.txt", "Path to configuration file")
	flag.Parse()

	app.InitLogging()
	log.Println("starting route-tracker (location source → map, MQTT, history)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunTracker(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
