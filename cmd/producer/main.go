package main

import (
	"log"

	"github.com/relabs-tech/route_tracker/internal/app"
	"github.com/relabs-tech/route_tracker/internal/config"
)

func main() {
	log.Println("starting route-tracker MQTT producer (mock route replay)")

	if err := config.InitGlobal("route_tracker_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMockProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
