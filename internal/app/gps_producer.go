// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"io"
	"log"

	"github.com/relabs-tech/route_tracker/internal/config"
	"github.com/relabs-tech/route_tracker/internal/gps"
	"github.com/relabs-tech/route_tracker/internal/location"
)

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes each position fix as JSON to the GPS topic.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// ---- 2) Open GPS serial port ----
	port, err := location.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)

	return pumpNMEA(port, client, cfg.TopicGPS)
}

// pumpNMEA publishes every fix decoded from r until r fails. Void fixes
// are published too, so consumers see the receiver lose its lock.
func pumpNMEA(r io.Reader, client MQTTPublisher, topic string) error {
	reader := bufio.NewReader(r)
	var dec gps.Decoder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("gps: read error: %v", err)
			return err
		}

		fix, ok, err := dec.Decode(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}
		if !ok {
			continue
		}

		payload, err := json.Marshal(fix)
		if err != nil {
			log.Printf("gps: json marshal error: %v", err)
			continue
		}

		// retained, so a new subscriber gets the latest fix at once
		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("gps: publish error: %v", token.Error())
			continue
		}

		log.Printf("gps: published fix lat=%.6f lon=%.6f validity=%s", fix.Latitude, fix.Longitude, fix.Validity)
	}
}
