// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Location source kinds accepted by LOCATION_SOURCE.
const (
	SourceMQTT   = "mqtt"
	SourceNMEA   = "nmea"
	SourceGTFSRT = "gtfsrt"
	SourceMock   = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDTracker  string
	MQTTClientIDProducer string
	MQTTClientIDGPS      string
	MQTTClientIDConsole  string

	// Topics
	TopicGPS      string
	TopicProgress string
	TopicOverlay  string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Location source
	LocationSource string
	GTFSRTURL      string
	GTFSRTVehicle  string
	GTFSRTPoll     int // milliseconds

	// Route
	RouteFile       string // empty: built-in Delhi to Bangalore
	DefaultSpeedKmh float64

	// Tracking
	WatchTimeInterval     int     // milliseconds
	WatchDistanceInterval float64 // meters
	JitterThreshold       float64 // degrees
	MockStepsPerLeg       int
	AutoStart             bool // start a session as soon as the tracker runs

	// Map view
	LiveZoomDelta     float64
	RouteZoomDelta    float64
	AnimateDurationMS int

	// Web Server
	WebServerPort      int
	CORSAllowedOrigins []string

	// History (optional)
	MySQLDSN string
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once.
//   - configMu guards reads against the one write.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDTracker:   "route-tracker",
		MQTTClientIDProducer:  "route-tracker-producer",
		MQTTClientIDGPS:       "route-tracker-gps",
		MQTTClientIDConsole:   "route-tracker-console",
		TopicGPS:              "route/gps",
		TopicProgress:         "route/progress",
		TopicOverlay:          "route/overlay",
		GPSBaudRate:           9600,
		LocationSource:        SourceMQTT,
		GTFSRTPoll:            15000,
		DefaultSpeedKmh:       60,
		WatchTimeInterval:     2000,
		WatchDistanceInterval: 5,
		JitterThreshold:       0.00005,
		MockStepsPerLeg:       20,
		AutoStart:             true,
		LiveZoomDelta:         0.01,
		RouteZoomDelta:        10,
		AnimateDurationMS:     500,
		WebServerPort:         8080,
		CORSAllowedOrigins:    []string{"*"},
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped; unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_PROGRESS":
		c.TopicProgress = value
	case "TOPIC_OVERLAY":
		c.TopicOverlay = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 300, 921600)

	// Location source
	case "LOCATION_SOURCE":
		switch value {
		case SourceMQTT, SourceNMEA, SourceGTFSRT, SourceMock:
			c.LocationSource = value
		default:
			return fmt.Errorf("LOCATION_SOURCE must be one of mqtt, nmea, gtfsrt, mock, got %q", value)
		}
	case "GTFSRT_URL":
		c.GTFSRTURL = value
	case "GTFSRT_VEHICLE_ID":
		c.GTFSRTVehicle = value
	case "GTFSRT_POLL_INTERVAL":
		c.GTFSRTPoll, err = parseInt(key, value, 1000, 3600000)

	// Route
	case "ROUTE_FILE":
		c.RouteFile = value
	case "DEFAULT_SPEED_KMH":
		c.DefaultSpeedKmh, err = parseFloat(key, value, 0.1, 2000)

	// Tracking
	case "WATCH_TIME_INTERVAL":
		c.WatchTimeInterval, err = parseInt(key, value, 0, 3600000)
	case "WATCH_DISTANCE_INTERVAL":
		c.WatchDistanceInterval, err = parseFloat(key, value, 0, 100000)
	case "JITTER_THRESHOLD":
		c.JitterThreshold, err = parseFloat(key, value, 0, 1)
	case "MOCK_STEPS_PER_LEG":
		c.MockStepsPerLeg, err = parseInt(key, value, 1, 10000)
	case "AUTO_START":
		c.AutoStart, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AUTO_START %q: %w", value, err)
		}

	// Map view
	case "LIVE_ZOOM_DELTA":
		c.LiveZoomDelta, err = parseFloat(key, value, 1e-6, 180)
	case "ROUTE_ZOOM_DELTA":
		c.RouteZoomDelta, err = parseFloat(key, value, 1e-6, 180)
	case "ANIMATE_DURATION_MS":
		c.AnimateDurationMS, err = parseInt(key, value, 0, 60000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "CORS_ALLOWED_ORIGINS":
		c.CORSAllowedOrigins = splitList(value)

	// History
	case "MYSQL_DSN":
		c.MySQLDSN = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseFloat(key, value string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if !(v >= lo && v <= hi) {
		return 0, fmt.Errorf("%s must be %g-%g, got %g", key, lo, hi, v)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate checks that required fields are set and that the chosen
// location source has what it needs.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.LocationSource {
	case SourceNMEA:
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required for LOCATION_SOURCE=nmea")
		}
	case SourceGTFSRT:
		if c.GTFSRTURL == "" {
			return fmt.Errorf("GTFSRT_URL is required for LOCATION_SOURCE=gtfsrt")
		}
		if c.GTFSRTVehicle == "" {
			return fmt.Errorf("GTFSRT_VEHICLE_ID is required for LOCATION_SOURCE=gtfsrt")
		}
	}
	return nil
}

// WatchInterval is WATCH_TIME_INTERVAL as a duration.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchTimeInterval) * time.Millisecond
}

// AnimateDuration is ANIMATE_DURATION_MS as a duration.
func (c *Config) AnimateDuration() time.Duration {
	return time.Duration(c.AnimateDurationMS) * time.Millisecond
}

// GTFSRTPollInterval is GTFSRT_POLL_INTERVAL as a duration.
func (c *Config) GTFSRTPollInterval() time.Duration {
	return time.Duration(c.GTFSRTPoll) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
