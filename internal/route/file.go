// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package route

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout of a route:
//
//	name: Delhi to Bangalore
//	default_speed_kmh: 60
//	waypoints:
//	  - name: Delhi
//	    lat: 28.6139
//	    lon: 77.2090
//	  - name: Jaipur
//	    lat: 26.9124
//	    lon: 75.7873
//	    speed_kmh: 80
type File struct {
	Name            string     `yaml:"name" validate:"required"`
	DefaultSpeedKmh float64    `yaml:"default_speed_kmh" validate:"gte=0"`
	Waypoints       []Waypoint `yaml:"waypoints" validate:"min=2,dive"`
}

var validate = validator.New()

// Parse decodes and validates a YAML route. Waypoints without a speed take
// the file's default_speed_kmh, or fallbackSpeed when that is unset too.
func Parse(data []byte, fallbackSpeed float64) (*Route, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse route: %w", err)
	}

	speed := f.DefaultSpeedKmh
	if speed == 0 {
		speed = fallbackSpeed
	}
	for i := range f.Waypoints {
		if f.Waypoints[i].SpeedKmh == 0 {
			f.Waypoints[i].SpeedKmh = speed
		}
	}

	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}
	return New(f.Name, f.Waypoints)
}

// LoadFile reads and parses a YAML route file.
func LoadFile(path string, fallbackSpeed float64) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route file: %w", err)
	}
	return Parse(data, fallbackSpeed)
}
