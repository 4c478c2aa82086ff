// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// FromRMC builds a fix from a recommended-minimum sentence.
func FromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       fixTime(m.Date, m.Time),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
		Source:     "nmea",
	}
}

// FromGGA builds a fix from a fix-data sentence. GGA carries no date, so
// the caller passes the last one seen on an RMC sentence. Time stays zero
// when date is not valid.
func FromGGA(m nmea.GGA, date nmea.Date) Fix {
	validity := ValidityValid
	if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
		validity = ValidityVoid
	}
	return Fix{
		Time:      fixTime(date, m.Time),
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Validity:  validity,
		Source:    "nmea",
	}
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !t.Valid || !d.Valid {
		return time.Time{}
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second,
		t.Millisecond*int(time.Millisecond), time.UTC)
}

// Decoder turns a stream of NMEA lines into fixes. It remembers the date
// from RMC so later GGA sentences can be timestamped, and rolls that date
// forward when a GGA time wraps past midnight.
type Decoder struct {
	date nmea.Date
	last time.Time
}

// Decode parses one line. ok is false for blank lines, non-sentences and
// sentence types that carry no position. Parse and checksum failures are
// returned as errors.
func (d *Decoder) Decode(line string) (fix Fix, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, err
	}

	switch m := sentence.(type) {
	case nmea.RMC:
		if m.Date.Valid {
			d.date = m.Date
		}
		fix := FromRMC(m)
		d.remember(fix.Time)
		return fix, true, nil
	case nmea.GGA:
		fix := FromGGA(m, d.date)
		if !fix.Time.IsZero() && d.last.Sub(fix.Time) > 12*time.Hour {
			fix.Time = fix.Time.AddDate(0, 0, 1)
		}
		d.remember(fix.Time)
		return fix, true, nil
	default:
		return Fix{}, false, nil
	}
}

func (d *Decoder) remember(t time.Time) {
	if t.After(d.last) {
		d.last = t
	}
}
