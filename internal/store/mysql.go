// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps tracking history: one row per session and one per
// recorded trail point.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/relabs-tech/route_tracker/internal/geo"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

const schemaSessions = `CREATE TABLE IF NOT EXISTS tracking_sessions (
	id          VARCHAR(36)  NOT NULL PRIMARY KEY,
	route_name  VARCHAR(255) NOT NULL,
	started_at  DATETIME(3)  NOT NULL,
	ended_at    DATETIME(3)  NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const schemaPoints = `CREATE TABLE IF NOT EXISTS trail_points (
	id          BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
	session_id  VARCHAR(36)  NOT NULL,
	lat         DOUBLE       NOT NULL,
	lon         DOUBLE       NOT NULL,
	recorded_at DATETIME(3)  NOT NULL,
	leg_index   INT          NOT NULL,
	INDEX idx_trail_points_session (session_id, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// SessionRecord is a stored session.
type SessionRecord struct {
	ID        string     `json:"id"`
	RouteName string     `json:"route_name"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// TrailPoint is a stored fix.
type TrailPoint struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
	LegIndex   int       `json:"leg_index"`
}

// Point returns the stored position.
func (p TrailPoint) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// MySQLStore writes history to MySQL.
type MySQLStore struct {
	db *sql.DB
}

// New wraps an open database.
func New(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Open connects with dsn and pings the server. parseTime is always on so
// DATETIME columns scan into time.Time.
func Open(dsn string) (*MySQLStore, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	log.Println("store: connected to MySQL")
	return New(db), nil
}

// Close closes the database.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when missing.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schemaSessions, schemaPoints} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StartSession records a new session.
func (s *MySQLStore) StartSession(ctx context.Context, id, routeName string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_sessions (id, route_name, started_at) VALUES (?, ?, ?)`,
		id, routeName, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session %s: %w", id, err)
	}
	return nil
}

// AppendPoint records one trail point.
func (s *MySQLStore) AppendPoint(ctx context.Context, sessionID string, p TrailPoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trail_points (session_id, lat, lon, recorded_at, leg_index) VALUES (?, ?, ?, ?, ?)`,
		sessionID, p.Latitude, p.Longitude, p.RecordedAt.UTC(), p.LegIndex)
	if err != nil {
		return fmt.Errorf("insert trail point: %w", err)
	}
	return nil
}

// EndSession sets the end time of a session.
func (s *MySQLStore) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracking_sessions SET ended_at = ? WHERE id = ?`,
		endedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Session loads one session.
func (s *MySQLStore) Session(ctx context.Context, id string) (SessionRecord, error) {
	var (
		rec   SessionRecord
		ended sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, route_name, started_at, ended_at FROM tracking_sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.RouteName, &rec.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("select session %s: %w", id, err)
	}
	if ended.Valid {
		t := ended.Time
		rec.EndedAt = &t
	}
	return rec, nil
}

// Points returns the trail of a session in recording order. An unknown
// session yields ErrSessionNotFound.
func (s *MySQLStore) Points(ctx context.Context, sessionID string) ([]TrailPoint, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lon, recorded_at, leg_index FROM trail_points WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("select trail points: %w", err)
	}
	defer rows.Close()

	points := []TrailPoint{}
	for rows.Next() {
		var p TrailPoint
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.RecordedAt, &p.LegIndex); err != nil {
			return nil, fmt.Errorf("scan trail point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trail points: %w", err)
	}
	return points, nil
}
