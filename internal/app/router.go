// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/route"
	"github.com/relabs-tech/route_tracker/internal/store"
	"github.com/relabs-tech/route_tracker/internal/tracker"
	"github.com/relabs-tech/route_tracker/internal/view"
)

const requestIDKey = "request_id"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	AllowedOrigins  []string // empty or "*": any origin
	DefaultSpeedKmh float64  // for waypoints without a speed in uploaded routes
}

// NewRouter wires the REST API and the map websocket.
func NewRouter(m *Monitor, hub *Hub, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.Recovery(), cors.New(corsConfig(cfg.AllowedOrigins)))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("web: warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	h := &handlers{monitor: m, defaultSpeed: cfg.DefaultSpeedKmh}
	api := r.Group("/api")
	{
		api.GET("/health", h.health)

		api.GET("/route", h.getRoute)
		api.PUT("/route", h.putRoute)
		api.GET("/route/geojson", h.routeGeoJSON)
		api.GET("/trail/geojson", h.trailGeoJSON)

		api.GET("/progress", h.progress)
		api.POST("/session/start", h.start)
		api.POST("/session/stop", h.stop)

		api.GET("/sessions/:id/points", h.sessionPoints)
	}

	if hub != nil {
		r.GET("/ws", func(c *gin.Context) { hub.ServeWS(c.Writer, c.Request) })
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	all := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			all = true
		}
	}
	if all {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// requestID ensures every request has an ID for tracing and logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// requestLogger prints one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Printf("[HTTP] request_id=%s method=%s path=%s status=%d latency_ms=%.3f ip=%s",
			c.GetString(requestIDKey),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.ClientIP(),
		)
	}
}

type handlers struct {
	monitor      *Monitor
	defaultSpeed float64
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"tracking": h.monitor.Tracking(),
		"history":  h.monitor.HasHistory(),
		"time":     time.Now().UTC(),
	})
}

type routeResponse struct {
	Name            string           `json:"name"`
	Waypoints       []route.Waypoint `json:"waypoints"`
	Legs            []route.Leg      `json:"legs"`
	TotalDistanceKm float64          `json:"total_distance_km"`
	TotalETAMinutes float64          `json:"total_eta_minutes"`
}

func newRouteResponse(r *route.Route) routeResponse {
	return routeResponse{
		Name:            r.Name(),
		Waypoints:       r.Waypoints(),
		Legs:            r.Legs(),
		TotalDistanceKm: r.TotalDistanceKm(),
		TotalETAMinutes: r.TotalETAMinutes(),
	}
}

func (h *handlers) getRoute(c *gin.Context) {
	c.JSON(http.StatusOK, newRouteResponse(h.monitor.Route()))
}

// putRoute replaces the route with a YAML route file from the body.
func (h *handlers) putRoute(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := route.Parse(body, h.defaultSpeed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.monitor.SetRoute(r)
	c.JSON(http.StatusOK, newRouteResponse(r))
}

func (h *handlers) routeGeoJSON(c *gin.Context) {
	writeGeoJSON(c, h.monitor.RouteOverlay())
}

func (h *handlers) trailGeoJSON(c *gin.Context) {
	writeGeoJSON(c, h.monitor.TrailOverlay())
}

func writeGeoJSON(c *gin.Context, o view.Overlay) {
	data, err := o.GeoJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (h *handlers) progress(c *gin.Context) {
	p, err := h.monitor.Progress()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) start(c *gin.Context) {
	sess, err := h.monitor.Start(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *handlers) stop(c *gin.Context) {
	sess, stopped := h.monitor.Stop(c.Request.Context())
	resp := gin.H{"stopped": stopped}
	if stopped {
		resp["session"] = sess
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) sessionPoints(c *gin.Context) {
	history := h.monitor.History()
	if history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	id := c.Param("id")
	points, err := history.Points(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "points": points})
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracker.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, location.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, route.ErrInvalidRoute), errors.Is(err, route.ErrEmptyRoute):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("web: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
