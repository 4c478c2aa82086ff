// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/route_tracker/internal/location"
	"github.com/relabs-tech/route_tracker/internal/tracker"
	"github.com/relabs-tech/route_tracker/internal/view"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is a map command sent by the browser.
type WSMessage struct {
	Action string `json:"action"` // zoom_in, zoom_out, recenter
}

// WSResponse is pushed to the browser.
type WSResponse struct {
	Type     string               `json:"type"` // overlay, animate, progress, error
	Overlay  *view.Overlay        `json:"overlay,omitempty"`
	Animate  *view.AnimateCommand `json:"animate,omitempty"`
	Progress *tracker.Progress    `json:"progress,omitempty"`
	Message  string               `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(resp)
}

// Hub fans monitor updates out to every connected map and applies the
// commands they send back.
type Hub struct {
	monitor *Monitor

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub and registers it as a sink of m.
func NewHub(m *Monitor) *Hub {
	h := &Hub{monitor: m, clients: map[*wsClient]struct{}{}}
	m.AddSink(h)
	return h
}

// Clients returns the number of connected maps.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and runs the command loop until the
// browser disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn}
	defer h.drop(c)

	// initial state before registering, so the snapshot is sent first
	routeOverlay := h.monitor.RouteOverlay()
	trailOverlay := h.monitor.TrailOverlay()
	anim := h.monitor.Animate()
	initial := []WSResponse{
		{Type: "overlay", Overlay: &routeOverlay},
		{Type: "overlay", Overlay: &trailOverlay},
		{Type: "animate", Animate: &anim},
	}
	if p, err := h.monitor.Progress(); err == nil {
		initial = append(initial, WSResponse{Type: "progress", Progress: &p})
	}
	for _, resp := range initial {
		if err := c.send(resp); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("web: map connected from %s", r.RemoteAddr)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}

		switch msg.Action {
		case "zoom_in":
			h.monitor.ZoomIn()
		case "zoom_out":
			h.monitor.ZoomOut()
		case "recenter":
			ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
			_, err := h.monitor.Recenter(ctx)
			cancel()
			if err != nil {
				h.sendError(c, err)
			}
		default:
			h.sendError(c, errors.New("unknown action: "+msg.Action))
		}
	}
}

func (h *Hub) sendError(c *wsClient, err error) {
	msg := err.Error()
	if errors.Is(err, location.ErrPermissionDenied) {
		msg = "permission denied: " + msg
	}
	if werr := c.send(WSResponse{Type: "error", Message: msg}); werr != nil {
		log.Printf("web: websocket write error: %v", werr)
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
	if ok {
		log.Println("web: map disconnected")
	}
}

func (h *Hub) broadcast(resp WSResponse) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(resp); err != nil {
			log.Printf("web: dropping map client: %v", err)
			h.drop(c)
		}
	}
}

func (h *Hub) PublishProgress(p tracker.Progress) {
	h.broadcast(WSResponse{Type: "progress", Progress: &p})
}

func (h *Hub) PublishOverlay(o view.Overlay) {
	h.broadcast(WSResponse{Type: "overlay", Overlay: &o})
}

func (h *Hub) PublishAnimate(cmd view.AnimateCommand) {
	h.broadcast(WSResponse{Type: "animate", Animate: &cmd})
}
