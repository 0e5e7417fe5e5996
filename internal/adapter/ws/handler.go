// Package ws implements the WebSocket adapter that pushes staffing updates
// to the clients of a tenant.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/StaffForge/internal/middleware"
)

const defaultWriteTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection of one tenant.
type conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	tenantID string
}

// Hub tracks the active connections per tenant and fans messages out to them.
type Hub struct {
	mu           sync.RWMutex
	conns        map[string]map[*conn]struct{}
	origins      []string
	writeTimeout time.Duration
}

// NewHub creates a hub. origins lists the accepted Origin host patterns; an
// empty list skips the origin check.
func NewHub(origins []string) *Hub {
	return &Hub{
		conns:        make(map[string]map[*conn]struct{}),
		origins:      origins,
		writeTimeout: defaultWriteTimeout,
	}
}

// HandleWS upgrades the request and registers the connection under the
// tenant of the request context.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	tenantID := middleware.TenantIDFromContext(r.Context())
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel, tenantID: tenantID}
	h.add(c)

	slog.InfoContext(ctx, "websocket connected", "remote", r.RemoteAddr)

	// Read loop to notice disconnects and consume pings.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// BroadcastEvent marshals payload and sends it to the clients of the tenant
// in ctx.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.BroadcastToTenant(ctx, middleware.TenantIDFromContext(ctx), Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// BroadcastToTenant sends msg to every connection of tenantID.
func (h *Hub) BroadcastToTenant(ctx context.Context, tenantID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[tenantID]))
	for c := range h.conns[tenantID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.DebugContext(ctx, "websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections of all tenants.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// TenantConnectionCount returns the number of active connections of tenantID.
func (h *Hub) TenantConnectionCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[tenantID])
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.tenantID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[c.tenantID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[c.tenantID]
	if _, ok := set[c]; !ok {
		return
	}
	c.cancel()
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.tenantID)
	}
	slog.Info("websocket disconnected", "tenant_id", c.tenantID)
}
