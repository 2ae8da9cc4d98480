package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/broadcast"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultHeartbeat = 25 * time.Second

// EventsHandler streams broadcast events to clients as Server-Sent Events
type EventsHandler struct {
	hub       *broadcast.Hub
	buffer    int
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler creates a new EventsHandler. buffer is the per-client queue size.
func NewEventsHandler(hub *broadcast.Hub, buffer int, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:       hub,
		buffer:    buffer,
		heartbeat: defaultHeartbeat,
		logger:    logger,
	}
}

// RegisterRoutes registers the event stream routes
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/events", h.Stream)
	r.Get("/api/events/stats", h.Stats)
}

// Stream holds the connection open and writes one SSE frame per event
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.hub.Subscribe(h.buffer)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Tell the client we are live before the first event arrives
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Stats reports hub counters
func (h *EventsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.hub.Stats())
}
