package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
)

const (
	// wsWriteWait bounds a single frame write.
	wsWriteWait = 10 * time.Second

	// wsEventBuffer is the per-connection event queue. Events beyond it are
	// dropped rather than blocking the publisher.
	wsEventBuffer = 100

	// wsHeartbeatInterval keeps idle connections alive through proxies.
	wsHeartbeatInterval = 30 * time.Second
)

// EventsHandler streams bus events to WebSocket clients.
type EventsHandler struct {
	bus            *events.Bus
	originPatterns []string
	log            zerolog.Logger
}

// NewEventsHandler creates a new WebSocket events handler.
func NewEventsHandler(bus *events.Bus, originPatterns []string, log zerolog.Logger) *EventsHandler {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &EventsHandler{
		bus:            bus,
		originPatterns: originPatterns,
		log:            log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests. The optional types query
// parameter narrows the stream to a comma-separated list of event types.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	typesFilter := r.URL.Query().Get("types")

	var allowedTypes map[events.EventType]bool
	if typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	h.log.Info().
		Str("types_filter", typesFilter).
		Msg("Client connected to event stream")

	// Per-connection queue. The bus dispatches on the publisher's goroutine,
	// so the subscription handler must never block.
	eventChan := make(chan *events.Event, wsEventBuffer)

	eventHandler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	if allowedTypes == nil {
		for _, eventType := range events.Types() {
			h.bus.Subscribe(eventType, eventHandler)
		}
	} else {
		for eventType := range allowedTypes {
			h.bus.Subscribe(eventType, eventHandler)
		}
	}

	// The stream is write-only. CloseRead discards client frames and cancels
	// the context once the connection drops.
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		h.log.Debug().Err(err).Msg("Initial write failed, closing stream")
		return
	}

	heartbeat := time.NewTicker(wsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			h.log.Debug().
				Str("event_type", string(event.Type)).
				Msg("Sending event to client")

			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed, closing stream")
				return
			}

		case <-heartbeat.C:
			err := h.write(ctx, conn, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			if err != nil {
				h.log.Debug().Err(err).Msg("Heartbeat write failed, closing stream")
				return
			}
		}
	}
}

// write sends one payload as a text frame.
func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteWait)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
