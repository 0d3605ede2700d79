package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/rebalancr/rebalancr/internal/events"
)

// handleEventsWS handles GET /api/events/ws. It streams pipeline events to
// the client as JSON messages. A slow client drops events rather than
// backpressuring the pipeline.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	var allowed map[events.EventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	// Buffered so Emit never blocks on this subscriber.
	eventChan := make(chan events.Event, 100)
	unsubscribe := s.events.Subscribe(func(event events.Event) {
		if allowed != nil && !allowed[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			s.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	})
	defer unsubscribe()

	s.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected to event stream")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			payload, err := json.Marshal(event)
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to encode event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				s.log.Debug().Err(err).Msg("Event stream client disconnected")
				return
			}
		}
	}
}
