package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleEvents upgrades the request to a websocket and streams job lifecycle
// events until the client disconnects. Events emitted while the subscriber's
// buffer is full are dropped; the stream is a live feed, not a journal.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event stream not enabled"))
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.events.Subscribe(ctx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				return err
			}
		}
	}
}
