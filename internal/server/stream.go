package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/thrane20/dillinger/internal/events"
)

const streamPing = 30 * time.Second

// handleInstallStream pushes the installation record over a websocket: the
// current record on connect, then every change until the client leaves.
func (s *Server) handleInstallStream(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, notConfigured("event stream"))
		return
	}
	rec, err := s.installs.Get(r.Context(), gameID, platformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Subscribe before accepting so no change between Get and the first
	// read is lost.
	ch, unsubscribe := s.hub.Subscribe(16, events.ForInstallation(gameID, platformID))
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())
	if err := writeEvent(ctx, conn, events.Event{
		Type:         events.TypeInstallation,
		GameID:       gameID,
		PlatformID:   platformID,
		Installation: rec,
		Time:         time.Now().UTC(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPing)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
			if ev.Installation != nil && ev.Installation.Status.Terminal() {
				conn.Close(websocket.StatusNormalClosure, string(ev.Installation.Status))
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
