package api

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/satindergrewal/soundscape/internal/events"
	"github.com/satindergrewal/soundscape/internal/mix"
)

const wsPingInterval = 15 * time.Second

// wsMessage is one websocket frame. Mix is set for mix updates only.
type wsMessage struct {
	Type string        `json:"type"`
	Mix  *mix.Snapshot `json:"mix,omitempty"`
}

// handleMixWebSocket pushes the current mix on connect and after every
// change, plus bare notifications when the library or presets change. A
// burst of mix changes collapses to the newest snapshot.
func (a *API) handleMixWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")

	mixSub := a.bus.SubscribeLatest(events.EventMixChanged)
	defer a.bus.Unsubscribe(events.EventMixChanged, mixSub)
	libSub := a.bus.Subscribe(events.EventLibraryChanged)
	defer a.bus.Unsubscribe(events.EventLibraryChanged, libSub)
	presetSub := a.bus.Subscribe(events.EventPresetsChanged)
	defer a.bus.Unsubscribe(events.EventPresetsChanged, presetSub)

	// Clients never send; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())

	snap := a.engine.Snapshot()
	if err := a.writeWS(ctx, conn, wsMessage{Type: string(events.EventMixChanged), Mix: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		var msg wsMessage
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			msg = wsMessage{Type: "ping"}
		case p, ok := <-mixSub:
			if !ok {
				return
			}
			s, _ := p["mix"].(mix.Snapshot)
			msg = wsMessage{Type: string(events.EventMixChanged), Mix: &s}
		case _, ok := <-libSub:
			if !ok {
				return
			}
			msg = wsMessage{Type: string(events.EventLibraryChanged)}
		case _, ok := <-presetSub:
			if !ok {
				return
			}
			msg = wsMessage{Type: string(events.EventPresetsChanged)}
		}
		if err := a.writeWS(ctx, conn, msg); err != nil {
			return
		}
	}
}

func (a *API) writeWS(ctx context.Context, conn *websocket.Conn, msg wsMessage) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(wctx, conn, msg); err != nil {
		a.logger.Debug().Err(err).Str("type", msg.Type).Msg("websocket write failed")
		return err
	}
	return nil
}
