package http

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"go-screen-recorder/internal/core/domain"
)

// eventMessage is the websocket form of a ChunkEvent.
type eventMessage struct {
	Type           string  `json:"type"`
	SessionID      string  `json:"sessionId"`
	Sequence       int     `json:"sequence"`
	ChunkSize      int     `json:"chunkSize"`
	TotalSize      int64   `json:"totalSize"`
	ActiveDuration float64 `json:"activeDuration"`
}

func newEventMessage(ev domain.ChunkEvent) eventMessage {
	typ := "chunk"
	if ev.Final {
		typ = "final"
	}
	return eventMessage{
		Type:           typ,
		SessionID:      ev.SessionID,
		Sequence:       ev.Sequence,
		ChunkSize:      ev.ChunkSize,
		TotalSize:      ev.TotalSize,
		ActiveDuration: ev.ActiveDuration.Seconds(),
	}
}

// streamEvents forwards chunk events of the current session until the final
// event is sent or the client goes away.
func (h *Handler) streamEvents(c *websocket.Conn) {
	defer c.Close()

	events, unsubscribe, err := h.recorder.Subscribe()
	if err != nil {
		_ = c.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
		return
	}
	defer unsubscribe()

	// Reads only detect the client closing the socket.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.WriteJSON(newEventMessage(ev)); err != nil {
				h.logger.Debugw("event stream write failed", "session", ev.SessionID, "error", err)
				return
			}
		case <-gone:
			return
		}
	}
}
