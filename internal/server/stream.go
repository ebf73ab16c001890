package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/roundtable-labs/roundsync/internal/logutil"
	"github.com/roundtable-labs/roundsync/internal/metrics"
	"github.com/roundtable-labs/roundsync/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dev server serves local tooling; cross-origin pages are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MeetingStream upgrades the request and bridges the meeting's event
// feed onto the socket while forwarding inbound commands to the
// orchestrator.
func (h *handler) MeetingStream(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetMeeting(id); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if h.token != "" && c.Query("token") != h.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logutil.Error("ws_upgrade_failed", err, map[string]interface{}{"meetingId": id})
		return
	}
	defer conn.Close()

	metrics.WSClientConnected()
	defer metrics.WSClientDisconnected()

	feed, cancel := h.bus.Subscribe(c.Request.Context(), id)
	defer cancel()

	// Writer: one goroutine owns all writes to the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range feed {
			if err := conn.WriteMessage(websocket.TextMessage, evt.Frame); err != nil {
				return
			}
			metrics.ObserveEventSent(frameType(evt.Frame))
		}
	}()

	// Reader: commands from the client until the socket dies.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleCommand(id, data)
	}

	cancel()
	<-done
}

func frameType(frame json.RawMessage) string {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &tagged); err != nil {
		return "unknown"
	}
	return tagged.Type
}
