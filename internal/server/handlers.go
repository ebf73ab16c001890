package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roundtable-labs/roundsync/internal/events"
	"github.com/roundtable-labs/roundsync/internal/logutil"
	"github.com/roundtable-labs/roundsync/internal/metrics"
	"github.com/roundtable-labs/roundsync/internal/orchestrator"
	"github.com/roundtable-labs/roundsync/internal/store"
)

type handler struct {
	store *store.Store
	bus   *events.Bus
	orch  *orchestrator.Orchestrator
	token string
}

// Health reports liveness.
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListMeetings returns all meetings.
func (h *handler) ListMeetings(c *gin.Context) {
	meetings, err := h.store.ListMeetings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

// GetMeeting returns one meeting.
func (h *handler) GetMeeting(c *gin.Context) {
	m, err := h.store.GetMeeting(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMeeting registers a new meeting.
func (h *handler) CreateMeeting(c *gin.Context) {
	var req struct {
		Topic     string `json:"topic"`
		MaxRounds int    `json:"max_rounds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.orch.CreateMeeting(req.Topic, req.MaxRounds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, m)
}

// MeetingStatus serves the poller's snapshot: the meeting row plus the
// persisted message count, in the status wire form.
func (h *handler) MeetingStatus(c *gin.Context) {
	metrics.ObserveStatusRequest()

	id := c.Param("id")
	m, err := h.store.GetMeeting(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := h.store.CountMessages(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The store's background flag can lag the orchestrator by one
	// write; the in-memory view wins.
	background := m.BackgroundRunning || h.orch.Running(id)

	c.JSON(http.StatusOK, gin.H{
		"meeting_id":         m.ID,
		"status":             m.Status,
		"current_round":      m.CurrentRound,
		"max_rounds":         m.MaxRounds,
		"message_count":      count,
		"background_running": background,
	})
}

// MeetingMessages returns the persisted transcript.
func (h *handler) MeetingMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetMeeting(id); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	msgs, err := h.store.ListMessages(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// inboundCommand is a frame received from a websocket client.
type inboundCommand struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Rounds  int    `json:"rounds,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

func (h *handler) handleCommand(meetingID string, data []byte) {
	var cmd inboundCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		logutil.Error("ws_command_decode_failed", err, map[string]interface{}{
			"meetingId": meetingID,
		})
		return
	}
	switch cmd.Type {
	case "user_message":
		if err := h.orch.UserMessage(meetingID, cmd.Content); err != nil {
			logutil.Error("ws_user_message_failed", err, map[string]interface{}{
				"meetingId": meetingID,
			})
		}
	case "start_round":
		if err := h.orch.StartRound(meetingID, cmd.Rounds, cmd.Topic, cmd.Locale); err != nil {
			logutil.Error("ws_start_round_failed", err, map[string]interface{}{
				"meetingId": meetingID,
			})
		}
	default:
		logutil.Warn("ws_unknown_command", map[string]interface{}{
			"meetingId": meetingID,
			"type":      cmd.Type,
		})
	}
}
