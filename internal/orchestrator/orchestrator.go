// Package orchestrator drives simulated meetings for the dev server:
// it replays a scripted scenario round by round, persisting messages
// and publishing the progress frames real clients consume.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roundtable-labs/roundsync/internal/events"
	"github.com/roundtable-labs/roundsync/internal/logutil"
	"github.com/roundtable-labs/roundsync/internal/metrics"
	"github.com/roundtable-labs/roundsync/internal/scenario"
	"github.com/roundtable-labs/roundsync/internal/store"
)

// Frame shapes pushed to websocket clients. Tags and field spellings
// are the wire contract; see the meetingsync package for the client
// side.
type agentSpeakingFrame struct {
	Type      string `json:"type"`
	AgentName string `json:"agentName"`
}

type messageFrame struct {
	Type      string `json:"type"`
	AgentName string `json:"agentName,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content"`
	Round     int    `json:"round,omitempty"`
}

type roundCompleteFrame struct {
	Type        string `json:"type"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"totalRounds"`
}

type meetingCompleteFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Orchestrator executes meeting rounds in the background.
type Orchestrator struct {
	store *store.Store
	bus   *events.Bus
	sc    *scenario.Scenario

	mu      sync.Mutex
	running map[string]bool
}

// New builds an orchestrator bound to one scenario script.
func New(st *store.Store, bus *events.Bus, sc *scenario.Scenario) *Orchestrator {
	return &Orchestrator{
		store:   st,
		bus:     bus,
		sc:      sc,
		running: make(map[string]bool),
	}
}

// CreateMeeting registers a new pending meeting.
func (o *Orchestrator) CreateMeeting(topic string, maxRounds int) (*store.Meeting, error) {
	if topic == "" {
		topic = o.sc.Topic
	}
	if maxRounds <= 0 {
		maxRounds = o.sc.MaxRounds
	}
	m := &store.Meeting{
		ID:        uuid.NewString(),
		Topic:     topic,
		MaxRounds: maxRounds,
	}
	if err := o.store.CreateMeeting(m); err != nil {
		return nil, err
	}
	return m, nil
}

// UserMessage persists a user contribution and announces it as saved.
func (o *Orchestrator) UserMessage(meetingID, content string) error {
	m, err := o.store.GetMeeting(meetingID)
	if err != nil {
		return err
	}
	msg := &store.Message{
		ID:        uuid.NewString(),
		MeetingID: m.ID,
		Role:      "user",
		Content:   content,
		Round:     m.CurrentRound,
	}
	if err := o.store.AppendMessage(msg); err != nil {
		return err
	}
	o.publish(meetingID, messageFrame{
		Type:    "message_saved",
		Role:    "user",
		Content: content,
		Round:   m.CurrentRound,
	})
	return nil
}

// StartRound launches a background run of the requested number of
// rounds. A meeting runs at most one background task at a time.
func (o *Orchestrator) StartRound(meetingID string, rounds int, topic, locale string) error {
	if rounds <= 0 {
		rounds = 1
	}
	m, err := o.store.GetMeeting(meetingID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.running[meetingID] {
		o.mu.Unlock()
		return fmt.Errorf("meeting %s already has a round in progress", meetingID)
	}
	o.running[meetingID] = true
	o.mu.Unlock()

	if err := o.store.UpdateMeetingProgress(m.ID, store.MeetingRunning, m.CurrentRound, m.MaxRounds, true); err != nil {
		o.clearRunning(meetingID)
		return err
	}

	go o.run(m, rounds, locale)
	return nil
}

// Running reports whether a background task is executing for the
// meeting.
func (o *Orchestrator) Running(meetingID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[meetingID]
}

func (o *Orchestrator) clearRunning(meetingID string) {
	o.mu.Lock()
	delete(o.running, meetingID)
	o.mu.Unlock()
}

func (o *Orchestrator) run(m *store.Meeting, rounds int, locale string) {
	defer o.clearRunning(m.ID)

	current := m.CurrentRound
	target := current + rounds
	if target > m.MaxRounds {
		target = m.MaxRounds
	}

	for round := current + 1; round <= target; round++ {
		start := time.Now()
		if err := o.playRound(m, round, locale); err != nil {
			logutil.Error("orchestrator_round_failed", err, map[string]interface{}{
				"meetingId": m.ID,
				"round":     round,
			})
			o.publish(m.ID, errorFrame{Type: "error", Detail: err.Error()})
			o.finish(m.ID, store.MeetingFailed, round-1, m.MaxRounds)
			return
		}
		current = round
		if err := o.store.UpdateMeetingProgress(m.ID, store.MeetingRunning, current, m.MaxRounds, true); err != nil {
			logutil.Error("orchestrator_progress_update_failed", err, map[string]interface{}{
				"meetingId": m.ID,
			})
		}
		o.publish(m.ID, roundCompleteFrame{Type: "round_complete", Round: round, TotalRounds: m.MaxRounds})
		metrics.ObserveRoundComplete(time.Since(start))
	}

	if current >= m.MaxRounds {
		o.publish(m.ID, meetingCompleteFrame{Type: "meeting_complete"})
		o.finish(m.ID, store.MeetingCompleted, current, m.MaxRounds)
		return
	}
	// Rounds remain; park the meeting until the next start_round.
	if err := o.store.UpdateMeetingProgress(m.ID, store.MeetingPending, current, m.MaxRounds, false); err != nil {
		logutil.Error("orchestrator_park_failed", err, map[string]interface{}{"meetingId": m.ID})
	}
}

// playRound emits each agent's scripted line for the round: a speaking
// notice, the transient message, then the durable confirmation once
// the message is stored.
func (o *Orchestrator) playRound(m *store.Meeting, round int, locale string) error {
	_ = locale // scripted lines are pre-localized; kept for the wire contract
	for _, agent := range o.sc.Agents {
		if round-1 >= len(agent.Lines) {
			continue
		}
		line := agent.Lines[round-1]

		o.publish(m.ID, agentSpeakingFrame{Type: "agent_speaking", AgentName: agent.Name})
		time.Sleep(o.sc.StepDelay())

		frame := messageFrame{
			Type:      "message",
			AgentName: agent.Name,
			AgentID:   agent.ID,
			Role:      agent.Role,
			Content:   line,
			Round:     round,
		}
		o.publish(m.ID, frame)

		if err := o.store.AppendMessage(&store.Message{
			ID:        uuid.NewString(),
			MeetingID: m.ID,
			AgentID:   agent.ID,
			AgentName: agent.Name,
			Role:      agent.Role,
			Content:   line,
			Round:     round,
		}); err != nil {
			return fmt.Errorf("persist message: %w", err)
		}

		frame.Type = "message_saved"
		o.publish(m.ID, frame)
	}
	return nil
}

func (o *Orchestrator) finish(meetingID string, status store.MeetingStatus, currentRound, maxRounds int) {
	if err := o.store.UpdateMeetingProgress(meetingID, status, currentRound, maxRounds, false); err != nil {
		logutil.Error("orchestrator_finish_failed", err, map[string]interface{}{
			"meetingId": meetingID,
		})
	}
	metrics.ObserveMeetingFinished(string(status))
}

func (o *Orchestrator) publish(meetingID string, frame interface{}) {
	evt, err := events.NewEvent(meetingID, frame)
	if err != nil {
		logutil.Error("orchestrator_encode_frame_failed", err, map[string]interface{}{
			"meetingId": meetingID,
		})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.bus.Publish(ctx, evt); err != nil {
		logutil.Error("orchestrator_publish_failed", err, map[string]interface{}{
			"meetingId": meetingID,
		})
	}
}
