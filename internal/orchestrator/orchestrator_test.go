package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/roundtable-labs/roundsync/internal/events"
	"github.com/roundtable-labs/roundsync/internal/scenario"
	"github.com/roundtable-labs/roundsync/internal/store"
)

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name:      "panel",
		Topic:     "budget review",
		MaxRounds: 2,
		Agents: []scenario.Agent{
			{ID: "chen", Name: "Dr. Chen", Role: "analyst", Lines: []string{"r1 chen", "r2 chen"}},
			{ID: "okafor", Name: "Prof. Okafor", Role: "economist", Lines: []string{"r1 okafor"}},
		},
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *events.Bus) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	bus := events.NewBus(events.Options{})
	return New(st, bus, testScenario()), st, bus
}

func frameType(t *testing.T, evt events.Event) string {
	t.Helper()
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(evt.Frame, &tagged); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return tagged.Type
}

func collectUntil(t *testing.T, ch <-chan events.Event, terminal string) []string {
	t.Helper()
	var types []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			tag := frameType(t, evt)
			types = append(types, tag)
			if tag == terminal {
				return types
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s; saw %v", terminal, types)
		}
	}
}

func TestRunEmitsFullEventSequence(t *testing.T) {
	t.Parallel()

	o, st, bus := newTestOrchestrator(t)
	m, err := o.CreateMeeting("", 0)
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if m.Topic != "budget review" || m.MaxRounds != 2 {
		t.Fatalf("scenario defaults not applied: %+v", m)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx, m.ID)

	if err := o.StartRound(m.ID, 2, "", "en"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	got := collectUntil(t, ch, "meeting_complete")
	want := []string{
		"agent_speaking", "message", "message_saved", // chen r1
		"agent_speaking", "message", "message_saved", // okafor r1
		"round_complete",
		"agent_speaking", "message", "message_saved", // chen r2 (okafor has no r2 line)
		"round_complete",
		"meeting_complete",
	}
	if len(got) != len(want) {
		t.Fatalf("sequence mismatch:\n got %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	waitForStatus(t, st, m.ID, store.MeetingCompleted)
	loaded, err := st.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if loaded.CurrentRound != 2 || loaded.BackgroundRunning {
		t.Fatalf("final meeting state wrong: %+v", loaded)
	}

	msgs, err := st.ListMessages(m.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(msgs))
	}
}

func TestPartialRunParksMeeting(t *testing.T) {
	t.Parallel()

	o, st, bus := newTestOrchestrator(t)
	m, err := o.CreateMeeting("partial", 2)
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx, m.ID)

	if err := o.StartRound(m.ID, 1, "", ""); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	collectUntil(t, ch, "round_complete")

	waitForStatus(t, st, m.ID, store.MeetingPending)
	loaded, _ := st.GetMeeting(m.ID)
	if loaded.CurrentRound != 1 || loaded.BackgroundRunning {
		t.Fatalf("meeting not parked after partial run: %+v", loaded)
	}
}

func TestStartRoundRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t)
	// Slow the script down so the first run is still going.
	o.sc.StepDelayMs = 50

	m, err := o.CreateMeeting("busy", 2)
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if err := o.StartRound(m.ID, 1, "", ""); err != nil {
		t.Fatalf("first StartRound: %v", err)
	}
	if err := o.StartRound(m.ID, 1, "", ""); err == nil {
		t.Fatal("expected second StartRound to be rejected while running")
	}
}

func TestUserMessagePersistsAndAnnounces(t *testing.T) {
	t.Parallel()

	o, st, bus := newTestOrchestrator(t)
	m, err := o.CreateMeeting("questions", 1)
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx, m.ID)

	if err := o.UserMessage(m.ID, "what about supply?"); err != nil {
		t.Fatalf("UserMessage: %v", err)
	}

	got := collectUntil(t, ch, "message_saved")
	if len(got) != 1 {
		t.Fatalf("expected a single message_saved frame, got %v", got)
	}

	msgs, err := st.ListMessages(m.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "what about supply?" {
		t.Fatalf("user message not persisted: %+v", msgs)
	}
}

func waitForStatus(t *testing.T, st *store.Store, id string, status store.MeetingStatus) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timeout:
			m, _ := st.GetMeeting(id)
			t.Fatalf("timed out waiting for status %s, meeting: %+v", status, m)
		case <-ticker.C:
			m, err := st.GetMeeting(id)
			if err == nil && m.Status == status && !m.BackgroundRunning {
				return
			}
		}
	}
}
