package meetingsync

// MeetingState is the coarse lifecycle state reported by the server.
type MeetingState string

const (
	StatePending   MeetingState = "pending"
	StateRunning   MeetingState = "running"
	StateCompleted MeetingState = "completed"
	StateFailed    MeetingState = "failed"
)

// StatusSnapshot is the result of one status poll. Snapshots are
// immutable values; a new snapshot replaces the previous one entirely.
type StatusSnapshot struct {
	MeetingID         string       `json:"meeting_id"`
	Status            MeetingState `json:"status"`
	CurrentRound      int          `json:"current_round"`
	MaxRounds         int          `json:"max_rounds"`
	MessageCount      int          `json:"message_count"`
	BackgroundRunning bool         `json:"background_running"`
}

// Settled reports whether the meeting is observably finished: nothing
// runs in the background and the status is no longer running.
func (s StatusSnapshot) Settled() bool {
	return !s.BackgroundRunning && s.Status != StateRunning
}
