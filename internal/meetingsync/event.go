package meetingsync

// Inbound event tags pushed by the server over the meeting websocket.
const (
	eventAgentSpeaking   = "agent_speaking"
	eventMessage         = "message"
	eventMessageSaved    = "message_saved"
	eventRoundComplete   = "round_complete"
	eventMeetingComplete = "meeting_complete"
	eventError           = "error"
)

// Outbound command tags accepted by the server.
const (
	commandUserMessage = "user_message"
	commandStartRound  = "start_round"
)

// Message is one agent contribution delivered over the stream. A
// transient delivery arrives first; once the server has persisted the
// message the same content arrives again with Saved set, and the later
// delivery supersedes the earlier one for display purposes.
type Message struct {
	AgentName string `json:"agentName,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content"`
	Round     int    `json:"round,omitempty"`
	Saved     bool   `json:"-"`
}

// progressEvent is the decoded form of one inbound frame. All payload
// variants share a flat field set keyed by Type; fields that do not
// apply to a given tag are simply zero.
type progressEvent struct {
	Type        string `json:"type"`
	AgentName   string `json:"agentName,omitempty"`
	AgentID     string `json:"agentId,omitempty"`
	Role        string `json:"role,omitempty"`
	Content     string `json:"content,omitempty"`
	Round       int    `json:"round,omitempty"`
	TotalRounds int    `json:"totalRounds,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

func (e progressEvent) message(saved bool) Message {
	return Message{
		AgentName: e.AgentName,
		AgentID:   e.AgentID,
		Role:      e.Role,
		Content:   e.Content,
		Round:     e.Round,
		Saved:     saved,
	}
}

// userMessageFrame is the outbound wire form of a user contribution.
type userMessageFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// startRoundFrame asks the server to run more rounds. Topic and Locale
// are optional refinements and are omitted from the frame when unset.
type startRoundFrame struct {
	Type   string `json:"type"`
	Rounds int    `json:"rounds"`
	Topic  string `json:"topic,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// recognizedLocales are the locales the server accepts on start_round.
// Anything else is dropped from the frame rather than rejected.
var recognizedLocales = map[string]bool{
	"zh": true,
	"en": true,
}
