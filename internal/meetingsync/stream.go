package meetingsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roundtable-labs/roundsync/internal/logutil"
)

// transportErrorDetail is the fixed detail reported when the websocket
// itself fails; server-sent error events carry their own detail.
const transportErrorDetail = "meeting connection error"

// protocolErrorFallback is used when the server sends an error event
// with no detail.
const protocolErrorFallback = "meeting error"

// ErrChannelClosed is returned by Connect after Close.
var ErrChannelClosed = errors.New("meetingsync: stream channel closed")

// AddressResolver supplies the websocket endpoint for a meeting.
type AddressResolver interface {
	WebSocketURL(meetingID string) (string, error)
}

// StreamCallbacks receive decoded progress events. They are invoked
// synchronously from the read loop in wire-arrival order; a callback is
// never re-entered concurrently by the same channel.
type StreamCallbacks struct {
	OnMessage         func(Message)
	OnError           func(detail string)
	OnRoundComplete   func(round, totalRounds int)
	OnMeetingComplete func()
}

// wsConn is the slice of *websocket.Conn the channel needs. Tests
// substitute a scripted connection.
type wsConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// StreamChannel maintains the duplex progress-event connection for one
// meeting. Connect is idempotent, outbound commands are silently
// dropped while disconnected, and no callback fires after Close.
type StreamChannel struct {
	resolver  AddressResolver
	meetingID string
	callbacks StreamCallbacks
	dial      func(ctx context.Context, url string) (wsConn, error)

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// dispatchMu is held while events are decoded and callbacks run.
	// Close acquires it after tearing down the connection, so a
	// callback already in flight finishes before Close returns and
	// none starts afterwards.
	dispatchMu sync.Mutex

	mu         sync.Mutex
	conn       wsConn
	connected  bool
	dialing    bool
	closed     bool
	speaking   string
	generation uint64
}

// NewStreamChannel builds a channel for the given meeting. The resolver
// is consulted on each Connect so address changes take effect on
// reconnect.
func NewStreamChannel(resolver AddressResolver, meetingID string, callbacks StreamCallbacks) *StreamChannel {
	return &StreamChannel{
		resolver:  resolver,
		meetingID: meetingID,
		callbacks: callbacks,
		dial:      dialWebSocket,
	}
}

func dialWebSocket(ctx context.Context, url string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect opens the websocket if no connection exists. It is a no-op
// while a connection is open or another Connect is in progress.
func (s *StreamChannel) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrChannelClosed
	}
	if s.connected || s.dialing {
		s.mu.Unlock()
		return nil
	}
	s.dialing = true
	s.mu.Unlock()

	url, err := s.resolver.WebSocketURL(s.meetingID)
	if err != nil {
		s.mu.Lock()
		s.dialing = false
		s.mu.Unlock()
		return err
	}
	conn, err := s.dial(ctx, url)

	s.mu.Lock()
	s.dialing = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrChannelClosed
	}
	s.conn = conn
	s.connected = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	go s.readLoop(conn, gen)
	return nil
}

// Disconnect closes the connection if open and clears the connected
// and speaking state. Safe to call when already disconnected.
func (s *StreamChannel) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.speaking = ""
	// Bump the generation so the read loop's pending error is
	// attributed to this local close, not a transport failure.
	s.generation++
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Close tears the channel down. The connection is closed and no
// callback fires after Close returns; subsequent Connect calls fail.
// Close must not be called from inside a callback.
func (s *StreamChannel) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Disconnect()

	// Wait out a callback the read loop already started.
	s.dispatchMu.Lock()
	s.dispatchMu.Unlock() //nolint:staticcheck // barrier, not a critical section
}

// Connected reports whether the websocket is currently open.
func (s *StreamChannel) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SpeakingAgent returns the agent named by the most recent
// agent_speaking event, or "" once a message arrived or the connection
// closed.
func (s *StreamChannel) SpeakingAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// SendUserMessage forwards a user contribution to the meeting. The
// frame is dropped without error while disconnected.
func (s *StreamChannel) SendUserMessage(content string) {
	s.send(userMessageFrame{Type: commandUserMessage, Content: content})
}

// StartRound asks the server to run more discussion rounds. Topic is
// included only when non-empty and locale only when recognized; rounds
// defaults to 1.
func (s *StreamChannel) StartRound(rounds int, topic, locale string) {
	if rounds <= 0 {
		rounds = 1
	}
	frame := startRoundFrame{Type: commandStartRound, Rounds: rounds, Topic: topic}
	if recognizedLocales[locale] {
		frame.Locale = locale
	}
	s.send(frame)
}

func (s *StreamChannel) send(frame interface{}) {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()
	if !connected || conn == nil {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		logutil.Error("meetingsync_encode_command_failed", err, map[string]interface{}{
			"meetingId": s.meetingID,
		})
		return
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		logutil.Error("meetingsync_send_command_failed", err, map[string]interface{}{
			"meetingId": s.meetingID,
		})
	}
}

func (s *StreamChannel) readLoop(conn wsConn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(gen, err)
			return
		}
		s.dispatch(gen, data)
	}
}

// handleReadError runs the close transition for a connection that died
// underneath us. If the generation moved on the close was local and
// already handled, so nothing fires.
func (s *StreamChannel) handleReadError(gen uint64, err error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	s.speaking = ""
	s.generation++
	cb := s.callbacks.OnError
	s.mu.Unlock()

	if cb != nil && !isExpectedClose(err) {
		cb(transportErrorDetail)
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// live reports whether the read loop's generation is still current.
// Checked immediately before every callback so a Disconnect or Close
// that raced the decode renders the event inert.
func (s *StreamChannel) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *StreamChannel) dispatch(gen uint64, data []byte) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if !s.live(gen) {
		return
	}

	var evt progressEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		// A malformed payload is reportable but never fatal to the
		// channel.
		logutil.Error("meetingsync_decode_event_failed", err, map[string]interface{}{
			"meetingId": s.meetingID,
		})
		return
	}

	switch evt.Type {
	case eventAgentSpeaking:
		s.setSpeaking(gen, evt.AgentName)
	case eventMessage:
		s.setSpeaking(gen, "")
		if cb := s.callbacks.OnMessage; cb != nil && s.live(gen) {
			cb(evt.message(false))
		}
	case eventMessageSaved:
		// Durability confirmation only; the speaking state is untouched.
		if cb := s.callbacks.OnMessage; cb != nil && s.live(gen) {
			cb(evt.message(true))
		}
	case eventRoundComplete:
		if cb := s.callbacks.OnRoundComplete; cb != nil && s.live(gen) {
			cb(evt.Round, evt.TotalRounds)
		}
	case eventMeetingComplete:
		if cb := s.callbacks.OnMeetingComplete; cb != nil && s.live(gen) {
			cb()
		}
	case eventError:
		detail := evt.Detail
		if detail == "" {
			detail = protocolErrorFallback
		}
		if cb := s.callbacks.OnError; cb != nil && s.live(gen) {
			cb(detail)
		}
	default:
		// Unknown tags are ignored so the protocol can grow without
		// breaking older clients.
	}
}

func (s *StreamChannel) setSpeaking(gen uint64, agent string) {
	s.mu.Lock()
	if s.generation == gen {
		s.speaking = agent
	}
	s.mu.Unlock()
}
