// Package store persists meetings and their transcripts in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MeetingStatus is the coarse lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingRunning   MeetingStatus = "running"
	MeetingCompleted MeetingStatus = "completed"
	MeetingFailed    MeetingStatus = "failed"
)

// ErrNotFound is returned when a meeting does not exist.
var ErrNotFound = errors.New("store: not found")

// Meeting is one multi-round discussion session.
type Meeting struct {
	ID                string        `json:"id"`
	Topic             string        `json:"topic"`
	Status            MeetingStatus `json:"status"`
	CurrentRound      int           `json:"current_round"`
	MaxRounds         int           `json:"max_rounds"`
	BackgroundRunning bool          `json:"background_running"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Message is one persisted transcript entry.
type Message struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	AgentName string    `json:"agent_name,omitempty"`
	Role      string    `json:"role,omitempty"`
	Content   string    `json:"content"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite database used for persistence.
type Store struct {
	db *sql.DB
}

// Open initializes the datastore at the supplied file path.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create datastore directory: %w", err)
	}
	conn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", dsn)
	db, err := sql.Open("sqlite", conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite datastore: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			status TEXT NOT NULL,
			current_round INTEGER NOT NULL DEFAULT 0,
			max_rounds INTEGER NOT NULL DEFAULT 1,
			background_running INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings(status);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			meeting_id TEXT NOT NULL REFERENCES meetings(id),
			agent_id TEXT,
			agent_name TEXT,
			role TEXT,
			content TEXT NOT NULL,
			round INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_meeting ON messages(meeting_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateMeeting inserts a new meeting in pending state.
func (s *Store) CreateMeeting(m *Meeting) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = MeetingPending
	}
	if m.MaxRounds <= 0 {
		m.MaxRounds = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO meetings (id, topic, status, current_round, max_rounds, background_running, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Topic, string(m.Status), m.CurrentRound, m.MaxRounds, boolToInt(m.BackgroundRunning), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// GetMeeting loads one meeting by id.
func (s *Store) GetMeeting(id string) (*Meeting, error) {
	row := s.db.QueryRow(
		`SELECT id, topic, status, current_round, max_rounds, background_running, created_at, updated_at
		 FROM meetings WHERE id = ?`, id)
	return scanMeeting(row)
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings() ([]Meeting, error) {
	rows, err := s.db.Query(
		`SELECT id, topic, status, current_round, max_rounds, background_running, created_at, updated_at
		 FROM meetings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateMeetingProgress stores the meeting's lifecycle fields.
func (s *Store) UpdateMeetingProgress(id string, status MeetingStatus, currentRound, maxRounds int, backgroundRunning bool) error {
	res, err := s.db.Exec(
		`UPDATE meetings SET status = ?, current_round = ?, max_rounds = ?, background_running = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), currentRound, maxRounds, boolToInt(backgroundRunning), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage persists one transcript entry.
func (s *Store) AppendMessage(msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, meeting_id, agent_id, agent_name, role, content, round, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.MeetingID, msg.AgentID, msg.AgentName, msg.Role, msg.Content, msg.Round, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a meeting's transcript in arrival order.
func (s *Store) ListMessages(meetingID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, meeting_id, agent_id, agent_name, role, content, round, created_at
		 FROM messages WHERE meeting_id = ? ORDER BY created_at, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var agentID, agentName, role sql.NullString
		if err := rows.Scan(&m.ID, &m.MeetingID, &agentID, &agentName, &role, &m.Content, &m.Round, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentID = agentID.String
		m.AgentName = agentName.String
		m.Role = role.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the number of persisted messages for a meeting.
func (s *Store) CountMessages(meetingID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE meeting_id = ?`, meetingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeeting(row rowScanner) (*Meeting, error) {
	var m Meeting
	var status string
	var background int
	err := row.Scan(&m.ID, &m.Topic, &status, &m.CurrentRound, &m.MaxRounds, &background, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan meeting: %w", err)
	}
	m.Status = MeetingStatus(status)
	m.BackgroundRunning = background != 0
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
