// Package apiclient wraps the roundsync HTTP API and resolves the
// websocket endpoint for meeting event streams.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roundtable-labs/roundsync/internal/meetingsync"
)

// Client wraps API calls against a roundsync meeting server.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// HTTPClient overrides the transport; nil uses a per-call client
	// honoring Timeout.
	HTTPClient *http.Client
}

// Meeting is the API representation of a meeting resource.
type Meeting struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Status       string    `json:"status"`
	CurrentRound int       `json:"current_round"`
	MaxRounds    int       `json:"max_rounds"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MeetingMessage is one persisted transcript entry.
type MeetingMessage struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	AgentName string    `json:"agent_name,omitempty"`
	Role      string    `json:"role,omitempty"`
	Content   string    `json:"content"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target interface{}) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", req.Method, req.URL.Path, resp.Status)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetJSON issues a GET and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, path string, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

// PostJSON issues a POST with a JSON body and decodes the response.
func (c *Client) PostJSON(ctx context.Context, path string, payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return c.do(req, target)
}

// MeetingStatus fetches the meeting's coarse status snapshot. It
// implements meetingsync.StatusFetcher.
func (c *Client) MeetingStatus(ctx context.Context, meetingID string) (meetingsync.StatusSnapshot, error) {
	var snap meetingsync.StatusSnapshot
	err := c.GetJSON(ctx, "/api/meetings/"+url.PathEscape(meetingID)+"/status", &snap)
	return snap, err
}

// ListMeetings returns all meetings known to the server.
func (c *Client) ListMeetings(ctx context.Context) ([]Meeting, error) {
	var body struct {
		Meetings []Meeting `json:"meetings"`
	}
	if err := c.GetJSON(ctx, "/api/meetings", &body); err != nil {
		return nil, err
	}
	return body.Meetings, nil
}

// GetMeeting returns a single meeting.
func (c *Client) GetMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	var m Meeting
	if err := c.GetJSON(ctx, "/api/meetings/"+url.PathEscape(meetingID), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMeeting registers a new meeting and returns it.
func (c *Client) CreateMeeting(ctx context.Context, topic string, maxRounds int) (*Meeting, error) {
	payload := map[string]interface{}{
		"topic":      topic,
		"max_rounds": maxRounds,
	}
	var m Meeting
	if err := c.PostJSON(ctx, "/api/meetings", payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MeetingMessages returns the persisted transcript for a meeting.
func (c *Client) MeetingMessages(ctx context.Context, meetingID string) ([]MeetingMessage, error) {
	var body struct {
		Messages []MeetingMessage `json:"messages"`
	}
	if err := c.GetJSON(ctx, "/api/meetings/"+url.PathEscape(meetingID)+"/messages", &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

// WebSocketURL maps the API base URL onto the meeting's event-stream
// endpoint, switching http(s) to ws(s). It implements
// meetingsync.AddressResolver.
func (c *Client) WebSocketURL(meetingID string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch base.Scheme {
	case "http", "ws":
		base.Scheme = "ws"
	case "https", "wss":
		base.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in base URL", base.Scheme)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/ws/meetings/" + url.PathEscape(meetingID)
	if c.Token != "" {
		q := base.Query()
		q.Set("token", c.Token)
		base.RawQuery = q.Encode()
	}
	return base.String(), nil
}
