// Package events fans meeting progress frames out to connected
// websocket clients, optionally bridged across processes via Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roundtable-labs/roundsync/internal/logutil"
)

// Event carries one progress frame for one meeting. Frame is the exact
// JSON payload forwarded to websocket clients. Origin identifies the
// bus that published the event; the Redis observe loop uses it to
// drop its own publications, which already reached local subscribers.
type Event struct {
	ID        string          `json:"id"`
	MeetingID string          `json:"meetingId"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// NewEvent wraps a frame value for publication.
func NewEvent(meetingID string, frame interface{}) (Event, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return Event{}, fmt.Errorf("marshal frame: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Timestamp: time.Now().UTC(),
		Frame:     data,
	}, nil
}

type subscriber struct {
	meetingID string
	ch        chan Event
}

// Bus multiplexes events to subscribers (local + Redis backed).
type Bus struct {
	client  redis.UniversalClient
	channel string
	origin  string

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// Options configure the bus.
type Options struct {
	Client  redis.UniversalClient
	Channel string
}

// NewBus creates a bus. A nil Redis client keeps fanout in-process.
func NewBus(opts Options) *Bus {
	channel := opts.Channel
	if channel == "" {
		channel = "roundsync-meeting-events"
	}
	bus := &Bus{
		client:  opts.Client,
		channel: channel,
		origin:  uuid.NewString(),
		subs:    make(map[*subscriber]struct{}),
	}
	if bus.client != nil {
		go bus.observeRedis()
	}
	return bus
}

// Publish broadcasts an event to all matching subscribers and Redis.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Origin = b.origin

	if b.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
	}

	b.broadcast(evt)
	return nil
}

// Subscribe registers a subscriber for one meeting's events and
// returns a channel plus a cancel func. The channel closes on cancel
// or context cancellation.
func (b *Bus) Subscribe(ctx context.Context, meetingID string) (<-chan Event, func()) {
	sub := &subscriber{
		meetingID: meetingID,
		ch:        make(chan Event, 32),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
		b.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.meetingID != "" && sub.meetingID != evt.MeetingID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			logutil.Warn("events_subscriber_backlog", map[string]interface{}{
				"eventId":   evt.ID,
				"meetingId": evt.MeetingID,
			})
		}
	}
}

func (b *Bus) observeRedis() {
	ctx := context.Background()
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			logutil.Error("events_redis_receive_failed", err, nil)
			time.Sleep(2 * time.Second)
			continue
		}

		b.handleRedisPayload([]byte(msg.Payload))
	}
}

// handleRedisPayload decodes a mirrored event and rebroadcasts it
// unless this bus published it, in which case local subscribers
// already received it.
func (b *Bus) handleRedisPayload(payload []byte) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		logutil.Error("events_redis_invalid_payload", err, nil)
		return
	}
	if evt.Origin == b.origin {
		return
	}
	b.broadcast(evt)
}
