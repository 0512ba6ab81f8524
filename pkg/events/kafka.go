package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeSongUploaded         EventType = "song_uploaded"
	EventTypeSongDeleted          EventType = "song_deleted"
	EventTypeSongPlayed           EventType = "song_played"
	EventTypePlaylistCreated      EventType = "playlist_created"
	EventTypeRequestStatusChanged EventType = "song_request_status_changed"
)

type Event struct {
	Type      EventType       `json:"type"`
	UserID    int64           `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher emits domain events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, userID int64, payload interface{}) error
	Close() error
}

// NewEvent wraps payload in an Event envelope.
func NewEvent(eventType EventType, userID int64, payload interface{}) (Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payloadJSON,
	}, nil
}

type KafkaClient struct {
	writer *kafka.Writer
}

func NewKafkaClient(brokers []string, topic string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
	}

	return &KafkaClient{writer: writer}
}

// Publish keys messages by user so one user's events stay on one partition.
func (k *KafkaClient) Publish(ctx context.Context, eventType EventType, userID int64, payload interface{}) error {
	event, err := NewEvent(eventType, userID, payload)
	if err != nil {
		return err
	}

	messageJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: messageJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, EventType, int64, interface{}) error { return nil }
func (Nop) Close() error                                                 { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType EventType, userID int64, payload interface{}) error {
	event, err := NewEvent(eventType, userID, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Close() error { return nil }

// Event payload types
type SongPayload struct {
	SongID int64  `json:"song_id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type SongPlayedPayload struct {
	SongID   int64 `json:"song_id"`
	Duration int   `json:"duration"`
}

type PlaylistPayload struct {
	PlaylistID int64  `json:"playlist_id"`
	Name       string `json:"name"`
}

type RequestStatusPayload struct {
	RequestID int64  `json:"request_id"`
	Status    string `json:"status"`
}
