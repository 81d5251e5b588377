package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuskeep/lostfound/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopEventBus is wired when NATS is not configured. Publishing succeeds
// silently; subscriptions never fire.
type NoopEventBus struct{}

func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	logger.DebugContext(ctx, "Event bus disabled, dropping event", "subject", subject)
	return nil
}

func (n *NoopEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	return nil
}

func (n *NoopEventBus) Close() error {
	return nil
}

// Event subjects
const (
	UserRegistered = "user.registered"
	UserVerified   = "user.verified"
	ItemReported   = "item.reported"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID     int64     `json:"user_id"`
	CampusID   string    `json:"campus_id"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserVerifiedEvent struct {
	UserID     int64     `json:"user_id"`
	Channel    string    `json:"channel"` // "email" or "phone"
	VerifiedAt time.Time `json:"verified_at"`
}

type ItemReportedEvent struct {
	ItemID     int64     `json:"item_id"`
	ItemType   string    `json:"item_type"`
	Title      string    `json:"title"`
	ReporterID int64     `json:"reporter_id"`
	ReportedAt time.Time `json:"reported_at"`
}
