package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fanforge/creator-platform/internal/models"
)

// Header keys stamped on every published record.
const (
	HeaderMessageID = "message-id"
	HeaderEventType = "event-type"
)

// SyncPublisher is the producer surface used where delivery must be
// acknowledged before the caller proceeds.
type SyncPublisher interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// AsyncPublisher is the fire-and-forget producer surface used for
// observability streams where loss is tolerable.
type AsyncPublisher interface {
	PublishAsync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// MessagePublisher enqueues DM payloads for the fan-out worker. Records are
// keyed by messageId so retries of a logical send land on the same partition.
type MessagePublisher struct {
	producer SyncPublisher
	topic    string
}

func NewMessagePublisher(producer SyncPublisher, topic string) (*MessagePublisher, error) {
	if producer == nil {
		return nil, errors.New("message publisher: producer is required")
	}
	if topic == "" {
		return nil, errors.New("message publisher: topic is required")
	}
	return &MessagePublisher{producer: producer, topic: topic}, nil
}

func (p *MessagePublisher) Publish(payload models.MessagePayload) error {
	if payload.MessageID == "" {
		return errors.New("message publisher: messageId is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("message publisher: encode payload: %w", err)
	}

	headers := map[string][]byte{
		HeaderMessageID: []byte(payload.MessageID),
	}
	if err := p.producer.PublishSync(p.topic, []byte(payload.MessageID), headers, body); err != nil {
		return fmt.Errorf("message publisher: %w", err)
	}
	return nil
}

// StatusPublisher emits DM lifecycle events. Publishing is async; a dropped
// status event must never block or fail a delivery attempt.
type StatusPublisher struct {
	producer AsyncPublisher
	topic    string
}

func NewStatusPublisher(producer AsyncPublisher, topic string) (*StatusPublisher, error) {
	if producer == nil {
		return nil, errors.New("status publisher: producer is required")
	}
	if topic == "" {
		return nil, errors.New("status publisher: topic is required")
	}
	return &StatusPublisher{producer: producer, topic: topic}, nil
}

func (p *StatusPublisher) Publish(event models.StatusEvent) error {
	if event.MessageID == "" {
		return errors.New("status publisher: message_id is required")
	}
	if event.EventType == "" {
		return errors.New("status publisher: event_type is required")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("status publisher: encode event: %w", err)
	}

	headers := map[string][]byte{
		HeaderMessageID: []byte(event.MessageID),
		HeaderEventType: []byte(event.EventType),
	}
	if err := p.producer.PublishAsync(p.topic, []byte(event.MessageID), headers, body); err != nil {
		return fmt.Errorf("status publisher: %w", err)
	}
	return nil
}

// DLQPublisher records undeliverable DMs. Publishing is sync; losing a DLQ
// record silently would hide a failed customer message.
type DLQPublisher struct {
	producer SyncPublisher
	topic    string
}

func NewDLQPublisher(producer SyncPublisher, topic string) (*DLQPublisher, error) {
	if producer == nil {
		return nil, errors.New("dlq publisher: producer is required")
	}
	if topic == "" {
		return nil, errors.New("dlq publisher: topic is required")
	}
	return &DLQPublisher{producer: producer, topic: topic}, nil
}

func (p *DLQPublisher) Publish(record models.DLQRecord) error {
	if record.MessageID == "" {
		return errors.New("dlq publisher: message_id is required")
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("dlq publisher: encode record: %w", err)
	}

	headers := map[string][]byte{
		HeaderMessageID: []byte(record.MessageID),
		HeaderEventType: []byte(record.FailureType),
	}
	if err := p.producer.PublishSync(p.topic, []byte(record.MessageID), headers, body); err != nil {
		return fmt.Errorf("dlq publisher: %w", err)
	}
	return nil
}
