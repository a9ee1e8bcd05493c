package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fanforge/creator-platform/internal/util"
)

// Priority levels accepted on DM payloads.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Validation limits for DM payloads.
const (
	ContentMaxRunes  = 4096
	MediaURLsMax     = 10
	MetadataMax      = 20
	MetadataKeyMax   = 64
	MetadataValueMax = 256
)

// MessagePayload is the unit of work pushed onto the DM fan-out queue. The
// JSON field names match the wire contract consumed by the platform dashboard,
// so they stay camelCase rather than snake_case.
type MessagePayload struct {
	MessageID   string            `json:"messageId"`
	UserID      string            `json:"userId"`
	RecipientID string            `json:"recipientId"`
	Content     string            `json:"content"`
	Timestamp   time.Time         `json:"timestamp"`
	MediaURLs   []string          `json:"mediaUrls,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Priority    string            `json:"priority,omitempty"`
}

// NewMessagePayload stamps a fresh v4 message id onto the payload. Message ids
// are generated per message and never reused, even for retries of the same
// logical send.
func NewMessagePayload(userID, recipientID, content string) MessagePayload {
	return MessagePayload{
		MessageID:   uuid.New().String(),
		UserID:      userID,
		RecipientID: recipientID,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}
}

// Validate checks the payload against the wire contract. The returned payload
// has normalized metadata; the original is not mutated.
func (m MessagePayload) Validate() (MessagePayload, error) {
	if _, err := util.ParseUUIDv4(m.MessageID); err != nil {
		return m, fmt.Errorf("messageId: %w", err)
	}
	if m.UserID == "" {
		return m, errors.New("userId is required")
	}
	if m.RecipientID == "" {
		return m, errors.New("recipientId is required")
	}
	if m.Content == "" {
		return m, errors.New("content is required")
	}
	if err := util.EnsureMaxRunes("content", m.Content, ContentMaxRunes); err != nil {
		return m, err
	}
	if m.Timestamp.IsZero() {
		return m, errors.New("timestamp is required")
	}

	if len(m.MediaURLs) > MediaURLsMax {
		return m, fmt.Errorf("mediaUrls exceeds maximum of %d entries", MediaURLsMax)
	}
	for idx, raw := range m.MediaURLs {
		if _, err := util.ValidateHTTPURL(raw); err != nil {
			return m, fmt.Errorf("mediaUrls[%d]: %w", idx, err)
		}
	}

	meta, err := util.ValidateMetadata(m.Metadata, MetadataMax, MetadataKeyMax, MetadataValueMax)
	if err != nil {
		return m, fmt.Errorf("metadata: %w", err)
	}
	m.Metadata = meta

	switch m.Priority {
	case "", PriorityLow, PriorityNormal, PriorityHigh:
	default:
		return m, fmt.Errorf("priority must be one of low, normal, high; got %q", m.Priority)
	}

	return m, nil
}
