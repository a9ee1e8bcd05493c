package models

import "time"

// Status event constants emitted for outbound DMs.
const (
	StatusEventQueued      = "queued"
	StatusEventAttempt     = "attempt"
	StatusEventSent        = "sent"
	StatusEventRateLimited = "rate_limited"
	StatusEventFailed      = "failed"
	StatusEventDLQ         = "dlq"
)

// ProviderResponse captures normalized platform provider responses.
type ProviderResponse struct {
	Status  string            `json:"status"`
	Code    *int              `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Raw     string            `json:"raw,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// StatusEvent represents lifecycle events emitted for outbound DMs.
type StatusEvent struct {
	MessageID        string            `json:"message_id"`
	Platform         string            `json:"platform"`
	EventType        string            `json:"event_type"`
	Attempt          int               `json:"attempt,omitempty"`
	ProviderResponse *ProviderResponse `json:"provider_response,omitempty"`
	Error            string            `json:"error,omitempty"`
	RetryAfter       int               `json:"retry_after_seconds,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}
