package models

import (
	"errors"
	"fmt"
	"time"
)

// EventType identifies the lifecycle transition reported by the automation
// platform for an actor run.
type EventType string

// The closed set of webhook event types the receiver accepts.
const (
	EventRunCreated     EventType = "ACTOR.RUN.CREATED"
	EventRunSucceeded   EventType = "ACTOR.RUN.SUCCEEDED"
	EventRunFailed      EventType = "ACTOR.RUN.FAILED"
	EventRunAborted     EventType = "ACTOR.RUN.ABORTED"
	EventRunTimedOut    EventType = "ACTOR.RUN.TIMED_OUT"
	EventRunResurrected EventType = "ACTOR.RUN.RESURRECTED"
)

// Valid reports whether the event type belongs to the closed enum.
func (e EventType) Valid() bool {
	switch e {
	case EventRunCreated, EventRunSucceeded, EventRunFailed,
		EventRunAborted, EventRunTimedOut, EventRunResurrected:
		return true
	}
	return false
}

// WebhookEventData carries the actor identifiers attached to a webhook event.
type WebhookEventData struct {
	ActorID     string `json:"actorId"`
	ActorRunID  string `json:"actorRunId"`
	ActorTaskID string `json:"actorTaskId,omitempty"`
	ResourceID  string `json:"resourceId,omitempty"`
}

// WebhookEvent is the inbound webhook payload. Resource is passed through
// untouched; the receiver only inspects identity fields.
type WebhookEvent struct {
	UserID    string           `json:"userId"`
	CreatedAt time.Time        `json:"createdAt"`
	EventType EventType        `json:"eventType"`
	EventData WebhookEventData `json:"eventData"`
	Resource  map[string]any   `json:"resource,omitempty"`
}

// Validate checks the fields the receiver depends on for identity and dedup.
func (w WebhookEvent) Validate() error {
	if w.UserID == "" {
		return errors.New("userId is required")
	}
	if w.CreatedAt.IsZero() {
		return errors.New("createdAt is required")
	}
	if !w.EventType.Valid() {
		return fmt.Errorf("eventType %q is not a recognized event", w.EventType)
	}
	if w.EventData.ActorRunID == "" {
		return errors.New("eventData.actorRunId is required")
	}
	if w.EventData.ActorID == "" {
		return errors.New("eventData.actorId is required")
	}
	return nil
}
