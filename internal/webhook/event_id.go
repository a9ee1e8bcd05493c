package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fanforge/creator-platform/internal/models"
)

// DeriveEventID returns the deterministic idempotency key for a webhook event.
// Identity is (actorRunId, eventType, createdAt): redeliveries of the same
// logical event carry the same three fields and therefore collapse to the same
// id, while distinct runs or event types never collide.
func DeriveEventID(actorRunID string, eventType models.EventType, createdAt time.Time) string {
	composite := fmt.Sprintf("%s|%s|%d", actorRunID, eventType, createdAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// EventID derives the idempotency key for a decoded webhook event.
func EventID(ev models.WebhookEvent) string {
	return DeriveEventID(ev.EventData.ActorRunID, ev.EventType, ev.CreatedAt)
}
