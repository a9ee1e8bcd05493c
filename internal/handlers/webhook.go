package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/idempotency"
	"github.com/fanforge/creator-platform/internal/models"
	"github.com/fanforge/creator-platform/internal/webhook"
)

// maxWebhookBody bounds inbound webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// EventStore persists accepted webhook events.
type EventStore interface {
	InsertWebhookEvent(ctx context.Context, eventID string, ev models.WebhookEvent) (bool, error)
}

// WebhookDeps collects the collaborators of the webhook receiver.
type WebhookDeps struct {
	Validator   *webhook.Validator
	Idempotency *idempotency.Service
	Store       EventStore
	MaxAttempts int
	Logger      zerolog.Logger
}

// RegisterWebhookRoutes registers the automation platform webhook receiver.
//
// POST /webhooks/autogen
// - Signature validation runs on the raw body bytes before any decoding.
// - Events deduplicate on an id derived from (actorRunId, eventType,
//   createdAt); replays return 200 with duplicate=true.
// - Storage failures release the idempotency claim while the attempt budget
//   lasts, so the platform's retry can succeed.
func RegisterWebhookRoutes(r gin.IRoutes, deps WebhookDeps) {
	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "webhook_receiver").Logger()

	maxAttempts := deps.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	r.POST("/webhooks/autogen", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if len(body) > maxWebhookBody {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}

		signature := c.GetHeader(webhook.SignatureHeader)
		timestamp := c.GetHeader(webhook.TimestampHeader)
		if err := deps.Validator.Validate(body, signature, timestamp); err != nil {
			logger.Warn().Err(err).Msg("webhook rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature validation failed"})
			return
		}

		var ev models.WebhookEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if err := ev.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		eventID := webhook.EventID(ev)

		acquired, err := deps.Idempotency.MarkAsProcessing(ctx, eventID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency check failed"})
			return
		}
		if !acquired {
			check, err := deps.Idempotency.Check(ctx, eventID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency check failed"})
				return
			}
			logger.Info().
				Str("event_id", eventID).
				Str("status", string(check.Status)).
				Msg("duplicate webhook delivery")
			c.JSON(http.StatusOK, gin.H{
				"eventId":   eventID,
				"duplicate": true,
				"status":    check.Status,
			})
			return
		}

		if _, err := deps.Store.InsertWebhookEvent(ctx, eventID, ev); err != nil {
			canRetry, failErr := deps.Idempotency.MarkAsFailed(ctx, eventID, maxAttempts)
			if failErr != nil {
				logger.Error().Err(failErr).Str("event_id", eventID).Msg("failed to record processing failure")
			}
			logger.Error().
				Err(err).
				Str("event_id", eventID).
				Bool("retryable", canRetry).
				Msg("webhook event persistence failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "failed to store event",
				"retryable": canRetry,
			})
			return
		}

		if err := deps.Idempotency.MarkAsProcessed(ctx, eventID); err != nil {
			logger.Error().Err(err).Str("event_id", eventID).Msg("failed to finalize idempotency record")
		}

		logger.Info().
			Str("event_id", eventID).
			Str("event_type", string(ev.EventType)).
			Str("user_id", ev.UserID).
			Msg("webhook event accepted")
		c.JSON(http.StatusCreated, gin.H{
			"eventId":   eventID,
			"duplicate": false,
		})
	})
}
