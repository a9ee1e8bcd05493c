package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/models"
	"github.com/fanforge/creator-platform/internal/ratelimit"
	"github.com/fanforge/creator-platform/internal/worker"
)

// MessageQueue enqueues a DM for the fan-out worker.
type MessageQueue interface {
	Publish(payload models.MessagePayload) error
}

// Limiter gates message admission per creator.
type Limiter interface {
	CheckAndRecord(clientID string) ratelimit.Result
}

type sendMessageRequest struct {
	RecipientID string            `json:"recipientId"`
	Content     string            `json:"content"`
	Platform    string            `json:"platform"`
	MediaURLs   []string          `json:"mediaUrls"`
	Metadata    map[string]string `json:"metadata"`
	Priority    string            `json:"priority"`
}

type sendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Remaining int    `json:"remaining"`
}

// RegisterMessageRoutes registers the authenticated DM submission endpoint.
//
// POST /messages
// - Admission is rate limited per creator; over-quota requests get 429 with a
//   Retry-After header and consume nothing.
// - Accepted messages return 202 once the queue write is acknowledged.
func RegisterMessageRoutes(r gin.IRoutes, queue MessageQueue, limiter Limiter) {
	r.POST("/messages", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		payload := models.NewMessagePayload(user.ID, req.RecipientID, req.Content)
		payload.MediaURLs = req.MediaURLs
		payload.Metadata = req.Metadata
		payload.Priority = req.Priority
		if req.Platform != "" {
			if payload.Metadata == nil {
				payload.Metadata = map[string]string{}
			}
			payload.Metadata[worker.MetadataPlatformKey] = req.Platform
		}

		validated, err := payload.Validate()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res := limiter.CheckAndRecord(user.ID)
		if !res.Allowed {
			retryAfter := ratelimit.RetryAfterSeconds(res)
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
			return
		}

		if err := queue.Publish(validated); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, sendMessageResponse{
			MessageID: validated.MessageID,
			Status:    models.StatusEventQueued,
			Remaining: res.Remaining,
		})
	})
}
