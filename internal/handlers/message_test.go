package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/models"
	"github.com/fanforge/creator-platform/internal/ratelimit"
	"github.com/fanforge/creator-platform/internal/worker"
)

type queueStub struct {
	mu       sync.Mutex
	payloads []models.MessagePayload
	fail     error
}

func (q *queueStub) Publish(payload models.MessagePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

type allowStub struct {
	result ratelimit.Result
}

func (a *allowStub) CheckAndRecord(string) ratelimit.Result {
	return a.result
}

func asUser(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(currentUserKey, user)
		c.Next()
	}
}

func messageRouter(queue MessageQueue, limiter Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/")
	group.Use(asUser(models.User{ID: "creator-1", Tier: models.TierStandard}))
	RegisterMessageRoutes(group, queue, limiter)
	return r
}

func postMessage(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageEnqueues(t *testing.T) {
	queue := &queueStub{}
	r := messageRouter(queue, &allowStub{result: ratelimit.Result{Allowed: true, Remaining: 9}})

	rec := postMessage(r, `{"recipientId":"fan-1","content":"hey!","platform":"instagram"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MessageID == "" || resp.Status != models.StatusEventQueued || resp.Remaining != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(queue.payloads) != 1 {
		t.Fatalf("expected one enqueued payload, got %d", len(queue.payloads))
	}
	got := queue.payloads[0]
	if got.UserID != "creator-1" || got.RecipientID != "fan-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Metadata[worker.MetadataPlatformKey] != "instagram" {
		t.Fatalf("platform must travel in metadata, got %v", got.Metadata)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	queue := &queueStub{}
	limiter := &allowStub{result: ratelimit.Result{Allowed: false, RetryAfter: 42 * time.Second}}
	r := messageRouter(queue, limiter)

	rec := postMessage(r, `{"recipientId":"fan-1","content":"hey!"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("expected Retry-After 42, got %q", got)
	}
	if len(queue.payloads) != 0 {
		t.Fatalf("denied requests must not enqueue")
	}
}

func TestSendMessageValidation(t *testing.T) {
	queue := &queueStub{}
	r := messageRouter(queue, &allowStub{result: ratelimit.Result{Allowed: true}})

	cases := []string{
		`{"content":"no recipient"}`,
		`{"recipientId":"fan-1"}`,
		`{"recipientId":"fan-1","content":"x","priority":"urgent"}`,
		`{not json`,
	}
	for _, body := range cases {
		rec := postMessage(r, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if len(queue.payloads) != 0 {
		t.Fatalf("invalid requests must not enqueue")
	}
}

func TestSendMessageQueueFailure(t *testing.T) {
	queue := &queueStub{fail: errors.New("broker down")}
	r := messageRouter(queue, &allowStub{result: ratelimit.Result{Allowed: true}})

	rec := postMessage(r, `{"recipientId":"fan-1","content":"hey!"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
