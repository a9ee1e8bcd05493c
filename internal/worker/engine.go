package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/fanforge/creator-platform/internal/models"
	"github.com/fanforge/creator-platform/internal/platform"
	"github.com/fanforge/creator-platform/internal/ratelimit"
)

// MetadataPlatformKey selects the delivery platform on a DM payload.
const MetadataPlatformKey = "platform"

// Config contains the runtime settings the fan-out engine relies on to
// orchestrate delivery, retries and DLQ handling.
type Config struct {
	MsgMaxBytes     int
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	Concurrency     int
	DefaultPlatform string
}

// Record is a queued DM bound to a commit callback. Committing acknowledges
// the record at-least-once; records left uncommitted are redelivered.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte

	commit func()
}

// NewRecord binds a commit callback to a copy of the supplied data.
func NewRecord(topic string, partition int32, offset int64, key, value []byte, headers map[string][]byte, commit func()) *Record {
	return &Record{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       cloneBytes(key),
		Value:     cloneBytes(value),
		Headers:   cloneHeaders(headers),
		commit:    commit,
	}
}

// StatusPublisher emits DM lifecycle events.
type StatusPublisher interface {
	Publish(event models.StatusEvent) error
}

// DLQPublisher records undeliverable DMs.
type DLQPublisher interface {
	Publish(record models.DLQRecord) error
}

// Limiter gates deliveries per creator.
type Limiter interface {
	CheckAndRecord(clientID string) ratelimit.Result
}

// ConversationStore persists delivered DMs for dashboard counts.
type ConversationStore interface {
	RecordDM(ctx context.Context, msg models.MessagePayload, sentAt time.Time) error
}

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies struct {
	Adapters *platform.Registry
	Limiter  Limiter
	Status   StatusPublisher
	DLQ      DLQPublisher
	Store    ConversationStore
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Engine orchestrates validation, per-creator rate limiting, retries with
// backoff, DLQ handling and offset commits for queued DMs.
type Engine struct {
	cfg      Config
	adapters *platform.Registry
	limiter  Limiter
	status   StatusPublisher
	dlq      DLQPublisher
	store    ConversationStore
	logger   zerolog.Logger

	semaphore *semaphore.Weighted

	now func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewEngine validates the configuration and collaborators and builds an
// Engine.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("worker: max attempts must be >= 1")
	}
	if cfg.Concurrency < 1 {
		return nil, errors.New("worker: concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if cfg.DefaultPlatform == "" {
		cfg.DefaultPlatform = platform.OnlyFans
	}
	if deps.Adapters == nil {
		return nil, errors.New("worker: adapter registry is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("worker: limiter dependency is required")
	}
	if deps.Status == nil {
		return nil, errors.New("worker: status publisher dependency is required")
	}
	if deps.DLQ == nil {
		return nil, errors.New("worker: DLQ publisher dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "fanout_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Engine{
		cfg:       cfg,
		adapters:  deps.Adapters,
		limiter:   deps.Limiter,
		status:    deps.Status,
		dlq:       deps.DLQ,
		store:     deps.Store,
		logger:    logger,
		semaphore: semaphore.NewWeighted(int64(cfg.Concurrency)),
		now:       nowFunc,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only.
	}, nil
}

// HandleRecord performs upfront size and payload validation, then triggers
// asynchronous delivery with retry handling. Invalid records go straight to
// the DLQ and are committed; they can never succeed on redelivery.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		e.rejectRecord(record, models.MessagePayload{MessageID: string(record.Key)}, err)
		return
	}

	var payload models.MessagePayload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		e.rejectRecord(record, models.MessagePayload{MessageID: string(record.Key)}, fmt.Errorf("decode payload: %w", err))
		return
	}

	validated, err := payload.Validate()
	if err != nil {
		e.rejectRecord(record, payload, err)
		return
	}

	platformName := e.platformFor(validated)
	adapter, err := e.adapters.Adapter(platformName)
	if err != nil {
		e.rejectRecord(record, validated, err)
		return
	}

	if err := e.semaphore.Acquire(ctx, 1); err != nil {
		e.logger.Error().
			Str("message_id", validated.MessageID).
			Err(err).
			Msg("worker: failed to acquire concurrency semaphore")
		return
	}

	go e.deliver(ctx, record, validated, adapter)
}

// Wait blocks until all in-flight deliveries finish.
func (e *Engine) Wait(ctx context.Context) error {
	if err := e.semaphore.Acquire(ctx, int64(e.cfg.Concurrency)); err != nil {
		return err
	}
	e.semaphore.Release(int64(e.cfg.Concurrency))
	return nil
}

func (e *Engine) deliver(ctx context.Context, record *Record, msg models.MessagePayload, adapter platform.Adapter) {
	defer e.semaphore.Release(1)

	if ctx.Err() != nil {
		return
	}

	platformName := adapter.Platform()
	logger := e.logger.With().
		Str("message_id", msg.MessageID).
		Str("creator_id", msg.UserID).
		Str("platform", platformName).
		Logger()

	e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventQueued})

	// A creator over quota waits the window out rather than burning the
	// retry budget; rate limiting is back-pressure, not failure.
	if !e.waitForQuota(ctx, msg, platformName, logger) {
		logger.Warn().Msg("worker: context cancelled while rate limited; deferring commit for redelivery")
		return
	}

	attempt := 1
	firstFailedAt := time.Time{}

	for {
		e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventAttempt, Attempt: attempt})

		start := e.now()
		resp, err := adapter.Send(ctx, msg)
		duration := e.now().Sub(start)

		logEvent := logger.With().Int("attempt", attempt).Dur("duration", duration).Logger()

		if err == nil {
			logEvent.Info().Msg("worker: dm delivered")
			e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventSent, Attempt: attempt, ProviderResponse: resp})
			e.recordConversation(ctx, msg, logger)
			e.commitRecord(record)
			return
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logEvent.Warn().Err(err).Msg("worker: context cancelled during send; deferring commit for redelivery")
			return
		}

		now := e.now()
		if firstFailedAt.IsZero() {
			firstFailedAt = now
		}

		if errors.Is(err, platform.ErrPermanent) {
			logEvent.Warn().Err(err).Msg("worker: permanent delivery failure")
			e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventFailed, Attempt: attempt, ProviderResponse: resp, Error: err.Error()})
			e.publishDLQ(msg, platformName, models.FailureTypePermanent, attempt, err, firstFailedAt, now)
			e.commitRecord(record)
			return
		}

		if errors.Is(err, platform.ErrRateLimited) {
			retryAfter := providerRetryAfter(resp)
			logEvent.Warn().Err(err).Dur("retry_after", retryAfter).Msg("worker: provider rate limited")
			e.publishStatus(models.StatusEvent{
				MessageID:        msg.MessageID,
				Platform:         platformName,
				EventType:        models.StatusEventRateLimited,
				Attempt:          attempt,
				ProviderResponse: resp,
				Error:            err.Error(),
				RetryAfter:       int(math.Ceil(retryAfter.Seconds())),
			})
			if !e.wait(ctx, retryAfter) {
				logEvent.Warn().Msg("worker: context cancelled during provider backoff; deferring commit for redelivery")
				return
			}
			// Provider throttling does not consume the retry budget.
			continue
		}

		logEvent.Warn().Err(err).Msg("worker: delivery attempt failed")

		if attempt >= e.cfg.MaxAttempts {
			e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventFailed, Attempt: attempt, ProviderResponse: resp, Error: err.Error()})
			failureType := models.FailureTypeTransient
			if !errors.Is(err, platform.ErrTransient) {
				failureType = models.FailureTypeUnknown
			}
			e.publishDLQ(msg, platformName, failureType, attempt, err, firstFailedAt, now)
			e.commitRecord(record)
			return
		}

		backoff := e.computeBackoff(attempt)
		if backoff > 0 {
			logEvent.Info().Dur("backoff", backoff).Msg("worker: scheduling retry")
		}
		if !e.wait(ctx, backoff) {
			logEvent.Warn().Msg("worker: context cancelled while waiting for retry; message redelivered on next poll")
			return
		}

		attempt++
	}
}

// waitForQuota blocks until the creator has quota or the context ends.
// Returns false only on cancellation.
func (e *Engine) waitForQuota(ctx context.Context, msg models.MessagePayload, platformName string, logger zerolog.Logger) bool {
	for {
		res := e.limiter.CheckAndRecord(msg.UserID)
		if res.Allowed {
			return true
		}

		e.publishStatus(models.StatusEvent{
			MessageID:  msg.MessageID,
			Platform:   platformName,
			EventType:  models.StatusEventRateLimited,
			RetryAfter: ratelimit.RetryAfterSeconds(res),
		})
		logger.Info().Dur("retry_after", res.RetryAfter).Msg("worker: creator rate limited, waiting for next window")

		if !e.wait(ctx, res.RetryAfter) {
			return false
		}
	}
}

func (e *Engine) rejectRecord(record *Record, msg models.MessagePayload, cause error) {
	e.logger.Warn().
		Str("message_id", msg.MessageID).
		Err(cause).
		Msg("worker: record rejected before delivery")

	now := e.now()
	platformName := e.platformFor(msg)
	e.publishStatus(models.StatusEvent{MessageID: msg.MessageID, Platform: platformName, EventType: models.StatusEventFailed, Error: cause.Error()})
	e.publishDLQ(msg, platformName, models.FailureTypeValidation, 0, cause, now, now)
	e.commitRecord(record)
}

func (e *Engine) platformFor(msg models.MessagePayload) string {
	if name, ok := msg.Metadata[MetadataPlatformKey]; ok && name != "" {
		return name
	}
	return e.cfg.DefaultPlatform
}

func (e *Engine) computeBackoff(attempt int) time.Duration {
	if e.cfg.BaseBackoff <= 0 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(e.cfg.BaseBackoff) * multiplier)
	if e.cfg.MaxBackoff > 0 && raw > e.cfg.MaxBackoff {
		raw = e.cfg.MaxBackoff
	}

	return e.fullJitter(raw)
}

func (e *Engine) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	n := e.rnd.Int63n(int64(max) + 1)
	return time.Duration(n)
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Engine) publishStatus(event models.StatusEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if err := e.status.Publish(event); err != nil {
		e.logger.Error().
			Str("message_id", event.MessageID).
			Str("event", event.EventType).
			Err(err).
			Msg("worker: failed to publish status event")
	}
}

func (e *Engine) publishDLQ(msg models.MessagePayload, platformName, failureType string, attempts int, cause error, firstFailedAt, lastAttemptAt time.Time) {
	record := models.DLQRecord{
		MessageID:       msg.MessageID,
		Platform:        platformName,
		OriginalMessage: msg,
		Attempts:        attempts,
		FailureType:     failureType,
		LastError:       cause.Error(),
		FirstFailedAt:   firstFailedAt,
		LastAttemptAt:   lastAttemptAt,
	}
	if err := e.dlq.Publish(record); err != nil {
		e.logger.Error().
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: failed to publish DLQ record")
	}
}

func (e *Engine) recordConversation(ctx context.Context, msg models.MessagePayload, logger zerolog.Logger) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordDM(ctx, msg, e.now()); err != nil {
		logger.Error().Err(err).Msg("worker: failed to persist conversation record")
	}
}

func (e *Engine) commitRecord(record *Record) {
	if record == nil || record.commit == nil {
		return
	}
	record.commit()
}

func providerRetryAfter(resp *models.ProviderResponse) time.Duration {
	const fallback = 5 * time.Second
	if resp == nil {
		return fallback
	}
	raw, ok := resp.Meta["retry_after_seconds"]
	if !ok {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
