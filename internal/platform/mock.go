package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/models"
)

// Scenario enumerates the behaviours supported by the mock adapter. A payload
// can select one via metadata["scenario"]; otherwise the default applies.
type Scenario string

const (
	ScenarioSuccess     Scenario = "success"
	ScenarioTransient   Scenario = "transient"
	ScenarioPermanent   Scenario = "permanent"
	ScenarioRateLimited Scenario = "rate_limited"
	ScenarioTimeout     Scenario = "timeout"
)

// Option customises the mock adapter.
type Option func(*MockAdapter)

// WithScenario sets the default scenario used when a payload does not specify one.
func WithScenario(s Scenario) Option {
	return func(a *MockAdapter) {
		a.defaultScenario = s
	}
}

// WithLatency configures the artificial latency injected before sending.
func WithLatency(d time.Duration) Option {
	return func(a *MockAdapter) {
		if d < 0 {
			d = 0
		}
		a.latency = d
	}
}

// WithClock overrides the clock used to timestamp responses.
func WithClock(now func() time.Time) Option {
	return func(a *MockAdapter) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRetryAfter sets the Retry-After seconds reported on rate limited sends.
func WithRetryAfter(seconds int) Option {
	return func(a *MockAdapter) {
		if seconds > 0 {
			a.retryAfter = seconds
		}
	}
}

// MockAdapter is a deterministic platform adapter used in development and
// tests. One instance serves one platform name.
type MockAdapter struct {
	platform        string
	logger          zerolog.Logger
	defaultScenario Scenario
	latency         time.Duration
	retryAfter      int
	now             func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockAdapter constructs a mock adapter for the named platform.
func NewMockAdapter(platform string, logger zerolog.Logger, opts ...Option) (*MockAdapter, error) {
	if platform == "" {
		return nil, errors.New("mock adapter: platform name is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	a := &MockAdapter{
		platform:        platform,
		logger:          logger.With().Str("platform", platform).Logger(),
		defaultScenario: ScenarioSuccess,
		latency:         25 * time.Millisecond,
		retryAfter:      30,
		now:             time.Now,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- predictable in tests.
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Platform returns the platform this adapter serves.
func (a *MockAdapter) Platform() string {
	return a.platform
}

// Send simulates delivering a DM according to the configured scenario.
func (a *MockAdapter) Send(ctx context.Context, msg models.MessagePayload) (*models.ProviderResponse, error) {
	if msg.RecipientID == "" {
		return nil, WrapPermanent(errors.New("mock adapter: recipient is required"))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	scenario := a.defaultScenario
	if val, ok := msg.Metadata["scenario"]; ok && strings.TrimSpace(val) != "" {
		scenario = Scenario(strings.ToLower(strings.TrimSpace(val)))
	}

	meta := map[string]string{
		"provider_id":        a.providerID(msg.MessageID),
		"provider_timestamp": a.now().UTC().Format(time.RFC3339Nano),
	}

	switch scenario {
	case ScenarioSuccess:
		code := http.StatusOK
		a.logger.Debug().Str("message_id", msg.MessageID).Msg("mock send succeeded")
		return &models.ProviderResponse{
			Status:  "ok",
			Code:    &code,
			Message: "sent",
			Meta:    meta,
		}, nil
	case ScenarioTransient:
		code := http.StatusServiceUnavailable
		return &models.ProviderResponse{
			Status:  "transient_failure",
			Code:    &code,
			Message: "mock: provider unavailable",
			Meta:    meta,
		}, WrapTransient(fmt.Errorf("%s mock: provider unavailable", a.platform))
	case ScenarioPermanent:
		code := http.StatusForbidden
		return &models.ProviderResponse{
			Status:  "permanent_failure",
			Code:    &code,
			Message: "mock: recipient has blocked messages",
			Meta:    meta,
		}, WrapPermanent(fmt.Errorf("%s mock: recipient has blocked messages", a.platform))
	case ScenarioRateLimited:
		code := http.StatusTooManyRequests
		meta["retry_after_seconds"] = fmt.Sprintf("%d", a.retryAfter)
		return &models.ProviderResponse{
			Status:  "rate_limited",
			Code:    &code,
			Message: "mock: platform rate limit hit",
			Meta:    meta,
		}, WrapRateLimited(fmt.Errorf("%s mock: platform rate limit hit", a.platform))
	case ScenarioTimeout:
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, WrapTransient(fmt.Errorf("%s mock: timeout", a.platform))
		}
	default:
		return nil, WrapPermanent(fmt.Errorf("%s mock: unknown scenario %q", a.platform, scenario))
	}
}

func (a *MockAdapter) providerID(suggested string) string {
	if strings.TrimSpace(suggested) != "" {
		return a.platform + "-" + suggested
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("%s-%d", a.platform, a.rnd.Int63())
}
