package platform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/models"
)

func testAdapter(t *testing.T, opts ...Option) *MockAdapter {
	t.Helper()
	opts = append([]Option{WithLatency(0)}, opts...)
	a, err := NewMockAdapter(OnlyFans, zerolog.New(io.Discard), opts...)
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	return a
}

func testMessage(meta map[string]string) models.MessagePayload {
	msg := models.NewMessagePayload("creator-1", "fan-1", "hello")
	msg.Metadata = meta
	return msg
}

func TestMockAdapterSuccess(t *testing.T) {
	a := testAdapter(t)

	resp, err := a.Send(context.Background(), testMessage(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "ok" || resp.Code == nil || *resp.Code != http.StatusOK {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Meta["provider_id"] == "" {
		t.Fatalf("expected provider_id in meta")
	}
}

func TestMockAdapterScenarioOverride(t *testing.T) {
	a := testAdapter(t)

	cases := []struct {
		scenario string
		sentinel error
		status   string
	}{
		{string(ScenarioTransient), ErrTransient, "transient_failure"},
		{string(ScenarioPermanent), ErrPermanent, "permanent_failure"},
		{string(ScenarioRateLimited), ErrRateLimited, "rate_limited"},
	}
	for _, tc := range cases {
		resp, err := a.Send(context.Background(), testMessage(map[string]string{"scenario": tc.scenario}))
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("scenario %s: expected %v, got %v", tc.scenario, tc.sentinel, err)
		}
		if resp == nil || resp.Status != tc.status {
			t.Fatalf("scenario %s: unexpected response %+v", tc.scenario, resp)
		}
	}
}

func TestMockAdapterRateLimitedReportsRetryAfter(t *testing.T) {
	a := testAdapter(t, WithRetryAfter(45))

	resp, err := a.Send(context.Background(), testMessage(map[string]string{"scenario": "rate_limited"}))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if resp.Meta["retry_after_seconds"] != "45" {
		t.Fatalf("expected retry_after_seconds=45, got %q", resp.Meta["retry_after_seconds"])
	}
}

func TestMockAdapterHonoursCancellation(t *testing.T) {
	a := testAdapter(t, WithLatency(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Send(ctx, testMessage(nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockAdapterRejectsEmptyRecipient(t *testing.T) {
	a := testAdapter(t)

	msg := testMessage(nil)
	msg.RecipientID = ""
	if _, err := a.Send(context.Background(), msg); !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}

func TestRegistryResolvesByPlatform(t *testing.T) {
	of := testAdapter(t)
	ig, err := NewMockAdapter(Instagram, zerolog.New(io.Discard), WithLatency(0))
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}

	reg, err := NewRegistry(of, ig)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	got, err := reg.Adapter(Instagram)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Platform() != Instagram {
		t.Fatalf("resolved wrong adapter: %s", got.Platform())
	}

	if _, err := reg.Adapter("myspace"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}

	platforms := reg.Platforms()
	if len(platforms) != 2 || platforms[0] != Instagram || platforms[1] != OnlyFans {
		t.Fatalf("unexpected platform list: %v", platforms)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a := testAdapter(t)
	b := testAdapter(t)
	if _, err := NewRegistry(a, b); err == nil {
		t.Fatalf("expected duplicate platform error")
	}
}
