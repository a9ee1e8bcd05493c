package webhook

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/fanforge/creator-platform/internal/models"
)

var fixedNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestValidator(secret string) *Validator {
	return NewValidator(secret, 300*time.Second).WithClock(func() time.Time { return fixedNow })
}

func TestSignValidateRoundTrip(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{"userId":"creator-1","eventType":"ACTOR.RUN.SUCCEEDED"}`)
	ts := fixedNow.Unix()

	sig := Sign([]byte(secret), ts, body)
	v := newTestValidator(secret)

	if err := v.Validate(body, sig, strconv.FormatInt(ts, 10)); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	body := []byte(`{"a":1}`)
	if Sign([]byte("k"), 1000, body) != Sign([]byte("k"), 1000, body) {
		t.Fatalf("identical inputs must produce identical signatures")
	}
}

func TestSignDiffersByKeyAndBody(t *testing.T) {
	body := []byte(`{"a":1}`)
	if Sign([]byte("key1"), 1000, body) == Sign([]byte("key2"), 1000, body) {
		t.Fatalf("different secrets must produce different signatures")
	}
	if Sign([]byte("key1"), 1000, body) == Sign([]byte("key1"), 1000, []byte(`{"a":2}`)) {
		t.Fatalf("different bodies must produce different signatures")
	}
}

func TestValidateOperatesOnRawBytes(t *testing.T) {
	// Semantically equal JSON with different whitespace must not validate:
	// the contract is over raw bytes, not a canonicalized structure.
	secret := "shared-secret"
	ts := fixedNow.Unix()
	sig := Sign([]byte(secret), ts, []byte(`{"a":1}`))

	v := newTestValidator(secret)
	if err := v.Validate([]byte(`{ "a": 1 }`), sig, strconv.FormatInt(ts, 10)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for re-serialized body, got %v", err)
	}
}

func TestValidateRejectsWrongSignature(t *testing.T) {
	v := newTestValidator("shared-secret")
	ts := strconv.FormatInt(fixedNow.Unix(), 10)

	err := v.Validate([]byte("{}"), "sha256=deadbeef", ts)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	secret := "shared-secret"
	body := []byte("{}")
	stale := fixedNow.Add(-301 * time.Second).Unix()
	sig := Sign([]byte(secret), stale, body)

	v := newTestValidator(secret)
	err := v.Validate(body, sig, strconv.FormatInt(stale, 10))
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestValidateRejectsFutureSkew(t *testing.T) {
	secret := "shared-secret"
	body := []byte("{}")
	future := fixedNow.Add(301 * time.Second).Unix()
	sig := Sign([]byte(secret), future, body)

	v := newTestValidator(secret)
	if err := v.Validate(body, sig, strconv.FormatInt(future, 10)); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp for future timestamp, got %v", err)
	}
}

func TestValidateRejectsMalformedTimestamp(t *testing.T) {
	v := newTestValidator("shared-secret")
	if err := v.Validate([]byte("{}"), "sha256=00", "yesterday"); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp, got %v", err)
	}
	if err := v.Validate([]byte("{}"), "sha256=00", ""); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp for empty value, got %v", err)
	}
}

func TestDeriveEventIDDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	a := DeriveEventID("run-1", models.EventRunSucceeded, at)
	b := DeriveEventID("run-1", models.EventRunSucceeded, at)
	if a != b {
		t.Fatalf("identical identity fields must derive the same id: %s vs %s", a, b)
	}

	if DeriveEventID("run-2", models.EventRunSucceeded, at) == a {
		t.Fatalf("distinct run ids must derive distinct event ids")
	}
	if DeriveEventID("run-1", models.EventRunFailed, at) == a {
		t.Fatalf("distinct event types must derive distinct event ids")
	}
	if DeriveEventID("run-1", models.EventRunSucceeded, at.Add(time.Second)) == a {
		t.Fatalf("distinct timestamps must derive distinct event ids")
	}
}

func TestEventIDUsesIdentityFields(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	ev := models.WebhookEvent{
		UserID:    "creator-1",
		CreatedAt: at,
		EventType: models.EventRunSucceeded,
		EventData: models.WebhookEventData{ActorID: "actor-1", ActorRunID: "run-1"},
	}

	if EventID(ev) != DeriveEventID("run-1", models.EventRunSucceeded, at) {
		t.Fatalf("EventID must match DeriveEventID over identity fields")
	}

	// Non-identity fields do not participate.
	other := ev
	other.UserID = "creator-2"
	other.EventData.ActorID = "actor-9"
	if EventID(other) != EventID(ev) {
		t.Fatalf("non-identity fields must not change the derived id")
	}
}
