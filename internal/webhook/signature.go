package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names used by the automation platform when delivering webhooks.
const (
	SignatureHeader = "X-Autogen-Signature"
	TimestampHeader = "X-Autogen-Timestamp"
)

// DefaultMaxAge is the replay window applied when no override is configured.
const DefaultMaxAge = 300 * time.Second

var (
	// ErrInvalidSignature is returned when the provided signature does not
	// match the computed one, or is malformed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrStaleTimestamp is returned when the signed timestamp falls outside
	// the replay window.
	ErrStaleTimestamp = errors.New("webhook timestamp outside allowed window")
	// ErrMalformedTimestamp is returned when the timestamp header is not unix
	// seconds.
	ErrMalformedTimestamp = errors.New("webhook timestamp must be unix seconds")
)

// Validator verifies webhook deliveries against a shared secret. Validation
// always operates on the raw request body bytes; re-serializing the decoded
// structure would break on key ordering and whitespace.
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator builds a Validator. maxAge <= 0 falls back to DefaultMaxAge.
func NewValidator(secret string, maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Validator{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests to pin the replay window.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Sign computes the signature for a body at the given unix timestamp. The
// signing string is "<ts>.<body>" and the result carries a "sha256=" prefix,
// matching what the automation platform sends.
func Sign(secret []byte, unixTS int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", unixTS)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the signature and timestamp headers against the raw body.
// Failures are terminal; retrying a stale delivery would defeat replay
// protection.
func (v *Validator) Validate(body []byte, signature, timestamp string) error {
	ts, err := parseUnixSeconds(timestamp)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.maxAge || age < -v.maxAge {
		return fmt.Errorf("%w: age %s exceeds %s", ErrStaleTimestamp, age.Truncate(time.Second), v.maxAge)
	}

	expected := Sign(v.secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func parseUnixSeconds(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: value is empty", ErrMalformedTimestamp)
	}
	ts, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedTimestamp, err)
	}
	return ts, nil
}
