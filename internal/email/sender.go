// Package email delivers transactional mail. The log sender stands in for a
// real provider in development and single-node deployments.
package email

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
)

// LogSender writes outbound mail to the log instead of delivering it.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &LogSender{logger: logger.With().Str("component", "email_sender").Logger()}
}

// SendWelcome records the welcome mail that would have been sent.
func (s *LogSender) SendWelcome(_ context.Context, email, displayName string) error {
	s.logger.Info().
		Str("to", email).
		Str("display_name", displayName).
		Msg("welcome email")
	return nil
}
