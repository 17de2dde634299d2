package nbsftp

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultCloseTimeout bounds the teardown done by Session.Close.
const DefaultCloseTimeout = 10 * time.Second

// An Option is a function which applies configuration to a Session.
type Option func(*Session)

// WithLogger sets the logger the session reports to.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithMetrics makes the session record into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithCloseTimeout sets the Timeout used by Close.
func WithCloseTimeout(t Timeout) Option {
	return func(s *Session) {
		s.closeTimeout = t
	}
}
