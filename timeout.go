package nbsftp

import (
	"context"
	"time"
)

// DefaultPollPeriod is the readiness wait used between predicate checks by Until.
const DefaultPollPeriod = time.Millisecond

// Timeout bounds how long a session operation may wait for the socket.
//
// A Timeout waits on the socket for one period at a time, and after each
// period that passes without readiness asks its predicate whether to keep
// waiting. The zero Timeout waits indefinitely.
type Timeout struct {
	period    time.Duration
	predicate func() bool
}

func never() bool { return false }

// After gives up the first time the socket stays idle for d.
// A zero d waits indefinitely.
func After(d time.Duration) Timeout {
	return Timeout{period: d}
}

// Until keeps waiting for as long as keepWaiting returns true,
// checking it every DefaultPollPeriod. A nil keepWaiting gives up after the first period.
func Until(keepWaiting func() bool) Timeout {
	return Timeout{period: DefaultPollPeriod, predicate: keepWaiting}
}

// UntilDone keeps waiting until ctx is done.
func UntilDone(ctx context.Context) Timeout {
	return Until(func() bool { return ctx.Err() == nil })
}

// Every returns a copy of t that checks its predicate every period.
func (t Timeout) Every(period time.Duration) Timeout {
	t.period = period
	return t
}

// Period returns how long each readiness wait lasts.
func (t Timeout) Period() time.Duration { return t.period }

// keepWaiting evaluates the predicate after an idle period.
func (t Timeout) keepWaiting() bool {
	if t.predicate == nil {
		return never()
	}

	return t.predicate()
}
