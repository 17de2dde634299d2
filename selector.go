package nbsftp

import (
	"time"
)

// Direction is the socket readiness a wait is interested in.
type Direction uint8

// Directions; Either is Inbound|Outbound.
const (
	Inbound Direction = 1 << iota
	Outbound

	Either = Inbound | Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	case Either:
		return "either"
	default:
		return "none"
	}
}

// Selector waits for a socket to become ready.
// It is the only place a Session blocks.
type Selector interface {
	// Wait blocks until the socket is ready in dir, or d has elapsed.
	// A zero d waits indefinitely. It reports whether the socket became ready.
	Wait(dir Direction, d time.Duration) bool
}

// Waker is implemented by selectors whose waits can be cut short from another goroutine.
// A woken Wait reports ready.
type Waker interface {
	Wake()
}
