// Package netsock provides a non-blocking TCP socket for nbsftp sessions.
//
// The socket never blocks: Connect starts the connection and returns, and
// Send and Receive move whatever the kernel accepts right now. Waiting is left
// to the Selector, which polls the socket together with a wake pipe so that
// engine goroutines can interrupt a wait.
package netsock

import (
	"sync"

	"github.com/pkg/nbsftp"
)

var (
	_ nbsftp.Socket   = (*Socket)(nil)
	_ nbsftp.Selector = (*Selector)(nil)
	_ nbsftp.Waker    = (*Selector)(nil)
)

// Socket is a non-blocking TCP client socket.
// Its zero value is not usable; create one with New.
type Socket struct {
	mu sync.Mutex

	fd    int
	wakeR int
	wakeW int

	err error

	sel *Selector
}

// Selector waits for readiness of the connection owned by a Socket.
type Selector struct {
	s *Socket
}

// New returns a disconnected Socket.
func New() *Socket {
	s := &Socket{fd: -1, wakeR: -1, wakeW: -1}
	s.sel = &Selector{s: s}
	return s
}

// Selector returns the readiness selector of s.
func (s *Socket) Selector() nbsftp.Selector { return s.sel }

// Err returns the last system error the socket ran into.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Close disconnects s. It exists so a Socket can be used as an io.Closer.
func (s *Socket) Close() error {
	s.Disconnect()
	return nil
}

func (s *Socket) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}
