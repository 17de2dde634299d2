package nbsftp

import (
	"io"
	"net"
	"sync"

	"code.hybscloud.com/iox"
)

// SocketStatus is the outcome of a socket call.
type SocketStatus int

// Socket statuses.
const (
	SocketDone SocketStatus = iota
	SocketPartial
	SocketNotReady
	SocketDisconnected
	SocketError
)

func (s SocketStatus) String() string {
	switch s {
	case SocketDone:
		return "done"
	case SocketPartial:
		return "partial"
	case SocketNotReady:
		return "not ready"
	case SocketDisconnected:
		return "disconnected"
	default:
		return "error"
	}
}

// Socket is a non-blocking stream socket owned by a Session.
type Socket interface {
	// Connect starts connecting to host:port.
	// It may return SocketNotReady while the connection is in progress.
	Connect(host string, port uint16) SocketStatus

	Send(b []byte) (SocketStatus, int)
	Receive(b []byte) (SocketStatus, int)
	Disconnect()

	// RemoteAddr returns nil unless the connection was established.
	RemoteAddr() net.Addr

	// Selector returns the readiness selector for the current connection.
	Selector() Selector
}

// Transport is handed to the engine as its I/O path.
// It translates socket outcomes into byte counts and sentinel errors:
// iox.ErrWouldBlock when nothing could move, io.EOF when the peer went away
// and ErrSocket on socket failure.
type Transport struct {
	socket Socket

	mu       sync.Mutex
	selector Selector
}

// NewTransport returns a Transport over socket.
func NewTransport(socket Socket) *Transport {
	return &Transport{socket: socket}
}

// Send writes as much of b as the socket accepts right now.
func (t *Transport) Send(b []byte) (int, error) {
	status, n := t.socket.Send(b)
	return transferred(status, n)
}

// Receive reads whatever the socket has available into b.
func (t *Transport) Receive(b []byte) (int, error) {
	status, n := t.socket.Receive(b)
	return transferred(status, n)
}

// RemoteAddr returns the address of the connected peer.
func (t *Transport) RemoteAddr() net.Addr {
	if t.socket == nil {
		return nil
	}

	return t.socket.RemoteAddr()
}

// Wake interrupts a readiness wait in progress, if the selector supports it.
// It is safe to call from any goroutine.
func (t *Transport) Wake() {
	t.mu.Lock()
	w, ok := t.selector.(Waker)
	t.mu.Unlock()

	if ok {
		w.Wake()
	}
}

func (t *Transport) setSelector(sel Selector) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.selector = sel
}

func transferred(status SocketStatus, n int) (int, error) {
	switch status {
	case SocketDone:
		return n, nil
	case SocketPartial:
		if n > 0 {
			return n, nil
		}
		return 0, iox.ErrWouldBlock
	case SocketNotReady:
		return 0, iox.ErrWouldBlock
	case SocketDisconnected:
		return 0, io.EOF
	default:
		return 0, ErrSocket
	}
}
