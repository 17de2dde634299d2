//go:build !unix

package netsock

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/pkg/nbsftp"
)

var errUnsupported = errors.New("netsock: non-blocking sockets are not supported on this platform")

// Connect always fails on this platform.
func (s *Socket) Connect(host string, port uint16) nbsftp.SocketStatus {
	s.setErr(errUnsupported)
	return nbsftp.SocketError
}

func (s *Socket) Send(b []byte) (nbsftp.SocketStatus, int)    { return nbsftp.SocketError, 0 }
func (s *Socket) Receive(b []byte) (nbsftp.SocketStatus, int) { return nbsftp.SocketError, 0 }
func (s *Socket) Disconnect()                                  {}
func (s *Socket) RemoteAddr() net.Addr                         { return nil }

func (sel *Selector) Wait(dir nbsftp.Direction, d time.Duration) bool { return false }
func (sel *Selector) Wake()                                           {}
