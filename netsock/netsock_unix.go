//go:build unix

package netsock

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/pkg/nbsftp"
)

// Connect resolves host and starts connecting to it.
// It returns SocketNotReady while the connection is in progress.
func (s *Socket) Connect(host string, port uint16) nbsftp.SocketStatus {
	s.Disconnect()

	ips, err := net.LookupIP(host)
	if err == nil && len(ips) == 0 {
		err = errors.Errorf("no addresses for %s", host)
	}
	if err != nil {
		s.setErr(errors.Wrapf(err, "resolve %s", host))
		return nbsftp.SocketError
	}

	domain, sa := sockaddr(ips[0], port)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		s.setErr(errors.Wrap(err, "socket"))
		return nbsftp.SocketError
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		s.setErr(errors.Wrap(err, "set non-blocking"))
		return nbsftp.SocketError
	}

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		unix.Close(fd)
		s.setErr(errors.Wrap(err, "wake pipe"))
		return nbsftp.SocketError
	}

	for _, pfd := range p {
		unix.CloseOnExec(pfd)
		unix.SetNonblock(pfd, true)
	}

	s.mu.Lock()
	s.fd, s.wakeR, s.wakeW = fd, p[0], p[1]
	s.err = nil
	s.mu.Unlock()

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		return nbsftp.SocketDone
	case err == unix.EINPROGRESS, err == unix.EINTR, err == unix.ECONNREFUSED:
		// a refused connection shows up as a missing peer once writable.
		s.setErr(errors.Wrap(err, "connect "+net.JoinHostPort(host, strconv.Itoa(int(port)))))
		return nbsftp.SocketNotReady
	default:
		s.setErr(errors.Wrap(err, "connect "+net.JoinHostPort(host, strconv.Itoa(int(port)))))
		s.Disconnect()
		return nbsftp.SocketError
	}
}

func sockaddr(ip net.IP, port uint16) (int, unix.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: int(port)}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: int(port)}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa
}

func (s *Socket) socket() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fd
}

// Send writes as much of b as the kernel accepts.
func (s *Socket) Send(b []byte) (nbsftp.SocketStatus, int) {
	fd := s.socket()
	if fd < 0 {
		return nbsftp.SocketDisconnected, 0
	}

	for {
		n, err := unix.Write(fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nbsftp.SocketNotReady, 0
		case err == unix.EPIPE, err == unix.ECONNRESET:
			s.setErr(errors.Wrap(err, "send"))
			return nbsftp.SocketDisconnected, 0
		case err != nil:
			s.setErr(errors.Wrap(err, "send"))
			return nbsftp.SocketError, 0
		case n < len(b):
			return nbsftp.SocketPartial, n
		default:
			return nbsftp.SocketDone, n
		}
	}
}

// Receive reads whatever the kernel has buffered into b.
func (s *Socket) Receive(b []byte) (nbsftp.SocketStatus, int) {
	fd := s.socket()
	if fd < 0 {
		return nbsftp.SocketDisconnected, 0
	}

	for {
		n, err := unix.Read(fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nbsftp.SocketNotReady, 0
		case err == unix.ECONNRESET:
			s.setErr(errors.Wrap(err, "receive"))
			return nbsftp.SocketDisconnected, 0
		case err != nil:
			s.setErr(errors.Wrap(err, "receive"))
			return nbsftp.SocketError, 0
		case n == 0 && len(b) > 0:
			return nbsftp.SocketDisconnected, 0
		default:
			return nbsftp.SocketDone, n
		}
	}
}

// Disconnect closes the connection. It is a no-op on a disconnected socket.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fd := range []*int{&s.fd, &s.wakeR, &s.wakeW} {
		if *fd >= 0 {
			unix.Close(*fd)
			*fd = -1
		}
	}
}

// RemoteAddr returns the address of the peer, or nil when not connected.
func (s *Socket) RemoteAddr() net.Addr {
	fd := s.socket()
	if fd < 0 {
		return nil
	}

	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}

	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	default:
		return nil
	}
}

// Wait polls the socket for dir and the wake pipe.
// A zero d waits indefinitely.
func (sel *Selector) Wait(dir nbsftp.Direction, d time.Duration) bool {
	sel.s.mu.Lock()
	fd, wakeR := sel.s.fd, sel.s.wakeR
	sel.s.mu.Unlock()

	if fd < 0 {
		return true
	}

	var events int16
	if dir&nbsftp.Inbound != 0 {
		events |= unix.POLLIN
	}
	if dir&nbsftp.Outbound != 0 {
		events |= unix.POLLOUT
	}

	fds := []unix.PollFd{
		{Fd: int32(fd), Events: events},
		{Fd: int32(wakeR), Events: unix.POLLIN},
	}

	timeout := -1
	if d > 0 {
		timeout = int((d + time.Millisecond - 1) / time.Millisecond)
	}

	deadline := time.Now().Add(d)

	for {
		n, err := unix.Poll(fds, timeout)
		if err == unix.EINTR {
			if d > 0 {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					return false
				}
				timeout = int((remaining + time.Millisecond - 1) / time.Millisecond)
			}
			continue
		}

		if err != nil {
			// let the next socket call report the failure.
			return true
		}

		if n == 0 {
			return false
		}

		if fds[1].Revents != 0 {
			sel.drain(wakeR)
			return true
		}

		return fds[0].Revents != 0
	}
}

func (sel *Selector) drain(fd int) {
	var buf [64]byte
	for {
		if n, err := unix.Read(fd, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

// Wake makes a Wait in progress, or the next one, return ready.
func (sel *Selector) Wake() {
	sel.s.mu.Lock()
	defer sel.s.mu.Unlock()

	if sel.s.wakeW < 0 {
		return
	}

	unix.Write(sel.s.wakeW, []byte{0})
}
