package sshengine

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"code.hybscloud.com/iox"
)

// pipeConn is the net.Conn x/crypto/ssh runs on.
// Bytes written by the protocol goroutines queue up until the engine flushes
// them to the socket, and bytes the engine received are queued for reading.
type pipeConn struct {
	mu   sync.Mutex
	cond *sync.Cond

	in  bytes.Buffer
	out bytes.Buffer

	// inErr is returned by Read once in is drained.
	inErr  error
	closed bool

	// written receives a token after every Write.
	written chan struct{}
	onWrite func()

	inSniffer  kexinitSniffer
	outSniffer kexinitSniffer

	local, remote net.Addr
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func newPipeConn(remote net.Addr, onWrite func()) *pipeConn {
	if remote == nil {
		remote = pipeAddr{}
	}

	p := &pipeConn{
		written: make(chan struct{}, 1),
		onWrite: onWrite,
		local:   pipeAddr{},
		remote:  remote,
	}
	p.cond = sync.NewCond(&p.mu)

	return p
}

// Read blocks until received bytes are available.
func (p *pipeConn) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.in.Len() == 0 && p.inErr == nil && !p.closed {
		p.cond.Wait()
	}

	if p.in.Len() > 0 {
		return p.in.Read(b)
	}

	if p.inErr != nil {
		return 0, p.inErr
	}

	return 0, io.EOF
}

// Write queues b for the socket. It never blocks.
func (p *pipeConn) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}

	p.out.Write(b)
	p.outSniffer.write(b)
	p.mu.Unlock()

	select {
	case p.written <- struct{}{}:
	default:
	}

	if p.onWrite != nil {
		p.onWrite()
	}

	return len(b), nil
}

// Close stops reads and writes. Queued output can still be flushed.
func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.cond.Broadcast()

	return nil
}

func (p *pipeConn) LocalAddr() net.Addr  { return p.local }
func (p *pipeConn) RemoteAddr() net.Addr { return p.remote }

func (p *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (p *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (p *pipeConn) SetWriteDeadline(t time.Time) error { return nil }

// feed queues bytes received from the socket.
func (p *pipeConn) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.in.Write(b)
	p.inSniffer.write(b)
	p.cond.Broadcast()
}

// fail makes pending and future reads return err once the queued input is consumed.
func (p *pipeConn) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inErr == nil {
		p.inErr = err
	}
	p.cond.Broadcast()
}

// flush hands queued output to send until it is empty or send fails.
func (p *pipeConn) flush(send func([]byte) (int, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.out.Len() > 0 {
		n, err := send(p.out.Bytes())
		p.out.Next(n)

		if err != nil {
			return err
		}

		if n == 0 {
			return iox.ErrWouldBlock
		}
	}

	return nil
}

// pending returns the number of queued output bytes.
func (p *pipeConn) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.out.Len()
}

// kexinits returns both first key exchange messages once they have been seen.
func (p *pipeConn) kexinits() (client, server *kexinit, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, server = p.outSniffer.msg, p.inSniffer.msg
	return client, server, client != nil && server != nil
}
