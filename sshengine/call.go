package sshengine

import (
	"io"
	"strconv"
	"strings"
	"time"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"

	"github.com/pkg/nbsftp"
	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// call is an engine operation running on its own goroutine.
// finished and abandoned are guarded by Engine.mu.
type call struct {
	done chan struct{}
	val  interface{}
	err  error

	finished  bool
	abandoned bool

	// discard releases what a successful call produced once nobody wants it.
	discard func(interface{})
}

// drop hands the result of an abandoned call to its discard func.
func (c *call) drop() {
	if c.err == nil && c.discard != nil {
		c.discard(c.val)
	}
}

// callKey identifies a call by operation and arguments.
func callKey(op string, args ...interface{}) string {
	var b strings.Builder
	b.WriteString(op)

	for _, arg := range args {
		b.WriteByte(0)

		switch v := arg.(type) {
		case string:
			b.WriteString(v)
		case nbsftp.Handle:
			b.WriteString(string(v))
		case int:
			b.WriteString(strconv.Itoa(v))
		case uint32:
			b.WriteString(strconv.FormatUint(uint64(v), 10))
		case uint64:
			b.WriteString(strconv.FormatUint(v, 10))
		case bool:
			b.WriteString(strconv.FormatBool(v))
		}
	}

	return b.String()
}

// do starts fn the first time key is seen and otherwise keeps going with the
// call already running under key. It moves bytes for at most the settle time
// and returns iox.ErrWouldBlock while the call has not finished.
func do[T any](e *Engine, key string, fn func() (T, error)) (T, error) {
	return doDiscard(e, key, fn, nil)
}

// doDiscard is do for calls whose result holds a server resource: discard
// releases it when the call is abandoned and succeeds anyway.
func doDiscard[T any](e *Engine, key string, fn func() (T, error), discard func(T)) (T, error) {
	var zero T

	e.mu.Lock()
	if e.isClosed() {
		e.mu.Unlock()
		return zero, errClosed
	}

	c, ok := e.calls[key]
	if !ok {
		c = &call{done: make(chan struct{})}
		if discard != nil {
			c.discard = func(v interface{}) {
				if v, ok := v.(T); ok {
					discard(v)
				}
			}
		}
		e.calls[key] = c

		go func() {
			val, err := fn()

			e.mu.Lock()
			c.val, c.err = val, err
			c.finished = true
			abandoned := c.abandoned
			close(c.done)
			e.mu.Unlock()

			if abandoned {
				c.drop()
				return
			}

			e.transport.Wake()
		}()
	}
	e.mu.Unlock()

	if err := e.pump(c.done); err != nil {
		return zero, err
	}

	select {
	case <-c.done:
	default:
		return zero, iox.ErrWouldBlock
	}

	e.mu.Lock()
	if e.calls[key] == c {
		delete(e.calls, key)
	}
	e.mu.Unlock()

	if c.err != nil {
		return zero, c.err
	}

	v, _ := c.val.(T)
	return v, nil
}

// Abandon forgets every call in progress. Calls still running finish on
// their own and their results are dropped.
func (e *Engine) Abandon() {
	e.mu.Lock()
	calls := e.calls
	e.calls = make(map[string]*call)

	var finished []*call
	for _, c := range calls {
		c.abandoned = true
		if c.finished {
			finished = append(finished, c)
		}
	}
	e.mu.Unlock()

	for _, c := range finished {
		go c.drop()
	}
}

// pump moves bytes between the socket and the protocol goroutines until done
// is closed or nothing happened for the settle time.
func (e *Engine) pump(done <-chan struct{}) error {
	buf := e.buffers.Get()
	if buf == nil {
		buf = make([]byte, sshfx.DefaultMaxPacketLength)
	}
	defer e.buffers.Put(buf)

	settle := time.NewTimer(e.cfg.settle())
	defer settle.Stop()

	for {
		if err := e.pipe.flush(e.transport.Send); err != nil && !iox.IsWouldBlock(err) {
			return e.socketFailed(nbsftp.CodeSocketSend, err)
		}

		for {
			n, err := e.transport.Receive(buf)
			if n > 0 {
				e.pipe.feed(buf[:n])
			}

			if iox.IsWouldBlock(err) || (err == nil && n == 0) {
				break
			}

			if err != nil {
				return e.socketFailed(nbsftp.CodeSocketRecv, err)
			}
		}

		select {
		case <-done:
			if err := e.pipe.flush(e.transport.Send); err != nil && !iox.IsWouldBlock(err) {
				return e.socketFailed(nbsftp.CodeSocketSend, err)
			}
			return nil

		case <-e.pipe.written:

		case <-settle.C:
			return nil
		}
	}
}

// socketFailed cuts the protocol goroutines off and reports the failure.
func (e *Engine) socketFailed(code nbsftp.ErrorCode, err error) error {
	e.pipe.fail(io.ErrUnexpectedEOF)

	if errors.Is(err, io.EOF) {
		code = nbsftp.CodeSocketDisconnect
	}

	failure := &nbsftp.EngineError{Code: code, Message: "socket failure", Err: err}

	e.mu.Lock()
	e.socketErr = failure
	e.mu.Unlock()

	return failure
}
