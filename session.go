package nbsftp

import (
	"time"

	"code.hybscloud.com/iox"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// DisconnectReason is sent to the server when a session ends.
const DisconnectReason = "Normal shutdown"

// Session is a non-blocking SFTP client session.
//
// A Session is not safe for concurrent use. Every operation takes a Timeout
// bounding how long it may wait for the socket, and reports its outcome as
// a Result.
type Session struct {
	id      string
	log     zerolog.Logger
	metrics *Metrics

	closeTimeout Timeout

	socket    Socket
	transport *Transport
	selector  Selector
	newEngine EngineFactory

	engine Engine
	sftp   SFTP

	posixRenameSupported bool
}

// New creates a disconnected Session that will talk through socket,
// using newEngine to set up the secure session on every Connect.
func New(socket Socket, newEngine EngineFactory, opts ...Option) *Session {
	s := &Session{
		id:                   uuid.NewString(),
		log:                  zerolog.Nop(),
		closeTimeout:         After(DefaultCloseTimeout),
		socket:               socket,
		transport:            NewTransport(socket),
		newEngine:            newEngine,
		posixRenameSupported: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With().Str("session", s.id).Logger()

	return s
}

// ID returns the identifier the session logs under.
func (s *Session) ID() string { return s.id }

// Connect establishes the TCP connection and performs the SSH handshake.
// Any previous connection is torn down first.
func (s *Session) Connect(host string, port uint16, t Timeout) (r Result) {
	defer s.track("connect", time.Now(), &r)

	s.Disconnect(t)

	if status := s.socket.Connect(host, port); status == SocketError || status == SocketDisconnected {
		return NewResult(StatusDisconnected, "")
	}

	s.selector = s.socket.Selector()
	s.transport.setSelector(s.selector)

	for !s.selector.Wait(Outbound, t.Period()) {
		if !t.keepWaiting() {
			s.dropSocket()
			return NewResult(StatusTimeout, "")
		}
	}

	if s.socket.RemoteAddr() == nil {
		s.dropSocket()
		return NewResult(StatusRefused, "")
	}

	s.posixRenameSupported = true

	engine, err := s.newEngine(s.transport)
	if err != nil {
		s.dropSocket()
		return engineResult(err, nil)
	}
	s.engine = engine

	return s.outcome(s.drive(t, engine.Handshake))
}

// Disconnect ends the session: it shuts the SFTP subsystem down, says goodbye to
// the server, releases the engine and closes the socket. Every step is attempted
// even when an earlier one timed out, and StatusTimeout is reported if any did.
// Calling Disconnect on a disconnected session is a no-op.
func (s *Session) Disconnect(t Timeout) (r Result) {
	defer s.track("disconnect", time.Now(), &r)

	var errs error
	timedOut := false

	step := func(what string, err error) {
		if iox.IsWouldBlock(err) {
			timedOut = true
		}
		errs = multierr.Append(errs, errors.Wrap(err, what))
	}

	if s.sftp != nil {
		sftp := s.sftp
		s.sftp = nil

		step("sftp shutdown", s.drive(t, sftp.Shutdown))
	}

	if s.engine != nil {
		engine := s.engine

		step("ssh disconnect", s.drive(t, func() error {
			return engine.Disconnect(DisconnectReason)
		}))

		step("engine close", engine.Close())
		s.engine = nil
	}

	s.dropSocket()

	if errs != nil {
		s.log.Warn().Err(errs).Msg("teardown incomplete")
	}

	if timedOut {
		return NewResult(StatusTimeout, "")
	}

	return success()
}

// Close disconnects with the session's close timeout.
func (s *Session) Close() error {
	return s.Disconnect(s.closeTimeout).Err()
}

func (s *Session) dropSocket() {
	s.socket.Disconnect()
	s.selector = nil
	s.transport.setSelector(nil)
}

// LoginPassword authenticates with a password and starts the SFTP subsystem.
func (s *Session) LoginPassword(user, password string, t Timeout) (r Result) {
	defer s.track("login", time.Now(), &r)

	return s.login(t, func(engine Engine) error {
		return engine.AuthPassword(user, password)
	})
}

// LoginPublicKey authenticates with a key pair held in memory and starts the SFTP subsystem.
// The private key is PEM encoded; passphrase may be empty.
// publicKey, in authorized_keys format, may be nil.
func (s *Session) LoginPublicKey(user string, publicKey, privateKey []byte, passphrase string, t Timeout) (r Result) {
	defer s.track("login", time.Now(), &r)

	return s.login(t, func(engine Engine) error {
		return engine.AuthPublicKey(user, publicKey, privateKey, passphrase)
	})
}

func (s *Session) login(t Timeout, auth func(Engine) error) Result {
	if s.engine == nil {
		return NewResult(StatusError, "not connected")
	}

	if s.sftp != nil {
		return NewResult(StatusError, "already logged in")
	}

	engine := s.engine

	if err := s.drive(t, func() error { return auth(engine) }); err != nil {
		return s.outcome(err)
	}

	var sftp SFTP
	err := s.drive(t, func() (err error) {
		sftp, err = engine.StartSFTP()
		return err
	})
	if err != nil {
		return s.outcome(err)
	}

	s.sftp = sftp
	return success()
}

// SessionInfo reports the server host key and the negotiated algorithms.
// It reports false before a successful handshake.
func (s *Session) SessionInfo() (SessionInfo, bool) {
	return sessionInfo(s.engine)
}

// drive runs call through the operation driver.
func (s *Session) drive(t Timeout, call func() error) error {
	return driver{
		directions: s.engine.BlockDirections,
		abandon:    s.engine.Abandon,
		selector:   s.selector,
		metrics:    s.metrics,
	}.run(t, call)
}

// outcome turns the error of a driven call into a Result.
func (s *Session) outcome(err error) Result {
	switch {
	case err == nil:
		return success()
	case iox.IsWouldBlock(err):
		return NewResult(StatusTimeout, "")
	default:
		return engineResult(err, s.sftp)
	}
}

func (s *Session) track(op string, start time.Time, r *Result) {
	s.metrics.observe(op, *r, start)

	s.log.Debug().
		Str("op", op).
		Stringer("status", r.Status()).
		Str("message", r.Message()).
		Dur("elapsed", time.Since(start)).
		Msg("operation finished")
}
