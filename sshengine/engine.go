// Package sshengine implements nbsftp.Engine on top of golang.org/x/crypto/ssh.
//
// The SSH protocol runs on goroutines that only ever touch in-memory buffers.
// All socket I/O happens inside engine calls, on the goroutine of the session
// that makes them, so the session decides when to wait for the socket.
package sshengine

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/pkg/nbsftp"
	"github.com/pkg/nbsftp/internal/pool"
)

var errClosed = &nbsftp.EngineError{Code: nbsftp.CodeBadUse, Message: "engine closed"}

// credentials are handed to the authentication goroutine once.
type credentials struct {
	password string
	signer   ssh.Signer
}

// Engine is an SSH client session driven through an nbsftp.Transport.
//
// Each call that is not finished yet keeps moving bytes for up to
// Config.Settle before it returns iox.ErrWouldBlock. This adds to the
// latency of every retry of the session's driver.
type Engine struct {
	cfg       Config
	log       zerolog.Logger
	transport *nbsftp.Transport
	pipe      *pipeConn
	buffers   *pool.SlicePool[[]byte, byte]

	mu    sync.Mutex
	calls map[string]*call

	startOnce sync.Once

	// awaiting is closed when authentication first asks for credentials,
	// which is when the key exchange is complete.
	awaiting     chan struct{}
	awaitingOnce sync.Once

	creds     *credentials
	credsSet  chan struct{}
	credsOnce sync.Once

	// connDone is closed once the connection is authenticated or has failed.
	connDone chan struct{}
	connErr  error
	client   *ssh.Client

	hostKey         nbsftp.HostKey
	hostKeyOK       bool
	hostKeyRejected bool
	socketErr       error

	sftp *sftpClient

	closed    chan struct{}
	closeOnce sync.Once
}

var _ nbsftp.Engine = (*Engine)(nil)

// New creates an engine talking through t.
func New(t *nbsftp.Transport, cfg Config) (*Engine, error) {
	if cfg.User == "" {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeInval, Message: "user is required"}
	}

	buffers, err := acquireBuffers()
	if err != nil {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeAlloc, Message: "engine library", Err: err}
	}

	e := &Engine{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "sshengine").Logger(),
		transport: t,
		buffers:   buffers,
		calls:     make(map[string]*call),
		awaiting:  make(chan struct{}),
		credsSet:  make(chan struct{}),
		connDone:  make(chan struct{}),
		closed:    make(chan struct{}),
	}
	e.pipe = newPipeConn(t.RemoteAddr(), t.Wake)

	return e, nil
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

func (e *Engine) clientConfig() *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User: e.cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeysCallback(e.signers),
			ssh.PasswordCallback(e.password),
			ssh.KeyboardInteractive(e.challenge),
		},
		HostKeyCallback: e.verifyHostKey,
		ClientVersion:   e.cfg.ClientVersion,
	}

	cfg.KeyExchanges = e.cfg.KeyExchanges
	cfg.Ciphers = e.cfg.Ciphers
	cfg.MACs = e.cfg.MACs

	return cfg
}

// start runs the connection setup on its own goroutine, once.
func (e *Engine) start() {
	e.startOnce.Do(func() {
		addr := e.cfg.Addr
		if addr == "" {
			addr = e.pipe.RemoteAddr().String()
		}

		go func() {
			c, chans, reqs, err := ssh.NewClientConn(e.pipe, addr, e.clientConfig())

			e.mu.Lock()
			if err != nil {
				e.connErr = err
			} else {
				e.client = ssh.NewClient(c, chans, reqs)
			}
			e.mu.Unlock()

			close(e.connDone)
			e.transport.Wake()
		}()
	})
}

// Handshake exchanges keys with the server and verifies its host key.
func (e *Engine) Handshake() error {
	_, err := do(e, callKey("handshake"), func() (struct{}, error) {
		e.start()

		select {
		case <-e.awaiting:
			return struct{}{}, nil
		case <-e.connDone:
			return struct{}{}, e.connFailure(nbsftp.CodeKexFailure)
		case <-e.closed:
			return struct{}{}, errClosed
		}
	})

	return err
}

// connFailure classifies the error that ended the connection setup.
func (e *Engine) connFailure(code nbsftp.ErrorCode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.connErr == nil:
		return nil
	case e.socketErr != nil:
		return e.socketErr
	case e.hostKeyRejected:
		code = nbsftp.CodeKnownHosts
	}

	return &nbsftp.EngineError{Code: code, Message: "ssh handshake failed", Err: e.connErr}
}

// BlockDirections reports Outbound while output is waiting for the socket.
func (e *Engine) BlockDirections() nbsftp.Direction {
	if e.pipe.pending() > 0 {
		return nbsftp.Outbound
	}

	return nbsftp.Inbound
}

func (e *Engine) verifyHostKey(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if e.cfg.HostKeyCallback != nil {
		if err := e.cfg.HostKeyCallback(hostname, remote, key); err != nil {
			e.mu.Lock()
			e.hostKeyRejected = true
			e.mu.Unlock()

			return err
		}
	}

	e.mu.Lock()
	e.hostKey = hostKeyOf(key)
	e.hostKeyOK = true
	e.mu.Unlock()

	return nil
}

// credentials blocks the authentication goroutine until a login supplies credentials.
func (e *Engine) credentials() (*credentials, error) {
	e.awaitingOnce.Do(func() {
		close(e.awaiting)
		e.transport.Wake()
	})

	select {
	case <-e.credsSet:
		return e.creds, nil
	case <-e.closed:
		return nil, errClosed
	}
}

func (e *Engine) signers() ([]ssh.Signer, error) {
	c, err := e.credentials()
	if err != nil {
		return nil, err
	}

	if c.signer == nil {
		return nil, nil
	}

	return []ssh.Signer{c.signer}, nil
}

var errNoPassword = errors.New("no password for this login")

func (e *Engine) password() (string, error) {
	c, err := e.credentials()
	if err != nil {
		return "", err
	}

	if c.signer != nil {
		return "", errNoPassword
	}

	return c.password, nil
}

// challenge answers every keyboard-interactive prompt with the password.
func (e *Engine) challenge(name, instruction string, questions []string, echos []bool) ([]string, error) {
	c, err := e.credentials()
	if err != nil {
		return nil, err
	}

	if c.signer != nil {
		return nil, errNoPassword
	}

	answers := make([]string, len(questions))
	for i := range answers {
		answers[i] = c.password
	}

	return answers, nil
}

// AuthPassword authenticates user with a password.
func (e *Engine) AuthPassword(user, password string) error {
	if user != e.cfg.User {
		return &nbsftp.EngineError{Code: nbsftp.CodeBadUse, Message: "user must be " + e.cfg.User}
	}

	_, err := do(e, callKey("auth-password", user, password), func() (struct{}, error) {
		return struct{}{}, e.authenticate(&credentials{password: password}, nbsftp.CodeAuthenticationFailed)
	})

	return err
}

// AuthPublicKey authenticates user with a PEM encoded private key.
// When publicKey is set, in authorized_keys format, it must belong to the private key.
func (e *Engine) AuthPublicKey(user string, publicKey, privateKey []byte, passphrase string) error {
	if user != e.cfg.User {
		return &nbsftp.EngineError{Code: nbsftp.CodeBadUse, Message: "user must be " + e.cfg.User}
	}

	_, err := do(e, callKey("auth-publickey", user, string(publicKey), string(privateKey), passphrase), func() (struct{}, error) {
		signer, err := parseSigner(publicKey, privateKey, passphrase)
		if err != nil {
			return struct{}{}, err
		}

		return struct{}{}, e.authenticate(&credentials{signer: signer}, nbsftp.CodePublicKeyUnverified)
	})

	return err
}

func parseSigner(publicKey, privateKey []byte, passphrase string) (ssh.Signer, error) {
	var signer ssh.Signer
	var err error

	if passphrase == "" {
		signer, err = ssh.ParsePrivateKey(privateKey)
	} else {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	}
	if err != nil {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeFile, Message: "unable to parse private key", Err: err}
	}

	if len(publicKey) == 0 {
		return signer, nil
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey(publicKey)
	if err != nil {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeFile, Message: "unable to parse public key", Err: err}
	}

	if string(pub.Marshal()) != string(signer.PublicKey().Marshal()) {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeFile, Message: "public key does not match private key"}
	}

	return signer, nil
}

// authenticate hands c to the authentication goroutine and waits for the outcome.
func (e *Engine) authenticate(c *credentials, code nbsftp.ErrorCode) error {
	e.credsOnce.Do(func() {
		e.creds = c
		close(e.credsSet)
	})

	select {
	case <-e.connDone:
	case <-e.closed:
		return errClosed
	}

	return e.connFailure(code)
}

// StartSFTP opens the sftp subsystem on the authenticated connection.
func (e *Engine) StartSFTP() (nbsftp.SFTP, error) {
	return do(e, callKey("sftp-start"), func() (nbsftp.SFTP, error) {
		e.mu.Lock()
		client := e.client
		e.mu.Unlock()

		if client == nil {
			return nil, &nbsftp.EngineError{Code: nbsftp.CodeBadUse, Message: "not authenticated"}
		}

		c, err := startSFTP(e, client)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.sftp = c
		e.mu.Unlock()

		return c, nil
	})
}

// Disconnect closes the SSH connection. x/crypto/ssh ends connections
// without a disconnect message, so reason is only logged.
func (e *Engine) Disconnect(reason string) error {
	_, err := do(e, callKey("disconnect"), func() (struct{}, error) {
		e.mu.Lock()
		client := e.client
		e.mu.Unlock()

		e.log.Debug().Str("reason", reason).Msg("disconnecting")

		if client != nil {
			client.Close()
		}

		return struct{}{}, nil
	})

	return err
}

// HostKey returns the verified server host key.
func (e *Engine) HostKey() (nbsftp.HostKey, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.hostKey, e.hostKeyOK
}

// Methods returns the algorithms both sides settled on.
func (e *Engine) Methods() (nbsftp.Methods, bool) {
	client, server, ok := e.pipe.kexinits()
	if !ok {
		return nbsftp.Methods{}, false
	}

	return negotiate(client, server), true
}

// Close stops every protocol goroutine and drops the library reference.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.pipe.Close()
		Library.Release()
	})

	return nil
}

func hostKeyOf(key ssh.PublicKey) nbsftp.HostKey {
	var typ nbsftp.HostKeyType

	switch key.Type() {
	case ssh.KeyAlgoRSA:
		typ = nbsftp.HostKeyRSA
	case ssh.KeyAlgoDSA:
		typ = nbsftp.HostKeyDSA
	case ssh.KeyAlgoECDSA256:
		typ = nbsftp.HostKeyECDSA256
	case ssh.KeyAlgoECDSA384:
		typ = nbsftp.HostKeyECDSA384
	case ssh.KeyAlgoECDSA521:
		typ = nbsftp.HostKeyECDSA521
	case ssh.KeyAlgoED25519:
		typ = nbsftp.HostKeyEd25519
	}

	return nbsftp.HostKey{
		Type: typ,
		Data: key.Marshal(),
	}
}
