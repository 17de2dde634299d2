package sshengine

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/pkg/nbsftp"
)

// DefaultSettle is how long an engine call waits for in-memory progress
// before handing control back to the session.
const DefaultSettle = 2 * time.Millisecond

// Config configures the engines made by Factory.
type Config struct {
	// User is the account to log in as. The SSH protocol binds it when the
	// key exchange starts, so logins must use the same name.
	User string

	// Addr is the host:port the session connects to, as seen by
	// HostKeyCallback. It defaults to the socket's remote address.
	Addr string

	// HostKeyCallback verifies the server host key during the handshake.
	// When nil every key is accepted, and callers inspect it through SessionInfo.
	HostKeyCallback ssh.HostKeyCallback

	// ClientVersion is the identification string sent to the server.
	ClientVersion string

	// KeyExchanges, Ciphers and MACs restrict the negotiable algorithms.
	// Empty lists keep the x/crypto defaults.
	KeyExchanges []string
	Ciphers      []string
	MACs         []string

	// Settle bounds how long a call keeps waiting for the engine after
	// moving bytes. Zero means DefaultSettle.
	Settle time.Duration

	// MaxPacket is the largest SFTP packet accepted from the server.
	// Zero means the filexfer default.
	MaxPacket uint32

	Logger zerolog.Logger
}

// Factory returns an EngineFactory creating engines configured by cfg.
func Factory(cfg Config) nbsftp.EngineFactory {
	return func(t *nbsftp.Transport) (nbsftp.Engine, error) {
		return New(t, cfg)
	}
}

func (c Config) settle() time.Duration {
	if c.Settle <= 0 {
		return DefaultSettle
	}

	return c.Settle
}
