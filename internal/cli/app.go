package cli

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pkg/nbsftp"
	"github.com/pkg/nbsftp/internal/config"
	"github.com/pkg/nbsftp/internal/logging"
	"github.com/pkg/nbsftp/netsock"
	"github.com/pkg/nbsftp/sshengine"
)

// pollPeriod is how often an interrupt or deadline is noticed while waiting.
const pollPeriod = 50 * time.Millisecond

// app carries what every command shares.
type app struct {
	configFile  string
	metricsFile string

	cfg *config.Config
	log zerolog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	l := config.NewLoader()
	l.SetConfigFile(a.configFile)

	if err := l.BindFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := l.Load()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	if used := l.ConfigFileUsed(); used != "" {
		a.log.Debug().Str("file", used).Msg("loaded config")
	}

	return nil
}

// timeout bounds one remote operation by the configured timeout and ctx.
func (a *app) timeout(ctx context.Context) nbsftp.Timeout {
	if a.cfg.Timeout <= 0 {
		return nbsftp.UntilDone(ctx).Every(pollPeriod)
	}

	deadline := time.Now().Add(a.cfg.Timeout)

	return nbsftp.Until(func() bool {
		return ctx.Err() == nil && time.Now().Before(deadline)
	}).Every(pollPeriod)
}

func (a *app) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if a.cfg.KnownHosts == "" {
		a.log.Warn().Msg("host key checking is disabled")
		return nil, nil
	}

	cb, err := knownhosts.New(a.cfg.KnownHosts)
	if err != nil {
		return nil, errors.Wrap(err, "known hosts")
	}

	return cb, nil
}

// withSession opens a logged-in session, runs fn and closes the session.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *nbsftp.Session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	hostKeys, err := a.hostKeyCallback()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()

	s := nbsftp.New(
		netsock.New(),
		sshengine.Factory(sshengine.Config{
			User:            a.cfg.User,
			Addr:            net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port)),
			HostKeyCallback: hostKeys,
			Logger:          a.log,
		}),
		nbsftp.WithLogger(a.log),
		nbsftp.WithMetrics(nbsftp.NewMetrics(reg)),
	)

	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("close session")
		}

		if a.metricsFile != "" {
			if werr := prometheus.WriteToTextfile(a.metricsFile, reg); werr != nil && err == nil {
				err = errors.Wrap(werr, "write metrics")
			}
		}
	}()

	if r := s.Connect(a.cfg.Host, uint16(a.cfg.Port), a.timeout(ctx)); !r.IsOk() {
		return errors.Wrapf(r.Err(), "connect %s:%d", a.cfg.Host, a.cfg.Port)
	}

	if r := a.login(ctx, s); !r.IsOk() {
		return errors.Wrapf(r.Err(), "login as %s", a.cfg.User)
	}

	return fn(ctx, s)
}

func (a *app) login(ctx context.Context, s *nbsftp.Session) nbsftp.Result {
	if a.cfg.Identity == "" {
		return s.LoginPassword(a.cfg.User, a.cfg.Password, a.timeout(ctx))
	}

	private, err := os.ReadFile(a.cfg.Identity)
	if err != nil {
		return nbsftp.NewResult(nbsftp.StatusSSHFile, err.Error())
	}

	// the public half is optional and only used as a cross-check.
	public, err := os.ReadFile(a.cfg.Identity + ".pub")
	if err != nil {
		public = nil
	}

	return s.LoginPublicKey(a.cfg.User, public, private, a.cfg.Passphrase, a.timeout(ctx))
}

// check turns an unsuccessful result into an error about p.
func check(r nbsftp.Result, op, p string) error {
	if r.IsOk() {
		return nil
	}

	return errors.Wrapf(r.Err(), "%s %s", op, p)
}
