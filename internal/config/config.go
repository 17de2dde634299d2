// Package config loads the settings of the nbsftp command.
package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config is the complete command configuration.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`

	// Password is used when no Identity is given.
	Password string `mapstructure:"password"`

	// Identity is the path of a PEM encoded private key.
	Identity   string `mapstructure:"identity"`
	Passphrase string `mapstructure:"passphrase"`

	// KnownHosts is the known_hosts file the server key is checked against.
	// Empty disables host key checking.
	KnownHosts string `mapstructure:"known_hosts"`

	// Timeout bounds every remote operation. Zero waits until interrupted.
	Timeout time.Duration `mapstructure:"timeout"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig configures the command logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:       22,
		KnownHosts: "~/.ssh/known_hosts",
		Timeout:    30 * time.Second,
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Validate checks that cfg can be used to open a session.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}

	if c.User == "" {
		return errors.New("user is required")
	}

	if c.Password == "" && c.Identity == "" {
		return errors.New("either password or identity is required")
	}

	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}
