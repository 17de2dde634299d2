package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("NBSFTP_HOST", "example.com")
	t.Setenv("NBSFTP_USER", "alice")
	t.Setenv("NBSFTP_PASSWORD", "secret")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	knownHosts, err := homedir.Expand("~/.ssh/known_hosts")
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, knownHosts, cfg.KnownHosts)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
host: files.example.com
port: 2022
user: bob
identity: /keys/id_ed25519
known_hosts: ""
timeout: 5s
logging:
  level: debug
  format: json
`)

	l := NewLoader()
	l.SetConfigFile(path)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, path, l.ConfigFileUsed())
	assert.Equal(t, "files.example.com", cfg.Host)
	assert.Equal(t, 2022, cfg.Port)
	assert.Equal(t, "/keys/id_ed25519", cfg.Identity)
	assert.Equal(t, "", cfg.KnownHosts)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
host: files.example.com
port: 2022
user: bob
password: from-file
logging:
  level: debug
`)

	t.Setenv("NBSFTP_PORT", "2222")
	t.Setenv("NBSFTP_LOGGING_LEVEL", "error")
	t.Setenv("NBSFTP_USER", "carol")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 0, "")
	fs.String("user", "", "")
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--port", "2200"}))

	l := NewLoader()
	l.SetConfigFile(path)
	require.NoError(t, l.BindFlags(fs))

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 2200, cfg.Port)
	assert.Equal(t, "carol", cfg.User)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "from-file", cfg.Password)
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)

	l := NewLoader()
	l.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := l.Load()
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	isolate(t)
	t.Setenv("NBSFTP_HOST", "example.com")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "user is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Host = "example.com"
		cfg.User = "alice"
		cfg.Password = "secret"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no host", func(c *Config) { c.Host = "" }, "host is required"},
		{"port zero", func(c *Config) { c.Port = 0 }, "out of range"},
		{"port too big", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"no user", func(c *Config) { c.User = "" }, "user is required"},
		{"no credentials", func(c *Config) { c.Password = "" }, "password or identity"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := valid()
	cfg.Password = ""
	cfg.Identity = "/key"
	assert.NoError(t, cfg.Validate())
}
