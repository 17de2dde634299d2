package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables the loader reads.
const EnvPrefix = "NBSFTP"

// keys lists every configuration key.
var keys = []string{
	"host",
	"port",
	"user",
	"password",
	"identity",
	"passphrase",
	"known_hosts",
	"timeout",
	"logging.level",
	"logging.format",
}

// flagKeys maps command line flags to the keys they override.
var flagKeys = map[string]string{
	"host":        "host",
	"port":        "port",
	"user":        "user",
	"password":    "password",
	"identity":    "identity",
	"passphrase":  "passphrase",
	"known-hosts": "known_hosts",
	"timeout":     "timeout",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// BindFlags makes the flags of fs override every other source.
// Flags fs does not define are ignored.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}

		if err := l.v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}

	return nil
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, errors.Wrap(err, "failed to load config file")
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "nbsftp"))
	}

	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "nbsftp"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("user", cfg.User)
	v.SetDefault("password", cfg.Password)
	v.SetDefault("identity", cfg.Identity)
	v.SetDefault("passphrase", cfg.Passphrase)
	v.SetDefault("known_hosts", cfg.KnownHosts)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	// Unmarshal only sees env vars of explicitly bound keys.
	for _, key := range keys {
		v.BindEnv(key)
	}
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		path, err := homedir.Expand(l.configFile)
		if err != nil {
			return err
		}
		l.v.SetConfigFile(path)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && l.configFile == "" {
			return nil
		}
		return err
	}

	return nil
}

// expandPaths expands ~ in the path-valued settings.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Identity, &cfg.KnownHosts} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expand %s", *p)
		}
		*p = expanded
	}

	return nil
}
