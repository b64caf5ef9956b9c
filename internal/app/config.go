package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"pairlink/internal/crypto"
	"pairlink/internal/observability"
	"pairlink/internal/services/reconnect"
)

// EnvPrefix prefixes environment overrides, e.g. PAIRLINK_RELAY_URL.
const EnvPrefix = "PAIRLINK"

// ConfigFile is the file name looked up in the home directory.
const ConfigFile = "config.toml"

// Config is the root configuration shared by both binaries.
type Config struct {
	// Home is the state directory; it is not read from the file.
	Home string `mapstructure:"-" toml:"-"`

	Relay     RelayConfig             `mapstructure:"relay" toml:"relay"`
	Session   SessionConfig           `mapstructure:"session" toml:"session"`
	Reconnect ReconnectConfig         `mapstructure:"reconnect" toml:"reconnect"`
	Store     StoreConfig             `mapstructure:"store" toml:"store"`
	Log       observability.LogConfig `mapstructure:"log" toml:"log"`
}

// RelayConfig holds both the client's relay URL and the relay server's
// listener settings.
type RelayConfig struct {
	URL            string `mapstructure:"url" toml:"url"`
	Listen         string `mapstructure:"listen" toml:"listen"`
	PingIntervalMS int    `mapstructure:"ping_interval_ms" toml:"ping_interval_ms"`
	ReadLimit      int64  `mapstructure:"read_limit" toml:"read_limit"`
}

// SessionConfig tunes the channel session.
type SessionConfig struct {
	// Codec names the application message codec: json or cbor.
	Codec              string `mapstructure:"codec" toml:"codec"`
	HandshakeTimeoutMS int    `mapstructure:"handshake_timeout_ms" toml:"handshake_timeout_ms"`
	DirectMedia        bool   `mapstructure:"direct_media" toml:"direct_media"`
}

// ReconnectConfig is the rejoin backoff policy.
type ReconnectConfig struct {
	InitialDelayMS int     `mapstructure:"initial_delay_ms" toml:"initial_delay_ms"`
	Multiplier     float64 `mapstructure:"multiplier" toml:"multiplier"`
	MaxDelayMS     int     `mapstructure:"max_delay_ms" toml:"max_delay_ms"`
	Jitter         bool    `mapstructure:"jitter" toml:"jitter"`
	MaxAttempts    int     `mapstructure:"max_attempts" toml:"max_attempts"`
}

// StoreConfig selects the passphrase KDF for channel records.
type StoreConfig struct {
	KDF string `mapstructure:"kdf" toml:"kdf"`
}

// Default returns a Config populated with defaults for home.
func Default(home string) Config {
	return Config{
		Home: home,
		Relay: RelayConfig{
			URL:            "ws://127.0.0.1:8080/ws",
			Listen:         ":8080",
			PingIntervalMS: 30000,
			ReadLimit:      1 << 20,
		},
		Session: SessionConfig{
			Codec:              "json",
			HandshakeTimeoutMS: 30000,
		},
		Reconnect: ReconnectConfig{
			InitialDelayMS: 250,
			Multiplier:     2.0,
			MaxDelayMS:     5000,
			Jitter:         true,
			MaxAttempts:    8,
		},
		Store: StoreConfig{KDF: string(crypto.KDFArgon2id)},
		Log:   observability.DefaultLogConfig(),
	}
}

// DefaultHome returns $PAIRLINK_HOME, or ~/.pairlink.
func DefaultHome() string {
	if h := os.Getenv(EnvPrefix + "_HOME"); h != "" {
		return h
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".pairlink")
	}
	return ".pairlink"
}

// Load reads configuration from path if non-empty, otherwise from
// home/config.toml when present. Environment variables use the prefix
// PAIRLINK with "." replaced by "_", e.g. PAIRLINK_LOG_LEVEL=debug.
func Load(path, home string) (Config, error) {
	cfg := Default(home)

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFile, filepath.Ext(ConfigFile)))
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Home = home
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper so env-only configs work.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("relay.url", cfg.Relay.URL)
	v.SetDefault("relay.listen", cfg.Relay.Listen)
	v.SetDefault("relay.ping_interval_ms", cfg.Relay.PingIntervalMS)
	v.SetDefault("relay.read_limit", cfg.Relay.ReadLimit)
	v.SetDefault("session.codec", cfg.Session.Codec)
	v.SetDefault("session.handshake_timeout_ms", cfg.Session.HandshakeTimeoutMS)
	v.SetDefault("session.direct_media", cfg.Session.DirectMedia)
	v.SetDefault("reconnect.initial_delay_ms", cfg.Reconnect.InitialDelayMS)
	v.SetDefault("reconnect.multiplier", cfg.Reconnect.Multiplier)
	v.SetDefault("reconnect.max_delay_ms", cfg.Reconnect.MaxDelayMS)
	v.SetDefault("reconnect.jitter", cfg.Reconnect.Jitter)
	v.SetDefault("reconnect.max_attempts", cfg.Reconnect.MaxAttempts)
	v.SetDefault("store.kdf", cfg.Store.KDF)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

func (c *Config) validate() error {
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if strings.TrimSpace(c.Relay.URL) == "" {
		return errors.New("relay.url is required")
	}
	c.Session.Codec = strings.ToLower(strings.TrimSpace(c.Session.Codec))
	switch c.Session.Codec {
	case "json", "cbor":
	default:
		return fmt.Errorf("session.codec: unknown codec %q", c.Session.Codec)
	}
	switch crypto.KDF(c.Store.KDF) {
	case crypto.KDFArgon2id, crypto.KDFScrypt:
	default:
		return fmt.Errorf("store.kdf: %w: %q", crypto.ErrUnknownKDF, c.Store.KDF)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must not be negative")
	}
	return nil
}

// HandshakeTimeout returns the session handshake bound.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Session.HandshakeTimeoutMS) * time.Millisecond
}

// Backoff converts the reconnect section into a reconnect.BackoffConfig.
func (c Config) Backoff() reconnect.BackoffConfig {
	return reconnect.BackoffConfig{
		InitialDelay: time.Duration(c.Reconnect.InitialDelayMS) * time.Millisecond,
		Multiplier:   c.Reconnect.Multiplier,
		MaxDelay:     time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond,
		Jitter:       c.Reconnect.Jitter,
		MaxAttempts:  c.Reconnect.MaxAttempts,
	}
}

// WriteConfig writes cfg as TOML to path. An existing file is kept unless
// overwrite is set.
func WriteConfig(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
