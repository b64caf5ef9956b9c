package app_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pairlink/internal/app"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	cfg, err := app.Load("", home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Home != home || cfg.Relay.URL != "ws://127.0.0.1:8080/ws" || cfg.Session.Codec != "json" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.HandshakeTimeout() != 30*time.Second {
		t.Fatalf("handshake timeout = %v", cfg.HandshakeTimeout())
	}
	b := cfg.Backoff()
	if b.InitialDelay != 250*time.Millisecond || b.MaxDelay != 5*time.Second || b.MaxAttempts != 8 || !b.Jitter {
		t.Fatalf("backoff = %+v", b)
	}
}

func TestWriteConfig_RoundTripAndOverrides(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, app.ConfigFile)

	cfg := app.Default(home)
	cfg.Relay.URL = "wss://relay.example/ws"
	cfg.Session.Codec = "cbor"
	cfg.Reconnect.MaxAttempts = 3
	if err := app.WriteConfig(path, cfg, false); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if err := app.WriteConfig(path, cfg, false); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second write: want ErrExist, got %v", err)
	}

	got, err := app.Load("", home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Relay.URL != cfg.Relay.URL || got.Session.Codec != "cbor" || got.Reconnect.MaxAttempts != 3 {
		t.Fatalf("file values not applied: %+v", got)
	}

	t.Setenv("PAIRLINK_RELAY_URL", "ws://env.example/ws")
	t.Setenv("PAIRLINK_LOG_LEVEL", "debug")
	got, err = app.Load(path, home)
	if err != nil {
		t.Fatalf("Load with env: %v", err)
	}
	if got.Relay.URL != "ws://env.example/ws" || got.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: relay=%q level=%q", got.Relay.URL, got.Log.Level)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"level": "[log]\nlevel = \"loud\"\n",
		"codec": "[session]\ncodec = \"xml\"\n",
		"kdf":   "[store]\nkdf = \"md5\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := app.Load(path, t.TempDir()); err == nil {
				t.Fatal("expected invalid config to fail")
			}
		})
	}
}
