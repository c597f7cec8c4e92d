package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := &Config{
		DefaultSession: "work",
		UserID:         "u-123",
		Server: Server{
			SocketURL: "wss://chat.example.com/ws",
			APIURL:    "https://api.example.com/v1",
		},
		Transport: Transport{
			PingIntervalSecs:     15,
			ReconnectBaseMs:      500,
			MaxReconnectAttempts: 3,
		},
		REST: REST{TimeoutSecs: 10, MediaTimeoutSecs: 30},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" || loaded.UserID != "u-123" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Server.SocketURL != cfg.Server.SocketURL {
		t.Errorf("socket url = %q", loaded.Server.SocketURL)
	}
	if loaded.Transport.MaxReconnectAttempts != 3 || loaded.REST.MediaTimeoutSecs != 30 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSaveFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 0600", perm)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed toml")
	}
}
