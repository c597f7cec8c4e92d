package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.chatkit/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	UserID         string `toml:"user_id"` // local user, set by the login flow

	Server    Server    `toml:"server"`
	Transport Transport `toml:"transport"`
	REST      REST      `toml:"rest"`
}

// Server holds the chat backend endpoints.
type Server struct {
	SocketURL string `toml:"socket_url"` // e.g. wss://chat.example.com/ws
	APIURL    string `toml:"api_url"`    // e.g. https://api.example.com/v1
}

// Transport tunes the socket connection lifecycle. Zero values fall back to
// the built-in defaults.
type Transport struct {
	PingIntervalSecs     int `toml:"ping_interval_secs"`
	ReconnectBaseMs      int `toml:"reconnect_base_ms"`
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
}

// REST tunes HTTP call deadlines.
type REST struct {
	TimeoutSecs      int `toml:"timeout_secs"`
	MediaTimeoutSecs int `toml:"media_timeout_secs"`
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
