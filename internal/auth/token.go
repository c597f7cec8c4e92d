package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredential indicates no valid bearer credential is available.
// The transport treats this as fatal for the session: no dial is attempted
// and no reconnect is scheduled.
var ErrNoCredential = errors.New("no credential available")

// TokenSource supplies the bearer credential for the chat endpoint.
// Token issuance itself is an external concern; implementations only fetch
// or read an already-issued credential.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token, primarily for tests and one-shot
// CLI invocations.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// FileTokenSource reads the credential from a file on every call, so an
// external refresher can rotate it without restarting the daemon.
type FileTokenSource struct {
	Path string
}

func (f *FileTokenSource) AccessToken(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}
