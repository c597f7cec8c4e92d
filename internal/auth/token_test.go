package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("abc").AccessToken(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("AccessToken() = (%q, %v)", tok, err)
	}

	if _, err := StaticTokenSource("").AccessToken(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("empty static source error = %v, want ErrNoCredential", err)
	}
}

func TestFileTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  secret-token\n"), 0600); err != nil {
		t.Fatal(err)
	}

	src := &FileTokenSource{Path: path}
	tok, err := src.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "secret-token" {
		t.Errorf("token = %q, want trimmed value", tok)
	}
}

func TestFileTokenSourceRereadsEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first"), 0600); err != nil {
		t.Fatal(err)
	}
	src := &FileTokenSource{Path: path}

	if tok, _ := src.AccessToken(context.Background()); tok != "first" {
		t.Fatalf("token = %q", tok)
	}
	if err := os.WriteFile(path, []byte("rotated"), 0600); err != nil {
		t.Fatal(err)
	}
	if tok, _ := src.AccessToken(context.Background()); tok != "rotated" {
		t.Errorf("token = %q, rotation not picked up", tok)
	}
}

func TestFileTokenSourceMissingOrEmpty(t *testing.T) {
	src := &FileTokenSource{Path: filepath.Join(t.TempDir(), "absent")}
	if _, err := src.AccessToken(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("missing file error = %v, want ErrNoCredential", err)
	}

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("   \n"), 0600); err != nil {
		t.Fatal(err)
	}
	src = &FileTokenSource{Path: path}
	if _, err := src.AccessToken(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("empty file error = %v, want ErrNoCredential", err)
	}
}
