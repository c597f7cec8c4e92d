package session

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work-account", "coach_2", "a", strings.Repeat("x", 64)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "Main", "has space", "slash/name", "../escape", strings.Repeat("x", 65), "émoji"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestSessionPaths(t *testing.T) {
	dir := Dir("work")
	if !strings.HasSuffix(dir, filepath.Join(".chatkit", "sessions", "work")) {
		t.Errorf("Dir = %q", dir)
	}
	if got := LockPath("work"); got != filepath.Join(dir, "LOCK") {
		t.Errorf("LockPath = %q", got)
	}
	if got := CachePath("work"); got != filepath.Join(dir, "chatkit.db") {
		t.Errorf("CachePath = %q", got)
	}
	if got := TokenPath("work"); got != filepath.Join(dir, "token") {
		t.Errorf("TokenPath = %q", got)
	}
	if got := LogPath("work"); got != filepath.Join(dir, "logs", "chatkitd.log") {
		t.Errorf("LogPath = %q", got)
	}
}

func TestResolveFlagWins(t *testing.T) {
	if got := Resolve("override"); got != "override" {
		t.Errorf("Resolve = %q, want override", got)
	}
}

func TestResolveDefaultsToMain(t *testing.T) {
	// With no flag and no readable config the fallback applies. The config
	// path lives under the real home dir; only assert the fallback when no
	// config exists there.
	got := Resolve("")
	if got == "" {
		t.Error("Resolve returned empty session name")
	}
}
