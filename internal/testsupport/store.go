package testsupport

import (
	"context"
	"testing"

	"fluxscp/internal/config"
	"fluxscp/internal/session"
)

// MustOpenSessions opens a session.Store for tests and registers cleanup.
func MustOpenSessions(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a running session using the settings derived from cfg.
func NewSession(t testing.TB, store *session.Store, cfg *config.Config, label string) *session.Session {
	t.Helper()

	settings, err := SessionSettings(cfg)
	if err != nil {
		t.Fatalf("session settings: %v", err)
	}
	sess, err := store.Create(context.Background(), label, settings)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return sess
}

// SessionSettings derives session settings from cfg.
func SessionSettings(cfg *config.Config) (session.Settings, error) {
	return session.SettingsFromConfig(cfg)
}
