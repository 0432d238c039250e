package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()

	if _, _, err := s.Credentials(ctx, "srt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Credentials before set = %v, expected ErrNotFound", err)
	}

	if err := s.SetCredentials(ctx, "srt", "user@example.com", "secret"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	id, password, err := s.Credentials(ctx, "srt")
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if id != "user@example.com" || password != "secret" {
		t.Errorf("Credentials = (%q, %q), expected stored values", id, password)
	}

	// Replacement, not duplication.
	if err := s.SetCredentials(ctx, "srt", "other@example.com", "secret2"); err != nil {
		t.Fatalf("SetCredentials replace: %v", err)
	}
	id, _, err = s.Credentials(ctx, "srt")
	if err != nil {
		t.Fatalf("Credentials after replace: %v", err)
	}
	if id != "other@example.com" {
		t.Errorf("id = %q, expected the replacement", id)
	}
}

func TestCredentialsPerBackend(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()

	if err := s.SetCredentials(ctx, "srt", "a", "pa"); err != nil {
		t.Fatalf("SetCredentials srt: %v", err)
	}
	if err := s.SetCredentials(ctx, "korail", "b", "pb"); err != nil {
		t.Fatalf("SetCredentials korail: %v", err)
	}

	id, _, err := s.Credentials(ctx, "korail")
	if err != nil {
		t.Fatalf("Credentials korail: %v", err)
	}
	if id != "b" {
		t.Errorf("korail id = %q, expected b", id)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()

	if _, err := s.Preference(ctx, "departure"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Preference before set = %v, expected ErrNotFound", err)
	}
	if err := s.SetPreference(ctx, "departure", "수서"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	value, err := s.Preference(ctx, "departure")
	if err != nil {
		t.Fatalf("Preference: %v", err)
	}
	if value != "수서" {
		t.Errorf("Preference = %q, expected 수서", value)
	}
}

func TestDeviceKeyStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s := openTestStore(t, path)
	ctx := context.Background()

	first, err := s.DeviceKey(ctx)
	if err != nil {
		t.Fatalf("DeviceKey: %v", err)
	}
	if first == "" {
		t.Fatal("DeviceKey minted an empty key")
	}
	second, err := s.DeviceKey(ctx)
	if err != nil {
		t.Fatalf("DeviceKey again: %v", err)
	}
	if second != first {
		t.Errorf("DeviceKey changed within one session: %q vs %q", first, second)
	}

	// Survives reopening the store.
	s.Close()
	reopened := openTestStore(t, path)
	third, err := reopened.DeviceKey(ctx)
	if err != nil {
		t.Fatalf("DeviceKey after reopen: %v", err)
	}
	if third != first {
		t.Errorf("DeviceKey changed across sessions: %q vs %q", first, third)
	}
}
