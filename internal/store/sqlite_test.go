package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "leadintel.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeviceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.GetDevice(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil device, got %v (err %v)", got, err)
	}

	now := time.Now().Truncate(time.Second)
	if err := s.UpsertDevice(ctx, &domain.Device{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	later := now.Add(time.Hour)
	if err := s.TouchDevice(ctx, "anon_1", later); err != nil {
		t.Fatalf("TouchDevice failed: %v", err)
	}

	got, err = s.GetDevice(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got == nil || got.Username != "anon-1" {
		t.Fatalf("unexpected device %+v", got)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("expected last seen %v, got %v", later, got.LastSeenAt)
	}
}

func TestCredentialLoadSave(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	token, err := s.Load(ctx, "anon_1", domain.ProviderChat)
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q (err %v)", token, err)
	}

	if err := s.Save(ctx, "anon_1", domain.ProviderChat, "tok1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "anon_1", domain.ProviderChat, "tok2"); err != nil {
		t.Fatalf("Save overwrite failed: %v", err)
	}

	token, err = s.Load(ctx, "anon_1", domain.ProviderChat)
	if err != nil || token != "tok2" {
		t.Fatalf("expected tok2, got %q (err %v)", token, err)
	}

	token, _ = s.Load(ctx, "anon_1", domain.ProviderInference)
	if token != "" {
		t.Errorf("expected inference token to be unset, got %q", token)
	}
	token, _ = s.Load(ctx, "anon_2", domain.ProviderChat)
	if token != "" {
		t.Errorf("expected other device to be unset, got %q", token)
	}
}

func TestCredentialStoreOverSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leadintel.db")

	first, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	if err := credential.NewStore("anon_1", first, nil).Set(ctx, domain.ProviderInference, "hf_abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = second.Close() }()

	if got := credential.NewStore("anon_1", second, nil).Get(ctx, domain.ProviderInference); got != "hf_abc" {
		t.Fatalf("expected persisted token, got %q", got)
	}
}
