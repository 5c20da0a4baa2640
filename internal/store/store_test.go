package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

func TestKey(t *testing.T) {
	if got := Key(FieldCurrentBalance, "u1"); got != "currentBalance_u1" {
		t.Errorf("Key = %q, want currentBalance_u1", got)
	}
	if got := Key(FieldCurrentBalance, ""); got != "currentBalance" {
		t.Errorf("Key with empty user = %q, want currentBalance", got)
	}
}

func TestBalanceKeys(t *testing.T) {
	keys := BalanceKeys(FieldDailyGains, "u1")
	if len(keys) != 2 || keys[0] != "dailyGains_u1" || keys[1] != "legacy_dailyGains_u1" {
		t.Errorf("BalanceKeys = %v", keys)
	}
	// Both copies stay scoped: the stores are shared across users.
	for _, k := range keys {
		if !MatchesField(k, FieldDailyGains) {
			t.Errorf("MatchesField(%q) = false", k)
		}
		if k == FieldDailyGains {
			t.Errorf("unscoped copy %q leaked into BalanceKeys", k)
		}
	}
}

func TestMatchesField(t *testing.T) {
	tests := []struct {
		key   string
		field string
		want  bool
	}{
		{"dailyGains_u1", FieldDailyGains, true},
		{"legacy_dailyGains_u1", FieldDailyGains, true},
		{"dailyGains", FieldDailyGains, true},
		{"limitNotifiedDate_u1", KeyLimitNotified, true},
		{"currentBalance_u1", FieldDailyGains, false},
		{"dailyGainsX_u1", FieldDailyGains, false},
	}
	for _, tt := range tests {
		if got := MatchesField(tt.key, tt.field); got != tt.want {
			t.Errorf("MatchesField(%q, %q) = %v, want %v", tt.key, tt.field, got, tt.want)
		}
	}
}

func TestMaxAcross(t *testing.T) {
	a := NewMemStore()
	b := NewMemStore()

	a.SetFloat("k1", 2.5)
	b.SetFloat("k1", 1.0)
	b.SetFloat("k2", 7.0)
	a.Set("k3", "garbage")

	stores := []models.KeyValueStore{a, b, nil}
	if got := MaxAcross(stores, "k1", "k2", "k3", "absent"); got != 7.0 {
		t.Errorf("MaxAcross = %v, want 7.0", got)
	}
	if got := MaxAcross(stores, "absent"); got != 0 {
		t.Errorf("MaxAcross over absent keys = %v, want 0", got)
	}
}

func TestWriteAll(t *testing.T) {
	a := NewMemStore()
	b := NewMemStore()

	WriteAll([]models.KeyValueStore{a, b}, 3.25, "x", "y")
	for _, s := range []models.KeyValueStore{a, b} {
		for _, k := range []string{"x", "y"} {
			if got := s.GetFloat(k); got != 3.25 {
				t.Errorf("%s = %v, want 3.25", k, got)
			}
		}
	}
}

func TestFileStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenFileStore(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	s.Set("name", "value")
	s.SetFloat("balance", 12.34)
	s.Flush()

	reloaded, err := OpenFileStore(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reloaded.Get("name"); !ok || v != "value" {
		t.Errorf("Get(name) = %q, %v", v, ok)
	}
	if got := reloaded.GetFloat("balance"); got != 12.34 {
		t.Errorf("GetFloat(balance) = %v, want 12.34", got)
	}
}

func TestFileStoreDelete(t *testing.T) {
	s, err := OpenFileStore(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	s.Set("k", "v")
	s.Delete("k")
	if _, ok := s.Get("k"); ok {
		t.Error("deleted key still present")
	}
}

func TestFileStoreCorruptedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := OpenFileStore(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("OpenFileStore on corrupted file: %v", err)
	}
	if keys := s.Keys(); len(keys) != 0 {
		t.Errorf("corrupted store has keys %v, want none", keys)
	}
}

func TestFileStoreDebouncedFlush(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	s.Set("k", "v")

	// The debounce timer fires shortly after the write.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, "state.json")); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("debounced flush never reached disk")
}
