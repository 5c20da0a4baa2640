package reconcile

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lucrumlabs/lucrum/internal/balance"
	"github.com/lucrumlabs/lucrum/internal/events"
	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

const testUser = "123e4567-e89b-12d3-a456-426614174000"

func TestMergeBalance(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{1.5}, 1.5},
		{"takes max", []float64{1.5, 3.2, 2.1}, 3.2},
		{"negatives sanitized", []float64{-4, 2, -10}, 2},
		{"all garbage", []float64{-1, -2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeBalance(tt.values...)
			if got != tt.want {
				t.Errorf("MergeBalance(%v) = %v, want %v", tt.values, got, tt.want)
			}
			// Idempotent: merging the winner back in changes nothing.
			if again := MergeBalance(append(tt.values, got)...); again != got {
				t.Errorf("second merge = %v, want %v", again, got)
			}
		})
	}
}

// stubRepo serves a canned remote row and records writes.
type stubRepo struct {
	mu      sync.Mutex
	balance float64
	missing bool
	saved   []float64
	gainSum float64
}

func (s *stubRepo) GetUserBalance(userID string) (*models.UserBalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing {
		return nil, nil
	}
	return &models.UserBalanceRecord{UserID: userID, Balance: s.balance}, nil
}

func (s *stubRepo) SaveUserBalanceIfHigher(userID string, balance float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, balance)
	if balance > s.balance {
		s.balance = balance
		return true, nil
	}
	return false, nil
}

func (s *stubRepo) SumGainsBetween(userID string, from, to time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gainSum, nil
}

func (s *stubRepo) EnsureUserBalance(string, models.Subscription) error        { return nil }
func (s *stubRepo) ResetUserBalance(string) error                             { return nil }
func (s *stubRepo) SetSubscription(string, models.Subscription) error         { return nil }
func (s *stubRepo) IncrementSessionCount(string, int) (int, bool, error)      { return 0, false, nil }
func (s *stubRepo) ResetDailySessionCounts() error                            { return nil }
func (s *stubRepo) AppendTransaction(*models.Transaction) error               { return nil }
func (s *stubRepo) GetNotificationProvider(string) (*models.NotificationProvider, error) {
	return nil, nil
}
func (s *stubRepo) AddTelegramProviderChatID(string, string) error { return nil }
func (s *stubRepo) Close() error                                   { return nil }
func (s *stubRepo) TransactionsBetween(string, time.Time, time.Time) ([]*models.Transaction, error) {
	return nil, nil
}

func newTestReconciler(repo models.Repository) (*Reconciler, *balance.Manager, *store.MemStore) {
	durable := store.NewMemStore()
	volatile := store.NewMemStore()
	bus := events.NewBus(logger.NewNop())
	manager := balance.NewManager(durable, volatile, bus, logger.NewNop())
	r := NewReconciler(repo, durable, volatile, manager, bus, time.UTC, time.Minute, logger.NewNop())
	return r, manager, durable
}

func TestSyncUserRemoteWins(t *testing.T) {
	repo := &stubRepo{balance: 7.50, gainSum: 0}
	r, manager, _ := newTestReconciler(repo)
	manager.SetUserID(testUser)
	manager.UpdateBalance(2.00)

	r.SyncUser(testUser)

	if got := manager.CurrentBalance(); got != 7.50 {
		t.Errorf("balance after sync = %v, want remote 7.50", got)
	}
	// The remote already held the winner, nothing to write back.
	if len(repo.saved) != 0 {
		t.Errorf("unexpected remote writes: %v", repo.saved)
	}
}

func TestSyncUserLocalWins(t *testing.T) {
	repo := &stubRepo{balance: 1.00, gainSum: 4.00}
	r, manager, _ := newTestReconciler(repo)
	manager.SetUserID(testUser)
	manager.UpdateBalance(4.00)

	r.SyncUser(testUser)

	if got := manager.CurrentBalance(); got != 4.00 {
		t.Errorf("balance after sync = %v, want 4.00", got)
	}
	repo.mu.Lock()
	saved := append([]float64(nil), repo.saved...)
	repo.mu.Unlock()
	if len(saved) != 1 || saved[0] != 4.00 {
		t.Errorf("remote writes = %v, want [4.00]", saved)
	}
}

func TestSyncUserMissingRemoteRow(t *testing.T) {
	repo := &stubRepo{missing: true}
	r, manager, durable := newTestReconciler(repo)
	manager.SetUserID(testUser)
	durable.SetFloat(store.Key(store.FieldCurrentBalance, testUser), 3.30)

	r.SyncUser(testUser)

	if got := manager.CurrentBalance(); got != 3.30 {
		t.Errorf("balance after sync = %v, want durable 3.30", got)
	}
}

func TestSyncUserReconcilesDailyGains(t *testing.T) {
	repo := &stubRepo{balance: 0, gainSum: 1.25}
	r, manager, _ := newTestReconciler(repo)
	manager.SetUserID(testUser)
	manager.SetDailyGains(0.10)

	r.SyncUser(testUser)

	if got := manager.DailyGains(); got != 1.25 {
		t.Errorf("daily gains after sync = %v, want log sum 1.25", got)
	}
}

// failingRepo refuses every remote read.
type failingRepo struct {
	stubRepo
	calls int
}

func (f *failingRepo) GetUserBalance(string) (*models.UserBalanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("remote unavailable")
}

func TestSyncUserDegradesToDurableOnRemoteFailure(t *testing.T) {
	repo := &failingRepo{}
	r, manager, durable := newTestReconciler(repo)
	manager.SetUserID(testUser)
	durable.SetFloat(store.Key(store.FieldCurrentBalance, testUser), 2.20)

	start := time.Now()
	r.SyncUser(testUser)
	elapsed := time.Since(start)

	if got := manager.CurrentBalance(); got != 2.20 {
		t.Errorf("balance after failed sync = %v, want durable 2.20", got)
	}

	repo.mu.Lock()
	calls := repo.calls
	repo.mu.Unlock()
	if calls != remoteAttempts {
		t.Errorf("remote attempts = %d, want %d", calls, remoteAttempts)
	}

	// Two backoff waits separate the three attempts; there is no wait after
	// the last one, so the whole retry budget stays at 3x the base backoff.
	if budget := 3 * remoteBackoff; elapsed >= 2*budget {
		t.Errorf("failed sync took %v, want under %v", elapsed, 2*budget)
	}
}

func TestSyncUserIsIdempotent(t *testing.T) {
	repo := &stubRepo{balance: 5.00}
	r, manager, _ := newTestReconciler(repo)
	manager.SetUserID(testUser)

	r.SyncUser(testUser)
	first := manager.CurrentBalance()
	r.SyncUser(testUser)
	second := manager.CurrentBalance()

	if first != 5.00 || second != 5.00 {
		t.Errorf("balances = %v, %v, want 5.00 both times", first, second)
	}
}
