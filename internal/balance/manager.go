// Package balance owns the in-memory balance state of the active user:
// current balance, highest balance ever observed and today's gains. The
// manager is an injectable service constructed once per process and passed by
// reference; the durable and volatile stores are best-effort mirrors that it
// keeps in sync, and the single rule that keeps everything safe is that no
// accepted write may lower a figure below what any copy already holds.
package balance

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
	"github.com/lucrumlabs/lucrum/pkg/validation"
)

// Epsilon is the divergence above which the transaction-log sum overrides the
// cached daily gains figure.
const Epsilon = 0.01

type Manager struct {
	logger   *logger.Logger
	bus      models.EventBus
	durable  models.KeyValueStore
	volatile models.KeyValueStore
	now      func() time.Time

	mu          sync.RWMutex
	userID      string
	current     float64
	highest     float64
	dailyGains  float64
	watchers    map[int]func(float64)
	nextWatcher int
}

func NewManager(durable, volatile models.KeyValueStore, bus models.EventBus, log *logger.Logger) *Manager {
	return &Manager{
		logger:   log,
		bus:      bus,
		durable:  durable,
		volatile: volatile,
		now:      time.Now,
		watchers: make(map[int]func(float64)),
	}
}

// SetNow overrides the clock. Used by tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// SetUserID binds the manager to a user and hydrates in-memory state from the
// stores, taking the max across the user's primary and legacy duplicate keys.
func (m *Manager) SetUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.userID = userID
	stores := []models.KeyValueStore{m.durable, m.volatile}
	m.current = store.MaxAcross(stores, store.BalanceKeys(store.FieldCurrentBalance, userID)...)
	m.highest = store.MaxAcross(stores, store.BalanceKeys(store.FieldHighestBalance, userID)...)
	if m.current > m.highest {
		m.highest = m.current
	}
	m.dailyGains = store.MaxAcross(stores, store.BalanceKeys(store.FieldDailyGains, userID)...)
}

// UserID returns the bound user, empty when the manager is inert.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// CurrentBalance returns the in-memory balance, 0 when uninitialized.
func (m *Manager) CurrentBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validation.SanitizeAmount(m.current)
}

// HighestBalance returns the highest balance ever observed for the user.
func (m *Manager) HighestBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validation.SanitizeAmount(m.highest)
}

// DailyGains returns today's gains figure.
func (m *Manager) DailyGains() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validation.SanitizeAmount(m.dailyGains)
}

// UpdateBalance adds an earning to the balance and today's gains, raises the
// highest-ever mark when exceeded, persists every redundant key and notifies
// watchers. Negative or non-finite gains are coerced to 0 and ignored.
func (m *Manager) UpdateBalance(gain float64) {
	gain = validation.SanitizeAmount(gain)
	if gain == 0 {
		return
	}

	m.mu.Lock()
	m.current = validation.RoundCents(m.current + gain)
	m.dailyGains = validation.RoundCents(m.dailyGains + gain)
	if m.current > m.highest {
		m.highest = m.current
	}
	balance := m.current
	gains := m.dailyGains
	userID := m.userID
	m.mu.Unlock()

	m.persist(userID, balance, gains)
	m.notify(balance)

	m.bus.Publish(models.TopicBalanceUpdate, models.Event{
		UserID:    userID,
		Amount:    balance,
		Timestamp: m.now().Unix(),
	})
	m.bus.Publish(models.TopicDailyGainsUpdated, models.Event{
		UserID:     userID,
		DailyGains: gains,
		Timestamp:  m.now().Unix(),
	})
}

// ForceBalanceSync applies a balance reported by an external source (remote
// row, another process). The value is accepted only when it beats the maximum
// across in-memory state and every stored copy; anything lower is a no-op.
// This is the anti-regression rule of the whole system.
func (m *Manager) ForceBalanceSync(value float64, userID string) bool {
	value = validation.SanitizeAmount(value)

	m.mu.Lock()
	if userID == "" {
		userID = m.userID
	}
	stores := []models.KeyValueStore{m.durable, m.volatile}
	stored := store.MaxAcross(stores, store.BalanceKeys(store.FieldCurrentBalance, userID)...)

	// A store copy above the in-memory figure means another writer got there
	// first; adopt it before comparing.
	if m.userID == userID && stored > m.current {
		m.current = stored
		if m.current > m.highest {
			m.highest = m.current
		}
	}
	known := stored
	if m.userID == userID && m.current > known {
		known = m.current
	}
	if value <= known {
		m.mu.Unlock()
		return false
	}
	if m.userID == userID {
		m.current = value
		if value > m.highest {
			m.highest = value
		}
	}
	gains := m.dailyGains
	m.mu.Unlock()

	m.persist(userID, value, gains)
	m.notify(value)
	m.bus.Publish(models.TopicBalanceForceSync, models.Event{
		UserID:    userID,
		Amount:    value,
		Timestamp: m.now().Unix(),
	})
	return true
}

// SetDailyGains overwrites the cached gains figure, keeping the stores in sync.
func (m *Manager) SetDailyGains(value float64) {
	value = validation.SanitizeAmount(value)

	m.mu.Lock()
	m.dailyGains = value
	userID := m.userID
	balance := m.current
	m.mu.Unlock()

	m.persist(userID, balance, value)
	m.bus.Publish(models.TopicDailyGainsUpdated, models.Event{
		UserID:     userID,
		DailyGains: value,
		Timestamp:  m.now().Unix(),
	})
}

// SyncDailyGainsFromTransactions reconciles the cached gains against the sum
// recomputed from the append-only transaction log. The log wins whenever the
// two disagree by more than Epsilon, because stale caches can be corrupted
// and the log cannot. Reports whether the cache was overwritten.
func (m *Manager) SyncDailyGainsFromTransactions(logSum float64) bool {
	logSum = validation.SanitizeAmount(logSum)

	m.mu.RLock()
	cached := m.dailyGains
	m.mu.RUnlock()

	if math.Abs(cached-logSum) <= Epsilon {
		return false
	}
	m.logger.Info("Daily gains cache diverged from transaction log ",
		"cached ", cached, " log ", logSum)
	m.SetDailyGains(logSum)
	return true
}

// AddWatcher registers a callback fired with the new balance on every accepted
// mutation. Returns an unsubscribe function.
func (m *Manager) AddWatcher(fn func(balance float64)) func() {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// ResetBalance zeroes the balance and clears its cache keys. Used on
// withdrawal. Today's gains and the highest-ever mark are untouched.
func (m *Manager) ResetBalance() {
	m.mu.Lock()
	m.current = 0
	userID := m.userID
	m.mu.Unlock()

	for _, s := range []models.KeyValueStore{m.durable, m.volatile} {
		for _, k := range store.BalanceKeys(store.FieldCurrentBalance, userID) {
			s.Delete(k)
		}
	}
	m.notify(0)
	m.bus.Publish(models.TopicBalanceUpdate, models.Event{
		UserID:    userID,
		Amount:    0,
		Timestamp: m.now().Unix(),
	})
}

// ResetDailyCounters zeroes today's gains and clears their cache keys. Used at
// the midnight boundary. Balance and highest-ever mark are untouched.
func (m *Manager) ResetDailyCounters() {
	m.mu.Lock()
	m.dailyGains = 0
	userID := m.userID
	m.mu.Unlock()

	for _, s := range []models.KeyValueStore{m.durable, m.volatile} {
		for _, k := range store.BalanceKeys(store.FieldDailyGains, userID) {
			s.Delete(k)
		}
	}
	m.bus.Publish(models.TopicDailyGainsReset, models.Event{
		UserID:    userID,
		Timestamp: m.now().Unix(),
	})
}

// persist mirrors the figures to every redundant key of both stores.
// Store write failures are handled (and logged) inside the stores; in-memory
// state remains authoritative either way.
func (m *Manager) persist(userID string, balance, gains float64) {
	stores := []models.KeyValueStore{m.durable, m.volatile}
	store.WriteAll(stores, balance, store.BalanceKeys(store.FieldCurrentBalance, userID)...)
	store.WriteAll(stores, gains, store.BalanceKeys(store.FieldDailyGains, userID)...)

	m.mu.RLock()
	highest := m.highest
	m.mu.RUnlock()
	store.WriteAll(stores, highest, store.BalanceKeys(store.FieldHighestBalance, userID)...)

	ts := strconv.FormatInt(m.now().Unix(), 10)
	for _, s := range stores {
		for _, k := range store.BalanceKeys(store.FieldLastUpdate, userID) {
			s.Set(k, ts)
		}
	}
}

func (m *Manager) notify(balance float64) {
	m.mu.RLock()
	callbacks := make([]func(float64), 0, len(m.watchers))
	for _, fn := range m.watchers {
		callbacks = append(callbacks, fn)
	}
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(balance)
	}
}
