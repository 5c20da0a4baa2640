// Package lucrum is the simulation core orchestrator. It ties the balance
// manager, the limit evaluator, the counter engine and the reconciler
// together behind one interface, drives the bot status machine and emits the
// boundary events any presentation layer renders from.
package lucrum

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lucrumlabs/lucrum/internal/balance"
	"github.com/lucrumlabs/lucrum/internal/counters"
	"github.com/lucrumlabs/lucrum/internal/limits"
	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/reconcile"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
	"github.com/lucrumlabs/lucrum/pkg/validation"
)

var (
	ErrSessionQuotaExceeded = errors.New("daily session quota exceeded")
	ErrLimitReached         = errors.New("daily limit reached")
	ErrNothingToWithdraw    = errors.New("nothing to withdraw")
	ErrBotNotActive         = errors.New("bot is not active")
)

// Session gains are drawn as a share of the effective tier's daily cap, so a
// freemium session earns cents while an alpha session earns euros.
const (
	sessionGainShareMin  = 0.08
	sessionGainShareSpan = 0.17
)

const dayFormat = "2006-01-02"

type botState struct {
	status models.BotStatus
	reason string
}

type Engine struct {
	logger     *logger.Logger
	repo       models.Repository
	durable    models.KeyValueStore
	volatile   models.KeyValueStore
	manager    *balance.Manager
	reconciler *reconcile.Reconciler
	counters   *counters.Engine
	trial      *limits.Trial
	bus        models.EventBus
	notifier   models.NotificationService
	location   *time.Location
	now        func() time.Time

	reachedThreshold     float64
	approachingThreshold float64

	mu   sync.Mutex
	rng  *rand.Rand
	bots map[string]botState
	subs map[string]models.Subscription

	unsubscribe []func()
}

func NewEngine(
	repo models.Repository,
	durable, volatile models.KeyValueStore,
	manager *balance.Manager,
	reconciler *reconcile.Reconciler,
	counterEngine *counters.Engine,
	trial *limits.Trial,
	bus models.EventBus,
	notifier models.NotificationService,
	location *time.Location,
	reachedThreshold, approachingThreshold float64,
	seed int64,
	log *logger.Logger,
) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		logger:               log,
		repo:                 repo,
		durable:              durable,
		volatile:             volatile,
		manager:              manager,
		reconciler:           reconciler,
		counters:             counterEngine,
		trial:                trial,
		bus:                  bus,
		notifier:             notifier,
		location:             location,
		now:                  time.Now,
		reachedThreshold:     reachedThreshold,
		approachingThreshold: approachingThreshold,
		rng:                  rand.New(rand.NewSource(seed)),
		bots:                 make(map[string]botState),
		subs:                 make(map[string]models.Subscription),
	}
	trial.SetOnExpire(e.onTrialExpire)
	return e
}

// SetNow overrides the clock. Used by tests.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// Start subscribes to the boundary command topics and launches the background
// loops: reconciliation cadence, counter progression and its watchdog.
func (e *Engine) Start() {
	e.unsubscribe = append(e.unsubscribe,
		e.bus.Subscribe(models.TopicBotForceStatus, func(ev models.Event) {
			e.SetBotStatus(ev.UserID, models.BotStatus(ev.Status), ev.Reason)
		}),
	)
	if e.reconciler != nil {
		e.reconciler.Start()
	}
	if e.counters != nil {
		e.counters.Start()
	}
}

// Stop unsubscribes and drains the background loops.
func (e *Engine) Stop() {
	for _, unsub := range e.unsubscribe {
		unsub()
	}
	e.unsubscribe = nil
	if e.reconciler != nil {
		e.reconciler.Stop()
	}
	if e.counters != nil {
		e.counters.Stop()
	}
}

// StartSession runs one bot earning session: checks the quota and the daily
// limit, draws a randomized gain bounded by the remaining headroom, credits
// the balance, appends the transaction and re-evaluates the limit state.
func (e *Engine) StartSession(ctx context.Context, userID string) (*models.SessionResult, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if status, _ := e.BotStatus(userID); status != models.BotActive {
		return nil, ErrBotNotActive
	}
	e.bind(userID)

	sub := e.subscription(userID)
	effective := e.trial.Effective(userID, sub)

	state := limits.Evaluate(effective, e.manager.DailyGains(), e.reachedThreshold, e.approachingThreshold)
	if state.Reached {
		e.handleLimitReached(userID, state)
		return &models.SessionResult{
			Balance: e.manager.CurrentBalance(),
			Limit:   state,
		}, ErrLimitReached
	}

	quota := limits.SessionQuota(effective)
	count, ok, err := e.repo.IncrementSessionCount(userID, quota)
	if err != nil {
		return nil, fmt.Errorf("failed to count session: %w", err)
	}
	if !ok {
		return nil, ErrSessionQuotaExceeded
	}

	gain := e.drawGain(effective, state)
	e.manager.UpdateBalance(gain)

	tx := &models.Transaction{
		UserID: userID,
		Date:   e.now().Unix(),
		Gain:   gain,
		Report: fmt.Sprintf("bot session %d/%d", count, quota),
	}
	if err := e.repo.AppendTransaction(tx); err != nil {
		e.logger.Warn("Transaction append failed ", "user ", userID, " error ", err)
	}

	// Best effort: the SQL guard drops the write if the row is already higher.
	go func(balance float64) {
		if _, err := e.repo.SaveUserBalanceIfHigher(userID, balance); err != nil {
			e.logger.Warn("Remote balance write failed ", "user ", userID, " error ", err)
		}
	}(e.manager.CurrentBalance())

	state = limits.Evaluate(effective, e.manager.DailyGains(), e.reachedThreshold, e.approachingThreshold)
	if state.Reached {
		e.handleLimitReached(userID, state)
	} else if state.Approaching {
		e.bus.Publish(models.TopicLimitApproaching, models.Event{
			UserID:     userID,
			DailyGains: state.DailyGains,
			Percentage: state.Percentage,
			Timestamp:  e.now().Unix(),
		})
	}

	return &models.SessionResult{
		Gain:         gain,
		Balance:      e.manager.CurrentBalance(),
		Limit:        state,
		SessionCount: count,
	}, nil
}

// drawGain draws a randomized session gain, clamped to the remaining headroom
// under the effective daily cap.
func (e *Engine) drawGain(sub models.Subscription, state models.DailyLimitState) float64 {
	dayCap := limits.DailyCap(sub)
	remaining := dayCap - state.DailyGains
	if remaining <= 0 {
		return 0
	}

	e.mu.Lock()
	share := sessionGainShareMin + e.rng.Float64()*sessionGainShareSpan
	e.mu.Unlock()

	gain := dayCap * share
	if gain > remaining {
		gain = remaining
	}
	return validation.RoundCents(gain)
}

// Withdraw pays out the whole balance: the remote row and every cache copy go
// to zero, and the payout lands in the transaction log as a negative entry.
func (e *Engine) Withdraw(ctx context.Context, userID string) (float64, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return 0, err
	}
	e.bind(userID)

	amount := e.manager.CurrentBalance()
	if amount <= 0 {
		return 0, ErrNothingToWithdraw
	}

	if err := e.repo.ResetUserBalance(userID); err != nil {
		return 0, fmt.Errorf("failed to reset remote balance: %w", err)
	}
	e.manager.ResetBalance()

	tx := &models.Transaction{
		UserID: userID,
		Date:   e.now().Unix(),
		Gain:   -amount,
		Report: "withdrawal",
	}
	if err := e.repo.AppendTransaction(tx); err != nil {
		e.logger.Warn("Withdrawal transaction append failed ", "user ", userID, " error ", err)
	}

	if e.notifier != nil {
		e.notifier.Notify(userID, fmt.Sprintf("Withdrawal of %.2f EUR confirmed.", amount))
	}
	e.logger.Info("Withdrawal ", "user ", userID, " amount ", amount)
	return amount, nil
}

// historyWindow is how far back the transaction history endpoint reaches.
const historyWindow = 30 * 24 * time.Hour

// Transactions returns the user's earning and withdrawal history over the
// last thirty days, oldest first.
func (e *Engine) Transactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	now := e.now()
	return e.repo.TransactionsBetween(userID, now.Add(-historyWindow), now)
}

// BalanceState returns the figures the boundary renders: current balance,
// highest balance ever observed and today's gains.
func (e *Engine) BalanceState(userID string) (current, highest, dailyGains float64) {
	e.bind(userID)
	return e.manager.CurrentBalance(), e.manager.HighestBalance(), e.manager.DailyGains()
}

// BotStatus returns the bot state for a user; an unknown user's bot is active.
func (e *Engine) BotStatus(userID string) (models.BotStatus, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.bots[userID]; ok {
		return s.status, s.reason
	}
	return models.BotActive, ""
}

// SetBotStatus forces the bot state and broadcasts the change.
func (e *Engine) SetBotStatus(userID string, status models.BotStatus, reason string) {
	switch status {
	case models.BotActive, models.BotPaused, models.BotStopped:
	default:
		e.logger.Warn("Ignoring unknown bot status ", "status ", status)
		return
	}

	e.mu.Lock()
	prev := e.bots[userID]
	if prev.status == status && prev.reason == reason {
		e.mu.Unlock()
		return
	}
	e.bots[userID] = botState{status: status, reason: reason}
	e.mu.Unlock()

	e.bus.Publish(models.TopicBotStatusChange, models.Event{
		UserID:    userID,
		Status:    string(status),
		Reason:    reason,
		Timestamp: e.now().Unix(),
	})
}

// LimitState evaluates the daily limit for a user under the effective tier.
func (e *Engine) LimitState(userID string) models.DailyLimitState {
	sub := e.subscription(userID)
	effective := e.trial.Effective(userID, sub)

	gains := e.manager.DailyGains()
	if e.manager.UserID() != userID {
		stores := []models.KeyValueStore{e.durable, e.volatile}
		gains = store.MaxAcross(stores, store.BalanceKeys(store.FieldDailyGains, userID)...)
	}
	return limits.Evaluate(effective, gains, e.reachedThreshold, e.approachingThreshold)
}

// Counters returns the current vanity figures.
func (e *Engine) Counters() models.VanityCounters {
	return e.counters.Counters()
}

// ActivateTrial arms the promotional upgrade for a user.
func (e *Engine) ActivateTrial(userID string) (*models.TrialState, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	state, err := e.trial.Activate(userID)
	if err != nil {
		return nil, err
	}
	// The cap changed; let the boundary re-render the limit widget.
	limit := e.LimitState(userID)
	e.bus.Publish(models.TopicDailyGainsUpdated, models.Event{
		UserID:     userID,
		DailyGains: limit.DailyGains,
		Percentage: limit.Percentage,
		Timestamp:  e.now().Unix(),
	})
	return state, nil
}

// DailyCycleReset performs the midnight rollover: gains and session counts go
// to zero, the limit-notified latches clear, and bots paused by the limit are
// re-enabled. Manual pauses and stopped bots stay as they are.
func (e *Engine) DailyCycleReset() {
	e.manager.ResetDailyCounters()

	if err := e.repo.ResetDailySessionCounts(); err != nil {
		e.logger.Warn("Session count reset failed ", "error ", err)
	}

	// The stores are shared by every user, so the sweep clears yesterday's
	// gains and latches for unbound users too, not just the one the manager
	// currently holds.
	for _, s := range []models.KeyValueStore{e.durable, e.volatile} {
		for _, key := range s.Keys() {
			if store.MatchesField(key, store.FieldDailyGains) ||
				store.MatchesField(key, store.KeyLimitNotified) {
				s.Delete(key)
			}
		}
	}

	e.mu.Lock()
	reenable := make([]string, 0)
	for userID, s := range e.bots {
		if s.status == models.BotPaused && s.reason == models.PauseReasonLimit {
			reenable = append(reenable, userID)
		}
	}
	e.mu.Unlock()
	for _, userID := range reenable {
		e.SetBotStatus(userID, models.BotActive, "")
	}

	e.logger.Info("Daily cycle reset complete ", "reenabled_bots ", len(reenable))
}

// bind attaches the balance manager to the user on first contact and makes
// sure the remote row exists.
func (e *Engine) bind(userID string) {
	if e.manager.UserID() != userID {
		e.manager.SetUserID(userID)
	}
	if err := e.repo.EnsureUserBalance(userID, models.SubscriptionFreemium); err != nil {
		e.logger.Warn("Failed to ensure user record ", "user ", userID, " error ", err)
	}
}

// subscription resolves a user's stored tier, cached after the first read.
func (e *Engine) subscription(userID string) models.Subscription {
	e.mu.Lock()
	if sub, ok := e.subs[userID]; ok {
		e.mu.Unlock()
		return sub
	}
	e.mu.Unlock()

	sub := models.SubscriptionFreemium
	if record, err := e.repo.GetUserBalance(userID); err == nil && record != nil {
		if s := models.Subscription(record.Subscription); s.Valid() {
			sub = s
		}
	}

	e.mu.Lock()
	e.subs[userID] = sub
	e.mu.Unlock()
	return sub
}

// SetSubscription updates the stored tier and drops the cached copy.
func (e *Engine) SetSubscription(userID string, sub models.Subscription) error {
	if !sub.Valid() {
		return fmt.Errorf("unknown subscription %q", sub)
	}
	if err := e.repo.SetSubscription(userID, sub); err != nil {
		return err
	}
	e.mu.Lock()
	e.subs[userID] = sub
	e.mu.Unlock()
	return nil
}

// handleLimitReached pauses the bot and broadcasts the limit event, at most
// once per user per day. The latch is the persisted notification date.
func (e *Engine) handleLimitReached(userID string, state models.DailyLimitState) {
	e.SetBotStatus(userID, models.BotPaused, models.PauseReasonLimit)

	today := e.now().In(e.location).Format(dayFormat)
	key := store.Key(store.KeyLimitNotified, userID)
	if last, ok := e.durable.Get(key); ok && last == today {
		return
	}
	e.durable.Set(key, today)

	e.bus.Publish(models.TopicLimitReached, models.Event{
		UserID:     userID,
		DailyGains: state.DailyGains,
		Percentage: state.Percentage,
		Reached:    true,
		Timestamp:  e.now().Unix(),
	})
	if e.notifier != nil {
		e.notifier.Notify(userID, fmt.Sprintf(
			"Daily limit reached: %.2f of %.2f EUR. The bot resumes at midnight.",
			state.DailyGains, state.Limit))
	}
	e.logger.Info("Daily limit reached ", "user ", userID, " gains ", state.DailyGains)
}

// onTrialExpire reacts to a trial lapsing: the effective cap shrank, so the
// limit state is re-evaluated and the boundary told to re-render.
func (e *Engine) onTrialExpire(userID string) {
	state := e.LimitState(userID)
	e.bus.Publish(models.TopicDailyGainsUpdated, models.Event{
		UserID:     userID,
		DailyGains: state.DailyGains,
		Percentage: state.Percentage,
		Timestamp:  e.now().Unix(),
	})
	if state.Reached {
		e.handleLimitReached(userID, state)
	}
}
