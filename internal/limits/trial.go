package limits

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

// TrialTier is the tier a trial temporarily upgrades to.
const TrialTier = models.SubscriptionPro

// Trial drives the promotional upgrade state machine over the durable store:
// {no-trial, active(expiry)} -> consumed, irreversible once consumed.
// Activation and expiry timestamps are both persisted so the state survives
// restarts.
type Trial struct {
	logger   *logger.Logger
	durable  models.KeyValueStore
	duration time.Duration
	now      func() time.Time

	// onExpire fires once when an active trial is found expired, so
	// dependent computations re-read the real tier (the reload analogue).
	onExpire func(userID string)
}

func NewTrial(durable models.KeyValueStore, duration time.Duration, log *logger.Logger) *Trial {
	return &Trial{
		logger:   log,
		durable:  durable,
		duration: duration,
		now:      time.Now,
	}
}

// SetNow overrides the clock. Used by tests.
func (t *Trial) SetNow(now func() time.Time) { t.now = now }

// SetOnExpire registers the expiry callback.
func (t *Trial) SetOnExpire(fn func(userID string)) { t.onExpire = fn }

// Activate arms the trial for a user. A consumed or already active trial
// cannot be activated again.
func (t *Trial) Activate(userID string) (*models.TrialState, error) {
	state := t.State(userID)
	if state.Consumed {
		return nil, fmt.Errorf("trial already consumed")
	}
	if state.Active {
		return nil, fmt.Errorf("trial already active")
	}

	now := t.now()
	expires := now.Add(t.duration)
	t.durable.Set(store.Key(store.KeyTrialActivated, userID), strconv.FormatInt(now.Unix(), 10))
	t.durable.Set(store.Key(store.KeyTrialExpires, userID), strconv.FormatInt(expires.Unix(), 10))

	t.logger.Info("Trial activated ", "user ", userID, " expires ", expires.Unix())
	return &models.TrialState{
		Active:      true,
		ActivatedAt: now.Unix(),
		ExpiresAt:   expires.Unix(),
	}, nil
}

// State reads the current trial state, expiring it as a side effect when the
// clock has passed the persisted expiry. Expiry clears the trial flags, sets
// the permanent consumed flag and fires the expiry callback exactly once.
func (t *Trial) State(userID string) models.TrialState {
	if v, _ := t.durable.Get(store.Key(store.KeyTrialConsumed, userID)); v == "true" {
		return models.TrialState{Consumed: true}
	}

	activatedRaw, ok := t.durable.Get(store.Key(store.KeyTrialActivated, userID))
	if !ok {
		return models.TrialState{}
	}
	activated, _ := strconv.ParseInt(activatedRaw, 10, 64)
	expiresRaw, _ := t.durable.Get(store.Key(store.KeyTrialExpires, userID))
	expires, _ := strconv.ParseInt(expiresRaw, 10, 64)

	if t.now().Unix() >= expires {
		t.durable.Delete(store.Key(store.KeyTrialActivated, userID))
		t.durable.Delete(store.Key(store.KeyTrialExpires, userID))
		t.durable.Set(store.Key(store.KeyTrialConsumed, userID), "true")
		t.logger.Info("Trial expired ", "user ", userID)
		if t.onExpire != nil {
			t.onExpire(userID)
		}
		return models.TrialState{Consumed: true}
	}

	return models.TrialState{
		Active:      true,
		ActivatedAt: activated,
		ExpiresAt:   expires,
	}
}

// Effective returns the subscription after applying an unexpired trial:
// the trial tier when it outranks the real one, the real tier otherwise.
func (t *Trial) Effective(userID string, sub models.Subscription) models.Subscription {
	state := t.State(userID)
	if !state.Active {
		return sub
	}
	if DailyCap(TrialTier) > DailyCap(sub) {
		return TrialTier
	}
	return sub
}
