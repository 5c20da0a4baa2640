// Package reconcile merges the redundant copies of a user's balance — remote
// row, durable store, volatile store and in-memory state — and propagates the
// winner back to all of them. The merge always takes the maximum, which makes
// it idempotent and safe under arbitrarily interleaved timer firings.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucrumlabs/lucrum/internal/balance"
	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
	"github.com/lucrumlabs/lucrum/pkg/validation"
)

const (
	remoteAttempts   = 3
	remoteBackoff    = 500 * time.Millisecond
	maxRemoteBackoff = 5 * time.Second
)

// MergeBalance returns the maximum of the given copies after sanitizing each.
// Calling it twice with the same inputs yields the same output.
func MergeBalance(values ...float64) float64 {
	merged := 0.0
	for _, v := range values {
		if v = validation.SanitizeAmount(v); v > merged {
			merged = v
		}
	}
	return merged
}

// Reconciler runs the merge on load, on demand and on a fixed cadence.
type Reconciler struct {
	logger   *logger.Logger
	repo     models.Repository
	durable  models.KeyValueStore
	volatile models.KeyValueStore
	manager  *balance.Manager
	bus      models.EventBus
	location *time.Location
	cadence  time.Duration
	now      func() time.Time

	// queueID lets a finishing sync detect that a newer one superseded it.
	queueID atomic.Uint64

	// remoteFailures counts consecutive remote errors for the terminal notice.
	remoteFailures atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReconciler(
	repo models.Repository,
	durable, volatile models.KeyValueStore,
	manager *balance.Manager,
	bus models.EventBus,
	location *time.Location,
	cadence time.Duration,
	log *logger.Logger,
) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		logger:   log,
		repo:     repo,
		durable:  durable,
		volatile: volatile,
		manager:  manager,
		bus:      bus,
		location: location,
		cadence:  cadence,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNow overrides the clock. Used by tests.
func (r *Reconciler) SetNow(now func() time.Time) { r.now = now }

// Start launches the fixed-cadence loop for the bound user.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cadence)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if userID := r.manager.UserID(); userID != "" {
					r.SyncUser(userID)
				}
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the cadence loop and waits for it.
func (r *Reconciler) Stop() {
	r.cancel()
	r.wg.Wait()
}

// SyncUser performs one full merge for a user: fetch the remote row (with
// retry, falling back to the durable copy), take the max across every source,
// propagate the winner everywhere and reconcile today's gains against the
// transaction log. A sync superseded by a newer call abandons its propagation
// so a slow remote read can never clobber fresher state.
func (r *Reconciler) SyncUser(userID string) {
	id := r.queueID.Add(1)

	remote := 0.0
	record, err := r.fetchRemote(userID)
	if err != nil {
		// Transient remote failure: degrade to the last known durable value,
		// never surface an error to the balance display.
		r.logger.Warn("Remote balance unavailable, using durable copy ",
			"user ", userID, " error ", err)
	} else if record != nil {
		remote = record.Balance
	}

	if r.queueID.Load() != id {
		// A newer sync started while we waited on the remote; ours is stale.
		r.logger.Debug("Discarding superseded sync ", "user ", userID)
		return
	}

	stores := []models.KeyValueStore{r.durable, r.volatile}
	cached := store.MaxAcross(stores, store.BalanceKeys(store.FieldCurrentBalance, userID)...)
	inMemory := 0.0
	if r.manager.UserID() == userID {
		inMemory = r.manager.CurrentBalance()
	}

	winner := MergeBalance(remote, cached, inMemory)

	// Propagate: the manager persists to both stores on accept; the remote
	// write is best-effort and guarded by the same max rule on the SQL side.
	r.manager.ForceBalanceSync(winner, userID)
	if winner > remote {
		if _, err := r.repo.SaveUserBalanceIfHigher(userID, winner); err != nil {
			r.logger.Warn("Remote balance write failed ", "user ", userID, " error ", err)
		}
	}

	r.syncDailyGains(userID)

	r.bus.Publish(models.TopicBalanceForceUpdate, models.Event{
		UserID:    userID,
		Amount:    winner,
		Timestamp: r.now().Unix(),
	})
}

// syncDailyGains recomputes today's gains from the append-only transaction log
// and lets the manager overwrite its cache when they diverge.
func (r *Reconciler) syncDailyGains(userID string) {
	if r.manager.UserID() != userID {
		return
	}
	now := r.now().In(r.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)

	sum, err := r.repo.SumGainsBetween(userID, dayStart, now)
	if err != nil {
		r.logger.Warn("Transaction log read failed, keeping cached gains ",
			"user ", userID, " error ", err)
		return
	}
	r.manager.SyncDailyGainsFromTransactions(sum)
}

// fetchRemote reads the remote row with a small fixed number of attempts and
// capped exponential backoff.
func (r *Reconciler) fetchRemote(userID string) (*models.UserBalanceRecord, error) {
	backoff := remoteBackoff
	var lastErr error
	for attempt := 0; attempt < remoteAttempts; attempt++ {
		record, err := r.repo.GetUserBalance(userID)
		if err == nil {
			r.remoteFailures.Store(0)
			return record, nil
		}
		lastErr = err
		if attempt == remoteAttempts-1 {
			break
		}

		select {
		case <-time.After(backoff):
		case <-r.ctx.Done():
			return nil, lastErr
		}
		backoff *= 2
		if backoff > maxRemoteBackoff {
			backoff = maxRemoteBackoff
		}
	}

	// Repeated failure is the one terminal condition the boundary may show;
	// the notice is decoupled from the simulation itself.
	if r.remoteFailures.Add(1) >= 3 {
		r.bus.Publish(models.TopicBotExternalStatus, models.Event{
			UserID:    userID,
			Status:    "sync-degraded",
			Timestamp: r.now().Unix(),
		})
	}
	return nil, lastErr
}
