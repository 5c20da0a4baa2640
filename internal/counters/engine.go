// Package counters maintains the two globally displayed vanity figures: ads
// processed and revenue generated. They must never visibly decrease, grow
// slowly and credibly over calendar time, and occasionally burst-increment
// with randomized magnitude and timing. Persistence follows the max rule: a
// write that would lower either counter is dropped.
package counters

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

const (
	// Floors seed a fresh install; the synthetic first-use date is backdated
	// so the figures look like an established product on first load.
	AdsFloor     = int64(36742)
	RevenueFloor = 28650.50

	// Ceilings bound growth; increments clamp here.
	AdsCeiling     = int64(182000)
	RevenueCeiling = 142500.0

	// acceptProbability gates a natural tick: most fire as no-ops.
	acceptProbability = 0.001

	// Randomized minimum gap between accepted natural ticks.
	minGapFloor = 3 * time.Minute
	minGapSpan  = 4 * time.Minute

	// Backdating window for the synthetic first-use date, in days.
	backdateMin  = 30
	backdateSpan = 31

	// displayShare maps the burst model's raw hourly throughput onto the
	// slow drift of the displayed counters during lump catch-up.
	displayShare = 0.002

	// catchUpAfter is the idle span beyond which a lump increment applies.
	catchUpAfter = 10 * time.Minute
)

// RatesProvider supplies the burst-activity model (locations, ad types,
// payout ranges) used to size lump increments.
type RatesProvider func() models.RatesDocument

type Engine struct {
	logger  *logger.Logger
	durable models.KeyValueStore
	rates   RatesProvider
	now     func() time.Time

	tickEvery  time.Duration
	watchEvery time.Duration
	staleAfter time.Duration

	mu           sync.Mutex
	rng          *rand.Rand
	ads          int64
	revenue      float64
	lastAccepted time.Time
	minGap       time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine loads the counters from the durable store, seeding from the
// floors scaled by product age when the store has nothing higher. A zero seed
// derives one from the clock; tests pass a fixed seed for deterministic ticks.
func NewEngine(
	durable models.KeyValueStore,
	rates RatesProvider,
	seed int64,
	tickEvery, watchEvery, staleAfter time.Duration,
	log *logger.Logger,
) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		logger:     log,
		durable:    durable,
		rates:      rates,
		now:        time.Now,
		tickEvery:  tickEvery,
		watchEvery: watchEvery,
		staleAfter: staleAfter,
		rng:        rand.New(rand.NewSource(seed)),
		ctx:        ctx,
		cancel:     cancel,
	}
	e.load()
	return e
}

// SetNow overrides the clock. Used by tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// load hydrates the counters: max across the live keys, the backup pair, the
// last-displayed pair and the age-scaled floor, clamped to the ceilings.
func (e *Engine) load() {
	e.mu.Lock()
	defer e.mu.Unlock()

	firstUse := e.firstUseLocked()
	days := e.now().Sub(firstUse).Hours() / 24
	factor := progressFactor(days)

	adsSeed := int64(float64(AdsFloor) * factor)
	revSeed := RevenueFloor * factor

	stores := []models.KeyValueStore{e.durable}
	ads := int64(store.MaxAcross(stores, store.KeyAdsCount, store.KeyAdsBackup, store.KeyAdsDisplayed))
	if ads < adsSeed {
		ads = adsSeed
	}
	rev := store.MaxAcross(stores, store.KeyRevenueCount, store.KeyRevenueBackup, store.KeyRevDisplayed)
	if rev < revSeed {
		rev = revSeed
	}

	e.ads = clampInt(ads, AdsCeiling)
	e.revenue = clampFloat(rev, RevenueCeiling)
	e.lastAccepted = e.lastUpdateLocked()
	e.minGap = e.nextMinGapLocked()
	e.persistLocked()
}

// firstUseLocked returns the persisted synthetic first-use date, backdating a
// fresh one 30-60 days when absent. Caller holds e.mu.
func (e *Engine) firstUseLocked() time.Time {
	if raw, ok := e.durable.Get(store.KeyFirstUseDate); ok {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil && ts > 0 {
			return time.Unix(ts, 0)
		}
	}
	back := time.Duration(backdateMin+e.rng.Intn(backdateSpan)) * 24 * time.Hour
	firstUse := e.now().Add(-back)
	e.durable.Set(store.KeyFirstUseDate, strconv.FormatInt(firstUse.Unix(), 10))
	return firstUse
}

func (e *Engine) lastUpdateLocked() time.Time {
	if raw, ok := e.durable.Get(store.KeyStorageDate); ok {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil && ts > 0 {
			return time.Unix(ts, 0)
		}
	}
	return e.now()
}

func (e *Engine) nextMinGapLocked() time.Duration {
	return minGapFloor + time.Duration(e.rng.Int63n(int64(minGapSpan)))
}

// Start launches the natural tick loop and the watchdog, after applying any
// lump catch-up for time the process spent down.
func (e *Engine) Start() {
	e.CatchUp()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Tick(false)
			case <-e.ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.watchEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.watchdog()
			case <-e.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loops and waits for them.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

// Tick attempts one increment. A natural tick (force=false) no-ops unless the
// randomized minimum gap has elapsed and the low-probability gate accepts it;
// a forced tick bypasses both. Reports whether an increment was accepted.
func (e *Engine) Tick(force bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !force {
		if now.Sub(e.lastAccepted) < e.minGap {
			return false
		}
		if e.rng.Float64() >= acceptProbability {
			return false
		}
	}

	adsInc := int64(1 + e.rng.Intn(3))
	revInc := 0.05 + e.rng.Float64()*0.30

	e.applyLocked(e.ads+adsInc, e.revenue+revInc, now)
	return true
}

// watchdog forces an increment when no natural one happened for the stale
// window, so the displayed figures never look frozen.
func (e *Engine) watchdog() {
	e.mu.Lock()
	stale := e.now().Sub(e.lastAccepted) >= e.staleAfter
	e.mu.Unlock()
	if !stale {
		return
	}
	e.logger.Debug("Counter watchdog forcing tick")
	e.Tick(true)
}

// CatchUp applies one lump increment covering the span since the last
// accepted update, sized from the burst-activity model's hourly throughput.
// No-op for spans under the catch-up window.
func (e *Engine) CatchUp() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	elapsed := now.Sub(e.lastAccepted)
	if elapsed < catchUpAfter {
		return
	}

	doc := e.rates()
	hours := elapsed.Hours()
	adsInc := int64(HourlyAdThroughput(doc) * hours * displayShare)
	revInc := HourlyRevenue(doc) * hours * displayShare
	if adsInc < 1 {
		adsInc = 1
	}

	e.logger.Info("Counter catch-up ", "elapsed ", elapsed.String(), " ads ", adsInc)
	e.applyLocked(e.ads+adsInc, e.revenue+revInc, now)
}

// applyLocked clamps, max-merges against the stored copies and persists.
// Caller holds e.mu.
func (e *Engine) applyLocked(adsCandidate int64, revCandidate float64, now time.Time) {
	adsCandidate = clampInt(adsCandidate, AdsCeiling)
	revCandidate = clampFloat(revCandidate, RevenueCeiling)

	// Never write a value lower than what any copy already holds.
	stores := []models.KeyValueStore{e.durable}
	if stored := int64(store.MaxAcross(stores, store.KeyAdsCount, store.KeyAdsBackup)); stored > adsCandidate {
		adsCandidate = stored
	}
	if stored := store.MaxAcross(stores, store.KeyRevenueCount, store.KeyRevenueBackup); stored > revCandidate {
		revCandidate = stored
	}

	e.ads = adsCandidate
	e.revenue = revCandidate
	e.lastAccepted = now
	e.minGap = e.nextMinGapLocked()
	e.persistLocked()
}

// persistLocked writes the live pair, the backup pair, the last-displayed
// pair and the storage date. Caller holds e.mu.
func (e *Engine) persistLocked() {
	e.durable.SetFloat(store.KeyAdsCount, float64(e.ads))
	e.durable.SetFloat(store.KeyAdsBackup, float64(e.ads))
	e.durable.SetFloat(store.KeyAdsDisplayed, float64(e.ads))
	e.durable.SetFloat(store.KeyRevenueCount, e.revenue)
	e.durable.SetFloat(store.KeyRevenueBackup, e.revenue)
	e.durable.SetFloat(store.KeyRevDisplayed, e.revenue)
	e.durable.Set(store.KeyStorageDate, strconv.FormatInt(e.lastAccepted.Unix(), 10))
}

// Counters returns the current vanity figures.
func (e *Engine) Counters() models.VanityCounters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.VanityCounters{
		AdsCount:     e.ads,
		RevenueCount: e.revenue,
		StorageDate:  e.lastAccepted.Format("2006-01-02"),
	}
}

func clampInt(v, ceiling int64) int64 {
	if v > ceiling {
		return ceiling
	}
	return v
}

func clampFloat(v, ceiling float64) float64 {
	if v > ceiling {
		return ceiling
	}
	return v
}
