// Package adrates serves the burst-activity model to the counter engine:
// per-ad-type payout ranges and the simulated location roster. The document
// is fetched from a remote URL when one is configured, refreshed hourly and
// cached in memory; a compiled-in fallback guarantees the engine always has
// a model even when the remote is unreachable.
package adrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

// Service manages fetching and caching the ad-rates document.
type Service struct {
	logger *logger.Logger
	url    string
	client *http.Client

	// In-memory cache
	cache      models.RatesDocument
	cacheMutex sync.RWMutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service seeded with the fallback document. An empty
// url disables remote fetching entirely.
func NewService(url string, log *logger.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger: log,
		url:    url,
		cache:  Fallback(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Rates returns the current document (thread-safe).
func (s *Service) Rates() models.RatesDocument {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return s.cache
}

// FetchAndUpdate fetches the document from the remote URL and swaps the cache.
func (s *Service) FetchAndUpdate() error {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return fmt.Errorf("failed to fetch ad rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var doc models.RatesDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode ad rates: %w", err)
	}
	if len(doc.Locations) == 0 || len(doc.Values) == 0 {
		return fmt.Errorf("ad rates document is incomplete")
	}

	s.cacheMutex.Lock()
	s.cache = doc
	s.cacheMutex.Unlock()

	s.logger.Info(fmt.Sprintf("Ad rates updated: %d locations, %d ad types", len(doc.Locations), len(doc.Values)))
	return nil
}

// StartPeriodicUpdate starts a goroutine that refreshes the document
// periodically. The initial fetch retries with capped backoff; failures only
// mean the fallback stays in effect.
func (s *Service) StartPeriodicUpdate() {
	if s.url == "" {
		s.logger.Info("No ad rates URL configured, using built-in model")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		backoff := 5 * time.Second
		maxBackoff := 5 * time.Minute

		for {
			if err := s.FetchAndUpdate(); err != nil {
				s.logger.Error("Failed to fetch ad rates on startup, retrying...", "error", err, "retry_in", backoff)

				select {
				case <-time.After(backoff):
					backoff = backoff * 2
					if backoff > maxBackoff {
						backoff = maxBackoff
					}
					continue
				case <-s.ctx.Done():
					s.logger.Info("Ad rates service stopped during initial fetch")
					return
				}
			}
			break
		}

		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.FetchAndUpdate(); err != nil {
					s.logger.Error("Failed to refresh ad rates", "error", err)
				}
			case <-s.ctx.Done():
				s.logger.Info("Ad rates periodic update stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the service.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Fallback is the compiled-in burst-activity model.
func Fallback() models.RatesDocument {
	return models.RatesDocument{
		Values: map[models.AdType]models.ValueRange{
			models.AdTypePremium:  {Min: 0.18, Max: 0.35},
			models.AdTypeHigh:     {Min: 0.10, Max: 0.18},
			models.AdTypeMedium:   {Min: 0.05, Max: 0.10},
			models.AdTypeStandard: {Min: 0.02, Max: 0.05},
		},
		Locations: []models.AdLocation{
			{
				Name: "Paris", BotCount: 42, Efficiency: 0.92, AdsPerHourPerBot: 118,
				Distribution: map[models.AdType]float64{
					models.AdTypePremium: 0.15, models.AdTypeHigh: 0.30,
					models.AdTypeMedium: 0.35, models.AdTypeStandard: 0.20,
				},
			},
			{
				Name: "Lyon", BotCount: 27, Efficiency: 0.88, AdsPerHourPerBot: 104,
				Distribution: map[models.AdType]float64{
					models.AdTypePremium: 0.10, models.AdTypeHigh: 0.25,
					models.AdTypeMedium: 0.40, models.AdTypeStandard: 0.25,
				},
			},
			{
				Name: "Montreal", BotCount: 31, Efficiency: 0.85, AdsPerHourPerBot: 96,
				Distribution: map[models.AdType]float64{
					models.AdTypePremium: 0.12, models.AdTypeHigh: 0.28,
					models.AdTypeMedium: 0.35, models.AdTypeStandard: 0.25,
				},
			},
			{
				Name: "Brussels", BotCount: 19, Efficiency: 0.90, AdsPerHourPerBot: 110,
				Distribution: map[models.AdType]float64{
					models.AdTypePremium: 0.08, models.AdTypeHigh: 0.22,
					models.AdTypeMedium: 0.42, models.AdTypeStandard: 0.28,
				},
			},
			{
				Name: "Geneva", BotCount: 14, Efficiency: 0.95, AdsPerHourPerBot: 125,
				Distribution: map[models.AdType]float64{
					models.AdTypePremium: 0.20, models.AdTypeHigh: 0.32,
					models.AdTypeMedium: 0.30, models.AdTypeStandard: 0.18,
				},
			},
		},
		UpdatedAt: 0,
	}
}
