package models

import "context"

// BotStatus is the lifecycle state of the simulated ad-viewing bot.
type BotStatus string

const (
	BotActive  BotStatus = "active"
	BotPaused  BotStatus = "paused"
	BotStopped BotStatus = "stopped"
)

// Pause reasons carried in bot:status-change events. A bot paused by the
// daily limit is re-enabled at the midnight boundary; a manual pause is not.
const (
	PauseReasonManual = "manual"
	PauseReasonLimit  = "limit"
)

// SessionResult is returned to the boundary after a completed bot session.
type SessionResult struct {
	// Gain is the amount earned by the session, zero when the limit is reached.
	Gain float64 `json:"gain"`
	// Balance is the balance after the session.
	Balance float64 `json:"balance"`
	// Limit is the limit evaluation after the session.
	Limit DailyLimitState `json:"limit"`
	// SessionCount is the number of sessions started today, this one included.
	SessionCount int `json:"session_count"`
}

// EngineI is the simulation core orchestrator.
type EngineI interface {
	// Start launches the background loops (reconciliation cadence, counter
	// progression, watchdog) and subscribes to boundary events.
	Start()
	// Stop cancels the background loops and waits for them to drain.
	Stop()

	// StartSession runs one bot earning session for the user.
	StartSession(ctx context.Context, userID string) (*SessionResult, error)
	// Withdraw pays out the whole balance and zeroes it.
	Withdraw(ctx context.Context, userID string) (float64, error)
	// Transactions returns the user's recent earning/withdrawal history.
	Transactions(ctx context.Context, userID string) ([]*Transaction, error)
	// BalanceState returns the balance figures surfaced to the boundary.
	BalanceState(userID string) (current, highest, dailyGains float64)
	// BotStatus returns the current bot state for a user.
	BotStatus(userID string) (BotStatus, string)
	// SetBotStatus forces the bot state, reason is manual or limit.
	SetBotStatus(userID string, status BotStatus, reason string)
	// LimitState evaluates the daily limit for a user right now.
	LimitState(userID string) DailyLimitState
	// Counters returns the current vanity counters.
	Counters() VanityCounters
	// ActivateTrial arms the promotional upgrade for a user.
	ActivateTrial(userID string) (*TrialState, error)
	// DailyCycleReset performs the midnight rollover for every known user.
	DailyCycleReset()
}

// APIServer is the boundary HTTP surface.
type APIServer interface {
	Start()
	Shutdown() error
}
