package models

// Subscription is a paid tier of the product. Tiers come in pairs that share
// the same daily cap and quota (starter|pro, gold|visionnaire, elite|alpha).
type Subscription string

const (
	SubscriptionFreemium    Subscription = "freemium"
	SubscriptionStarter     Subscription = "starter"
	SubscriptionPro         Subscription = "pro"
	SubscriptionGold        Subscription = "gold"
	SubscriptionVisionnaire Subscription = "visionnaire"
	SubscriptionElite       Subscription = "elite"
	SubscriptionAlpha       Subscription = "alpha"
)

// KnownSubscriptions lists every accepted tier value.
var KnownSubscriptions = []Subscription{
	SubscriptionFreemium,
	SubscriptionStarter,
	SubscriptionPro,
	SubscriptionGold,
	SubscriptionVisionnaire,
	SubscriptionElite,
	SubscriptionAlpha,
}

// Valid reports whether s is one of the known tiers.
func (s Subscription) Valid() bool {
	for _, k := range KnownSubscriptions {
		if s == k {
			return true
		}
	}
	return false
}

// DailyLimitState is the derived limit evaluation for a user. It is recomputed
// on every gains mutation and once per polling interval, never stored on its own.
type DailyLimitState struct {
	// Subscription is the effective tier the evaluation was made against.
	Subscription Subscription `json:"subscription"`
	// DailyGains is the gains figure the evaluation was made against.
	DailyGains float64 `json:"daily_gains"`
	// Limit is the daily cap in EUR for the tier.
	Limit float64 `json:"limit"`
	// Percentage is min(100, DailyGains/Limit*100).
	Percentage float64 `json:"percentage"`
	// Reached is true once Percentage crossed the configured threshold.
	Reached bool `json:"reached"`
	// Approaching is true once Percentage crossed the approaching threshold.
	Approaching bool `json:"approaching"`
}

// TrialState describes the time-boxed promotional upgrade of a user.
// The machine is {no-trial, active(expiry)} -> consumed, irreversible once consumed.
type TrialState struct {
	// Active is true while the trial upgrade applies.
	Active bool `json:"active"`
	// ActivatedAt is the Unix timestamp of activation, zero when never activated.
	ActivatedAt int64 `json:"activated_at"`
	// ExpiresAt is the Unix timestamp when the upgrade lapses.
	ExpiresAt int64 `json:"expires_at"`
	// Consumed is true once the trial has been used up; it never resets.
	Consumed bool `json:"consumed"`
}
