// Package limits evaluates per-tier daily earning caps and the time-boxed
// promotional trial upgrade.
package limits

import (
	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/validation"
)

// Daily caps in EUR per effective tier. Paired tiers share a cap.
var dailyCaps = map[models.Subscription]float64{
	models.SubscriptionFreemium:    0.50,
	models.SubscriptionStarter:     5,
	models.SubscriptionPro:         5,
	models.SubscriptionGold:        15,
	models.SubscriptionVisionnaire: 15,
	models.SubscriptionElite:       30,
	models.SubscriptionAlpha:       30,
}

// Daily bot session quotas per effective tier.
var sessionQuotas = map[models.Subscription]int{
	models.SubscriptionFreemium:    1,
	models.SubscriptionStarter:     2,
	models.SubscriptionPro:         2,
	models.SubscriptionGold:        4,
	models.SubscriptionVisionnaire: 4,
	models.SubscriptionElite:       6,
	models.SubscriptionAlpha:       6,
}

// DailyCap returns the daily earning cap for a tier. Unknown tiers fall back
// to the freemium cap.
func DailyCap(sub models.Subscription) float64 {
	if cap, ok := dailyCaps[sub]; ok {
		return cap
	}
	return dailyCaps[models.SubscriptionFreemium]
}

// SessionQuota returns the number of bot sessions a tier may start per day.
func SessionQuota(sub models.Subscription) int {
	if q, ok := sessionQuotas[sub]; ok {
		return q
	}
	return sessionQuotas[models.SubscriptionFreemium]
}

// Evaluate computes the limit state for a tier and gains figure.
// reachedThreshold and approachingThreshold are fractions of the cap
// (e.g. 0.90 and 0.80). Pure: same inputs, same output.
func Evaluate(sub models.Subscription, dailyGains, reachedThreshold, approachingThreshold float64) models.DailyLimitState {
	gains := validation.SanitizeAmount(dailyGains)
	limit := DailyCap(sub)

	percentage := gains / limit * 100
	if percentage > 100 {
		percentage = 100
	}

	return models.DailyLimitState{
		Subscription: sub,
		DailyGains:   gains,
		Limit:        limit,
		Percentage:   percentage,
		Reached:      percentage >= reachedThreshold*100,
		Approaching:  percentage >= approachingThreshold*100,
	}
}
