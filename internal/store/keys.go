package store

import (
	"strings"

	"github.com/lucrumlabs/lucrum/internal/models"
)

// Cache key fields. Every copy is user-scoped: the primary key is
// "<field>_<userID>" and the compatibility duplicate written for data laid
// down by earlier versions is "legacy_<field>_<userID>". Reads always take
// the max across every copy. The stores are shared by every user of the
// process, so no balance copy may ever live under a bare field name.
const (
	FieldCurrentBalance = "currentBalance"
	FieldHighestBalance = "highestBalance"
	FieldDailyGains     = "dailyGains"
	FieldLastUpdate     = "lastBalanceUpdate"

	KeyAdsCount       = "adsCount"
	KeyRevenueCount   = "revenueCount"
	KeyAdsBackup      = "adsCount_backup"
	KeyRevenueBackup  = "revenueCount_backup"
	KeyAdsDisplayed   = "lastDisplayedAds"
	KeyRevDisplayed   = "lastDisplayedRevenue"
	KeyStorageDate    = "statsStorageDate"
	KeyFirstUseDate   = "firstUseDate"
	KeyLastResetDate  = "lastResetDate"
	KeyTrialActivated = "trialActivatedAt"
	KeyTrialExpires   = "trialExpiresAt"
	KeyTrialConsumed  = "trialConsumed"
	KeyLimitNotified  = "limitNotifiedDate"
)

// LegacyPrefix marks the redundant compatibility copy of a balance field.
const LegacyPrefix = "legacy_"

// Key builds the user-scoped form of a cache field.
func Key(field, userID string) string {
	if userID == "" {
		return field
	}
	return field + "_" + userID
}

// BalanceKeys returns every redundant copy of a balance field for a user:
// the scoped key plus the scoped legacy duplicate.
func BalanceKeys(field, userID string) []string {
	k := Key(field, userID)
	return []string{k, LegacyPrefix + k}
}

// MatchesField reports whether key is one of the copies of field, for any
// user, including stale unscoped keys written by earlier versions.
func MatchesField(key, field string) bool {
	key = strings.TrimPrefix(key, LegacyPrefix)
	return key == field || strings.HasPrefix(key, field+"_")
}

// MaxAcross reads a float from every given key of every given store and
// returns the maximum. Missing or unparsable values count as 0, so the result
// is never negative and a corrupted copy can never drag the figure down.
func MaxAcross(stores []models.KeyValueStore, keys ...string) float64 {
	max := 0.0
	for _, s := range stores {
		if s == nil {
			continue
		}
		for _, k := range keys {
			if v := s.GetFloat(k); v > max {
				max = v
			}
		}
	}
	return max
}

// WriteAll writes value under every given key in every given store.
func WriteAll(stores []models.KeyValueStore, value float64, keys ...string) {
	for _, s := range stores {
		if s == nil {
			continue
		}
		for _, k := range keys {
			s.SetFloat(k, value)
		}
	}
}
