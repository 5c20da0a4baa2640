package validation

import (
	"fmt"
	"math"
	"regexp"

	"github.com/lucrumlabs/lucrum/internal/models"
)

var userIDRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// SanitizeAmount coerces a monetary figure to something displayable.
// NaN, infinities and negatives all become 0; every read site of the core goes
// through this so an invariant violation degrades instead of propagating.
func SanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateUserID checks the UUID shape the auth collaborator hands out.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if !userIDRE.MatchString(id) {
		return fmt.Errorf("invalid user id format: expected UUID, got %q", id)
	}
	return nil
}

// ValidateSubscription checks that the tier value is one of the known tiers.
func ValidateSubscription(s string) error {
	if !models.Subscription(s).Valid() {
		return fmt.Errorf("unknown subscription tier %q", s)
	}
	return nil
}
