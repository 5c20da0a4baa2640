package models

// VanityCounters are the two globally displayed "ads processed" and
// "revenue generated" figures. They are unrelated to any individual balance
// and must never visibly decrease.
type VanityCounters struct {
	// AdsCount is the total number of ads processed.
	AdsCount int64 `json:"ads_count"`
	// RevenueCount is the total revenue generated in EUR.
	RevenueCount float64 `json:"revenue_count"`
	// StorageDate is the calendar date the counters were last persisted.
	StorageDate string `json:"storage_date"`
}

// AdType is a simulated ad quality class.
type AdType string

const (
	AdTypePremium  AdType = "premium"
	AdTypeHigh     AdType = "high"
	AdTypeMedium   AdType = "medium"
	AdTypeStandard AdType = "standard"
)

// ValueRange is the payout interval in EUR for one ad of a given type.
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AdLocation is one simulated geographic traffic source. Each location runs a
// fixed fleet of bots with its own efficiency and ad-type mix.
type AdLocation struct {
	// Name is the display name of the location (city or region).
	Name string `json:"name"`
	// BotCount is the number of simulated bots running there.
	BotCount int `json:"bot_count"`
	// Efficiency scales the nominal throughput, 0..1.
	Efficiency float64 `json:"efficiency"`
	// AdsPerHourPerBot is the nominal per-bot hourly throughput.
	AdsPerHourPerBot float64 `json:"ads_per_hour_per_bot"`
	// Distribution maps ad types to their share of this location's traffic.
	// Shares are expected to sum to 1.
	Distribution map[AdType]float64 `json:"distribution"`
}

// RatesDocument is the remotely served ad-rates model consumed by the counter
// progression engine: per-type payout ranges plus the location roster.
type RatesDocument struct {
	// Values maps each ad type to its payout range.
	Values map[AdType]ValueRange `json:"values"`
	// Locations is the simulated traffic source roster.
	Locations []AdLocation `json:"locations"`
	// UpdatedAt is the Unix timestamp the document was generated.
	UpdatedAt int64 `json:"updated_at"`
}
