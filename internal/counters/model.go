package counters

import "github.com/lucrumlabs/lucrum/internal/models"

// HourlyAdThroughput is the aggregate simulated ads-per-hour over every
// location: sum of botCount * efficiency * adsPerHourPerBot.
func HourlyAdThroughput(doc models.RatesDocument) float64 {
	total := 0.0
	for _, loc := range doc.Locations {
		total += float64(loc.BotCount) * loc.Efficiency * loc.AdsPerHourPerBot
	}
	return total
}

// HourlyRevenue is the aggregate simulated revenue-per-hour: each location's
// throughput split across its ad-type distribution, valued at the midpoint of
// the type's payout range.
func HourlyRevenue(doc models.RatesDocument) float64 {
	total := 0.0
	for _, loc := range doc.Locations {
		ads := float64(loc.BotCount) * loc.Efficiency * loc.AdsPerHourPerBot
		for adType, share := range loc.Distribution {
			rng, ok := doc.Values[adType]
			if !ok {
				continue
			}
			total += ads * share * (rng.Min + rng.Max) / 2
		}
	}
	return total
}

// progressFactor scales the seeded floors by product age: 1.0 on day zero,
// growing linearly to the 1.8 cap at 200 days.
func progressFactor(daysSinceFirstUse float64) float64 {
	if daysSinceFirstUse < 0 {
		daysSinceFirstUse = 0
	}
	p := daysSinceFirstUse / 200
	if p > 1 {
		p = 1
	}
	return 1 + 0.8*p
}
