package qualification

// Stats aggregates the raw collection for dashboards and the assistant
// context.
type Stats struct {
	Total            int                `json:"total"`
	Unregistered     int                `json:"unregistered"`
	ByMarket         map[string]int     `json:"by_market"`
	AmountByCurrency map[string]float64 `json:"amount_by_currency"`
}

// ComputeStats derives aggregates over records.
func ComputeStats(records []Record) Stats {
	stats := Stats{
		Total:            len(records),
		ByMarket:         make(map[string]int),
		AmountByCurrency: make(map[string]float64),
	}
	for _, r := range records {
		if r.Unregistered {
			stats.Unregistered++
		}
		stats.ByMarket[r.Market]++
		stats.AmountByCurrency[r.Amount.Currency] += r.Amount.Value
	}
	return stats
}
