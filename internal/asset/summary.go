package asset

// Summary aggregates values across assets.
type Summary struct {
	TotalValue float64            `json:"total_value"`
	ByType     map[string]float64 `json:"by_type"`
	ByCurrency map[string]float64 `json:"by_currency"`
	Count      int                `json:"asset_count"`
}

// Summarize totals the given assets. Values in different currencies are
// added without conversion.
func Summarize(assets []*Asset) Summary {
	s := Summary{
		ByType:     make(map[string]float64),
		ByCurrency: make(map[string]float64),
		Count:      len(assets),
	}
	for _, a := range assets {
		s.TotalValue += a.Value
		s.ByType[string(a.Type)] += a.Value
		s.ByCurrency[string(a.Currency)] += a.Value
	}
	return s
}
