package wheel

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SliceStats compares a slice's nominal share with what it actually won.
// Shares are percentages rounded to two places.
type SliceStats struct {
	ID        uuid.UUID       `json:"id"`
	Label     string          `json:"label"`
	DropRate  int             `json:"drop_rate"`
	Wins      int             `json:"wins"`
	Nominal   decimal.Decimal `json:"nominal"`
	Observed  decimal.Decimal `json:"observed"`
	Deviation decimal.Decimal `json:"deviation"`
}

var hundred = decimal.NewFromInt(100)

// Report builds per-slice stats in set order. Wins recorded for ids no
// longer in the set are excluded from the denominator.
func Report(set *SliceSet, h History) []SliceStats {
	counted := 0
	for _, sl := range set.slices {
		counted += h.WinsFor(sl.ID)
	}

	out := make([]SliceStats, 0, set.Len())
	for _, sl := range set.slices {
		wins := h.WinsFor(sl.ID)
		nominal := decimal.NewFromInt(int64(sl.DropRate)).Round(2)
		observed := decimal.Zero
		if counted > 0 {
			observed = decimal.NewFromInt(int64(wins)).
				Mul(hundred).
				Div(decimal.NewFromInt(int64(counted))).
				Round(2)
		}
		out = append(out, SliceStats{
			ID:        sl.ID,
			Label:     sl.Label,
			DropRate:  sl.DropRate,
			Wins:      wins,
			Nominal:   nominal,
			Observed:  observed,
			Deviation: observed.Sub(nominal),
		})
	}
	return out
}
