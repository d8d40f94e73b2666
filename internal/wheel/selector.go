package wheel

import (
	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/engine"
)

// DefaultCorrectionStrength is how many weight points one win of deviation
// moves a slice.
const DefaultCorrectionStrength = 100.0

// SelectorConfig tunes adaptive weighting.
type SelectorConfig struct {
	CorrectionStrength float64
	DecayCeiling       int
}

// DefaultSelectorConfig returns the reference tuning.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		CorrectionStrength: DefaultCorrectionStrength,
		DecayCeiling:       DefaultDecayCeiling,
	}
}

// Selector picks winners by nominal rate, nudged toward the nominal
// distribution by how far each slice's recent wins drift from expectation.
// It owns its History. Callers serialize access per wheel.
type Selector struct {
	src     engine.Source
	cfg     SelectorConfig
	history History
}

// NewSelector builds a selector drawing from src. Zero config fields fall
// back to the defaults.
func NewSelector(src engine.Source, cfg SelectorConfig) *Selector {
	if cfg.CorrectionStrength <= 0 {
		cfg.CorrectionStrength = DefaultCorrectionStrength
	}
	if cfg.DecayCeiling <= 0 {
		cfg.DecayCeiling = DefaultDecayCeiling
	}
	return &Selector{src: src, cfg: cfg, history: NewHistory()}
}

// Weights returns the adjusted weight of every slice given the current
// history. Zero-rate slices weigh 0; every other slice weighs at least 1.
func (s *Selector) Weights(set *SliceSet) []float64 {
	total := float64(s.history.TotalSpins)
	weights := make([]float64, set.Len())
	for i, sl := range set.slices {
		if sl.DropRate <= 0 {
			continue
		}
		expected := total * float64(sl.DropRate) / TotalRate
		diff := float64(s.history.WinsFor(sl.ID)) - expected
		w := float64(sl.DropRate) - diff*s.cfg.CorrectionStrength
		if w < 1 {
			w = 1
		}
		weights[i] = w
	}
	return weights
}

// Select draws a winner, records it in the history and returns its index.
func (s *Selector) Select(set *SliceSet) (int, error) {
	const op = "select"

	if set.Len() == 0 {
		return 0, newError(KindEmptySliceSet, op, "no slices")
	}

	if total := set.Total(); total != TotalRate {
		return 0, newError(KindCorruptPersistedState, op, "rates total %d, want %d", total, TotalRate)
	}

	weights := s.Weights(set)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0, newError(KindUnselectableSet, op, "no slice has positive weight")
	}

	r := s.src.Float64() * sum
	winner := pick(weights, r)
	s.history.record(set.slices[winner].ID, s.cfg.DecayCeiling)
	return winner, nil
}

// pick walks the positive weights and returns the first index whose
// cumulative weight exceeds r, or the last positive index when rounding
// leaves r unreached. weights must hold at least one positive entry.
func pick(weights []float64, r float64) int {
	cumulative := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		cumulative += w
		if r < cumulative {
			return i
		}
	}
	return last
}

// ResetHistory clears every counter.
func (s *Selector) ResetHistory() {
	s.history = NewHistory()
}

// History returns a copy of the current history.
func (s *Selector) History() History {
	return s.history.Clone()
}

// RestoreHistory replaces the history with a persisted one after validating it.
func (s *Selector) RestoreHistory(h History) error {
	if err := h.Validate(); err != nil {
		return err
	}
	s.history = h.Clone()
	return nil
}

// Prune drops counters for ids not in keep. TotalSpins follows.
func (s *Selector) Prune(keep []uuid.UUID) {
	set := make(map[uuid.UUID]struct{}, len(keep))
	for _, id := range keep {
		set[id] = struct{}{}
	}
	total := 0
	for id, n := range s.history.Wins {
		if _, ok := set[id]; !ok {
			delete(s.history.Wins, id)
			continue
		}
		total += n
	}
	s.history.TotalSpins = total
}
