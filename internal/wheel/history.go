package wheel

import "github.com/google/uuid"

// DefaultDecayCeiling is the spin count at which history is halved.
const DefaultDecayCeiling = 100

// History holds win counts keyed by slice id.
// Invariant: the counts sum to TotalSpins.
type History struct {
	Wins       map[uuid.UUID]int `json:"wins"`
	TotalSpins int               `json:"total_spins"`
}

// NewHistory returns an empty history.
func NewHistory() History {
	return History{Wins: make(map[uuid.UUID]int)}
}

// WinsFor returns the recorded wins for id.
func (h History) WinsFor(id uuid.UUID) int {
	return h.Wins[id]
}

// Clone returns a deep copy.
func (h History) Clone() History {
	out := History{Wins: make(map[uuid.UUID]int, len(h.Wins)), TotalSpins: h.TotalSpins}
	for id, n := range h.Wins {
		out.Wins[id] = n
	}
	return out
}

// Validate checks a history handed over by persistence.
func (h History) Validate() error {
	sum := 0
	for id, n := range h.Wins {
		if n < 0 {
			return newError(KindCorruptPersistedState, "load history", "slice %s has %d wins", id, n)
		}
		sum += n
	}
	if h.TotalSpins < 0 || sum != h.TotalSpins {
		return newError(KindCorruptPersistedState, "load history", "wins sum to %d, total spins %d", sum, h.TotalSpins)
	}
	return nil
}

// record counts a win for id and decays once TotalSpins reaches ceiling.
// Decay halves every counter and sets TotalSpins to their sum, which is
// TotalSpins/2 when the counters are even and stays exact when they are not.
func (h *History) record(id uuid.UUID, ceiling int) {
	if h.Wins == nil {
		h.Wins = make(map[uuid.UUID]int)
	}
	h.Wins[id]++
	h.TotalSpins++

	if ceiling <= 0 || h.TotalSpins < ceiling {
		return
	}
	total := 0
	for k, n := range h.Wins {
		n /= 2
		if n == 0 {
			delete(h.Wins, k)
			continue
		}
		h.Wins[k] = n
		total += n
	}
	h.TotalSpins = total
}
