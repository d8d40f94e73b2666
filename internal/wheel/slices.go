// Package wheel implements the odds engine of a fortune wheel: the slice set
// and its total-of-100 invariant, adaptive winner selection, and the stop
// angle geometry.
package wheel

import (
	"strings"

	"github.com/google/uuid"
)

// TotalRate is the sum every committed slice set must reach.
const TotalRate = 100

// Slice is one wedge of the wheel.
type Slice struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	DropRate int       `json:"drop_rate"`
	Color    string    `json:"color"`
}

// SliceSet is an ordered list of slices. Every mutation except Delete on the
// last slice leaves the rates summing to exactly TotalRate.
//
// A SliceSet is not safe for concurrent use.
type SliceSet struct {
	slices []Slice
}

// NewSliceSet returns an empty set.
func NewSliceSet() *SliceSet {
	return &SliceSet{}
}

// FromSlices rebuilds a set handed over by persistence. The input is
// re-validated and never coerced: a non-empty set that does not total
// TotalRate, or that holds out-of-range rates, missing ids or blank labels,
// fails with KindCorruptPersistedState.
func FromSlices(slices []Slice) (*SliceSet, error) {
	const op = "load"

	seen := make(map[uuid.UUID]struct{}, len(slices))
	total := 0
	for i, sl := range slices {
		if sl.ID == uuid.Nil {
			return nil, newError(KindCorruptPersistedState, op, "slice %d has no id", i)
		}
		if _, dup := seen[sl.ID]; dup {
			return nil, newError(KindCorruptPersistedState, op, "slice %d repeats id %s", i, sl.ID)
		}
		seen[sl.ID] = struct{}{}
		if sl.DropRate < 0 || sl.DropRate > TotalRate {
			return nil, newError(KindCorruptPersistedState, op, "slice %d has rate %d", i, sl.DropRate)
		}
		if strings.TrimSpace(sl.Label) == "" {
			return nil, newError(KindCorruptPersistedState, op, "slice %d has a blank label", i)
		}
		total += sl.DropRate
	}
	if len(slices) > 0 && total != TotalRate {
		return nil, newError(KindCorruptPersistedState, op, "rates total %d, want %d", total, TotalRate)
	}

	out := make([]Slice, len(slices))
	copy(out, slices)
	return &SliceSet{slices: out}, nil
}

// Len returns the number of slices.
func (s *SliceSet) Len() int { return len(s.slices) }

// Slices returns a copy of the slices in order.
func (s *SliceSet) Slices() []Slice {
	out := make([]Slice, len(s.slices))
	copy(out, s.slices)
	return out
}

// Rates returns the drop rates in order.
func (s *SliceSet) Rates() []int {
	out := make([]int, len(s.slices))
	for i, sl := range s.slices {
		out[i] = sl.DropRate
	}
	return out
}

// At returns the slice at index.
func (s *SliceSet) At(index int) (Slice, error) {
	if err := s.checkIndex("at", index); err != nil {
		return Slice{}, err
	}
	return s.slices[index], nil
}

// IndexOf returns the position of the slice with id, or -1.
func (s *SliceSet) IndexOf(id uuid.UUID) int {
	for i, sl := range s.slices {
		if sl.ID == id {
			return i
		}
	}
	return -1
}

// Total returns the current sum of drop rates.
func (s *SliceSet) Total() int {
	total := 0
	for _, sl := range s.slices {
		total += sl.DropRate
	}
	return total
}

// Clone returns an independent copy, used as the scratch copy of a bulk edit.
func (s *SliceSet) Clone() *SliceSet {
	return &SliceSet{slices: s.Slices()}
}

// ValidateTotal reports whether the rates total exactly TotalRate.
func (s *SliceSet) ValidateTotal() error {
	if total := s.Total(); total != TotalRate {
		return newError(KindInvalidRateTotal, "validate", "rates total %d, want %d", total, TotalRate)
	}
	return nil
}

// Add appends a slice that takes whatever budget is left (TotalRate minus the
// current total, never below zero). Existing slices are not touched.
func (s *SliceSet) Add(label, color string) (Slice, error) {
	label, err := cleanLabel("add", label)
	if err != nil {
		return Slice{}, err
	}

	rate := clampRate(TotalRate - s.Total())
	sl := Slice{ID: uuid.New(), Label: label, DropRate: rate, Color: color}
	s.slices = append(s.slices, sl)
	return sl, nil
}

// AddWithRate appends a slice holding rate and redistributes the rest of the
// budget over the existing slices exactly as SetRate does. The first slice of
// a set always holds TotalRate.
func (s *SliceSet) AddWithRate(label, color string, rate int) (Slice, error) {
	label, err := cleanLabel("add", label)
	if err != nil {
		return Slice{}, err
	}

	s.slices = append(s.slices, Slice{ID: uuid.New(), Label: label, Color: color})
	idx := len(s.slices) - 1
	if idx == 0 {
		s.slices[0].DropRate = TotalRate
	} else {
		s.redistributeAround(idx, clampRate(rate))
	}
	return s.slices[idx], nil
}

// SetRate pins the slice at index to value (clamped to [0, TotalRate]) and
// spreads the remaining pool over the other slices in proportion to their
// previous rates. Rounding dust goes to the first other slice. A lone slice
// is forced to TotalRate.
func (s *SliceSet) SetRate(index, value int) error {
	if err := s.checkIndex("set rate", index); err != nil {
		return err
	}
	if len(s.slices) == 1 {
		s.slices[0].DropRate = TotalRate
		return nil
	}
	s.redistributeAround(index, clampRate(value))
	return nil
}

// Delete removes the slice at index and spreads the full TotalRate over the
// remaining slices in proportion to their rates. Removing the last slice
// returns the removed slice together with KindEmptySliceSet.
func (s *SliceSet) Delete(index int) (Slice, error) {
	if err := s.checkIndex("delete", index); err != nil {
		return Slice{}, err
	}

	removed := s.slices[index]
	s.slices = append(s.slices[:index:index], s.slices[index+1:]...)
	if len(s.slices) == 0 {
		return removed, newError(KindEmptySliceSet, "delete", "no slices left")
	}
	s.redistributeAll()
	return removed, nil
}

// Equalize gives every slice floor(TotalRate/n) and the leftover to the first.
func (s *SliceSet) Equalize() error {
	n := len(s.slices)
	if n == 0 {
		return newError(KindEmptySliceSet, "equalize", "no slices")
	}
	base := TotalRate / n
	for i := range s.slices {
		s.slices[i].DropRate = base
	}
	s.slices[0].DropRate += TotalRate - base*n
	return nil
}

// Rename changes a slice label. Rates are untouched.
func (s *SliceSet) Rename(index int, label string) error {
	if err := s.checkIndex("rename", index); err != nil {
		return err
	}
	label, err := cleanLabel("rename", label)
	if err != nil {
		return err
	}
	s.slices[index].Label = label
	return nil
}

// Recolor changes a slice color. Rates are untouched.
func (s *SliceSet) Recolor(index int, color string) error {
	if err := s.checkIndex("recolor", index); err != nil {
		return err
	}
	s.slices[index].Color = color
	return nil
}

// Replace commits a bulk edit. The candidate must be non-empty, hold rates in
// [0, TotalRate] and non-blank labels, and total exactly TotalRate; otherwise
// the set is left unchanged. Slices without an id get a fresh one.
func (s *SliceSet) Replace(candidate []Slice) error {
	const op = "commit"

	if len(candidate) == 0 {
		return newError(KindEmptySliceSet, op, "no slices")
	}

	next := make([]Slice, len(candidate))
	seen := make(map[uuid.UUID]struct{}, len(candidate))
	total := 0
	for i, sl := range candidate {
		label, err := cleanLabel(op, sl.Label)
		if err != nil {
			return err
		}
		if sl.DropRate < 0 || sl.DropRate > TotalRate {
			return newError(KindInvalidSlice, op, "slice %d rate %d outside [0, %d]", i, sl.DropRate, TotalRate)
		}
		if sl.ID == uuid.Nil {
			sl.ID = uuid.New()
		}
		if _, dup := seen[sl.ID]; dup {
			return newError(KindInvalidSlice, op, "slice %d repeats id %s", i, sl.ID)
		}
		seen[sl.ID] = struct{}{}
		sl.Label = label
		total += sl.DropRate
		next[i] = sl
	}
	if total != TotalRate {
		return newError(KindInvalidRateTotal, op, "rates total %d, want %d", total, TotalRate)
	}

	s.slices = next
	return nil
}

func (s *SliceSet) redistributeAround(changed, value int) {
	remaining := TotalRate - value

	otherTotal := 0
	for i, sl := range s.slices {
		if i != changed {
			otherTotal += sl.DropRate
		}
	}
	otherCount := len(s.slices) - 1

	s.slices[changed].DropRate = value

	distributed := 0
	for i := range s.slices {
		if i == changed {
			continue
		}
		var rate int
		if otherTotal > 0 {
			rate = remaining * s.slices[i].DropRate / otherTotal
		} else {
			rate = remaining / otherCount
		}
		s.slices[i].DropRate = rate
		distributed += rate
	}

	if dust := remaining - distributed; dust != 0 {
		fix := 0
		if fix == changed {
			fix = 1
		}
		s.slices[fix].DropRate += dust
	}
}

func (s *SliceSet) redistributeAll() {
	n := len(s.slices)
	if n == 1 {
		s.slices[0].DropRate = TotalRate
		return
	}

	total := s.Total()
	distributed := 0
	for i := range s.slices {
		var rate int
		if total > 0 {
			rate = TotalRate * s.slices[i].DropRate / total
		} else {
			rate = TotalRate / n
		}
		s.slices[i].DropRate = rate
		distributed += rate
	}
	s.slices[0].DropRate += TotalRate - distributed
}

func (s *SliceSet) checkIndex(op string, index int) error {
	if index < 0 || index >= len(s.slices) {
		return newError(KindInvalidIndex, op, "index %d outside [0, %d)", index, len(s.slices))
	}
	return nil
}

func cleanLabel(op, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", newError(KindInvalidSlice, op, "label is blank")
	}
	return label, nil
}

func clampRate(v int) int {
	if v < 0 {
		return 0
	}
	if v > TotalRate {
		return TotalRate
	}
	return v
}
