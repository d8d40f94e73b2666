package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/events"
	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// NewSlice describes a slice to append. A nil Rate takes whatever is left
// of the 100 budget; an explicit Rate rebalances the others around it.
type NewSlice struct {
	Label string
	Color string
	Rate  *int
}

// SliceUpdate edits one slice. Nil fields are left unchanged.
type SliceUpdate struct {
	Label    *string
	Color    *string
	DropRate *int
}

// mutate applies fn to a copy of the wheel's set and persists it. The live
// set is replaced only after the store accepts the copy. resetHistory is set
// for changes that move rates.
func (s *WheelService) mutate(ctx context.Context, id uuid.UUID, op string, resetHistory bool, fn func(set *wheel.SliceSet) error) (*WheelView, error) {
	rt, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rt.mu.Unlock()

	draft := rt.set.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}

	if err := s.db.ReplaceSlices(ctx, id, draft.Slices(), resetHistory); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rt.set = draft
	if resetHistory {
		rt.selector.ResetHistory()
	}

	view := rt.view()
	s.events.Emit(id.String(), events.EventSlices, view)
	s.log.Debug("slices updated",
		sl.String("op", op),
		sl.String("wheel_id", id.String()),
		sl.Any("rates", draft.Rates()),
	)
	return view, nil
}

// AddSlice appends a slice to the wheel.
func (s *WheelService) AddSlice(ctx context.Context, id uuid.UUID, in NewSlice) (*WheelView, error) {
	return s.mutate(ctx, id, "service.AddSlice", true, func(set *wheel.SliceSet) error {
		if in.Rate == nil {
			_, err := set.Add(in.Label, in.Color)
			return err
		}
		_, err := set.AddWithRate(in.Label, in.Color, *in.Rate)
		return err
	})
}

// SetRate pins slice index to value and rebalances the rest.
func (s *WheelService) SetRate(ctx context.Context, id uuid.UUID, index, value int) (*WheelView, error) {
	return s.mutate(ctx, id, "service.SetRate", true, func(set *wheel.SliceSet) error {
		return set.SetRate(index, value)
	})
}

// UpdateSlice renames, recolors or re-rates one slice. History is reset only
// when the rate changes.
func (s *WheelService) UpdateSlice(ctx context.Context, id uuid.UUID, index int, upd SliceUpdate) (*WheelView, error) {
	return s.mutate(ctx, id, "service.UpdateSlice", upd.DropRate != nil, func(set *wheel.SliceSet) error {
		if upd.Label != nil {
			if err := set.Rename(index, *upd.Label); err != nil {
				return err
			}
		}
		if upd.Color != nil {
			if err := set.Recolor(index, *upd.Color); err != nil {
				return err
			}
		}
		if upd.DropRate != nil {
			return set.SetRate(index, *upd.DropRate)
		}
		return nil
	})
}

// DeleteSlice removes slice index. Removing the last slice leaves the wheel
// empty, which is accepted; spinning it then fails.
func (s *WheelService) DeleteSlice(ctx context.Context, id uuid.UUID, index int) (*WheelView, error) {
	return s.mutate(ctx, id, "service.DeleteSlice", true, func(set *wheel.SliceSet) error {
		_, err := set.Delete(index)
		if wheel.IsEmptySliceSet(err) {
			return nil
		}
		return err
	})
}

// Equalize spreads 100 evenly over the wheel's slices.
func (s *WheelService) Equalize(ctx context.Context, id uuid.UUID) (*WheelView, error) {
	return s.mutate(ctx, id, "service.Equalize", true, func(set *wheel.SliceSet) error {
		return set.Equalize()
	})
}

// CommitSlices replaces all slices at once. The candidate must total
// exactly 100; otherwise the wheel is left untouched.
func (s *WheelService) CommitSlices(ctx context.Context, id uuid.UUID, slices []wheel.Slice) (*WheelView, error) {
	return s.mutate(ctx, id, "service.CommitSlices", true, func(set *wheel.SliceSet) error {
		return set.Replace(slices)
	})
}
