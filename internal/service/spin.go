package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/events"
	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/store"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// SpinResult is a committed spin.
type SpinResult struct {
	SpinID     int64          `json:"spin_id"`
	WheelID    uuid.UUID      `json:"wheel_id"`
	Index      int            `json:"index"`
	Slice      wheel.Slice    `json:"slice"`
	Rotation   wheel.Rotation `json:"rotation"`
	DurationMS int64          `json:"duration_ms"`
	Message    string         `json:"message"`
	TotalSpins int            `json:"total_spins"`
}

// Spin picks a winner, computes where the wheel stops from currentAngle and
// records the result. History and the spin log are written together; on a
// storage failure the draw is discarded and history is left as it was.
func (s *WheelService) Spin(ctx context.Context, id uuid.UUID, currentAngle float64) (*SpinResult, error) {
	const op = "service.Spin"

	rt, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rt.mu.Unlock()

	log := s.log.With(sl.String("op", op), sl.String("wheel_id", id.String()))

	// Geometry needs two sectors; refuse before a win is recorded.
	if n := rt.set.Len(); n == 1 {
		return nil, &wheel.Error{Kind: wheel.KindInsufficientSlices, Op: "spin", Msg: "need at least 2 slices, have 1"}
	}

	before := rt.selector.History()
	rollback := func() {
		if err := rt.selector.RestoreHistory(before); err != nil {
			log.Error("failed to roll back history", sl.Err(err))
		}
	}

	index, err := rt.selector.Select(rt.set)
	if err != nil {
		log.Warn("spin refused", sl.Err(err))
		return nil, err
	}
	winner, err := rt.set.At(index)
	if err != nil {
		rollback()
		return nil, err
	}

	rot, err := rt.geometry.ComputeTargetRotation(currentAngle, index, rt.set.Len())
	if err != nil {
		rollback()
		return nil, err
	}
	if landed, err := wheel.SectorAt(rot.TargetAngle, rt.set.Len()); err != nil || landed != index {
		log.Error("rotation does not land on winner",
			sl.Int("index", index),
			sl.Int("landed", landed),
			sl.Any("target_angle", rot.TargetAngle),
		)
	}

	history := rt.selector.History()
	result := &SpinResult{
		WheelID:    id,
		Index:      index,
		Slice:      winner,
		Rotation:   rot,
		DurationMS: rot.Duration.Milliseconds(),
		Message:    fmt.Sprintf("You have won %s", winner.Label),
		TotalSpins: history.TotalSpins,
	}

	record := &store.Spin{
		WheelID:       id,
		SliceID:       winner.ID,
		SliceIndex:    index,
		Label:         winner.Label,
		TargetAngle:   rot.TargetAngle,
		TotalRotation: rot.TotalRotation,
	}
	if err := s.db.CommitSpin(ctx, record, history); err != nil {
		log.Error("failed to commit spin", sl.Err(err))
		rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.SpinID = record.ID

	s.events.Emit(id.String(), events.EventSpin, result)
	log.Info("spin committed",
		sl.Int("index", index),
		sl.String("label", winner.Label),
		sl.Int("total_spins", history.TotalSpins),
	)
	return result, nil
}

// ResetHistory clears the wheel's win counters.
func (s *WheelService) ResetHistory(ctx context.Context, id uuid.UUID) (*WheelView, error) {
	const op = "service.ResetHistory"

	rt, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rt.mu.Unlock()

	if err := s.db.SaveHistory(ctx, id, wheel.NewHistory()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rt.selector.ResetHistory()

	view := rt.view()
	s.events.Emit(id.String(), events.EventReset, view)
	return view, nil
}

// Stats is the odds report for one wheel.
type Stats struct {
	WheelID    uuid.UUID          `json:"wheel_id"`
	TotalSpins int                `json:"total_spins"`
	Slices     []wheel.SliceStats `json:"slices"`
	// Weights are the selector's current corrected weights, in slice order.
	Weights []float64 `json:"weights"`
}

// Stats compares nominal and observed shares.
func (s *WheelService) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	rt, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rt.mu.Unlock()

	history := rt.selector.History()
	return &Stats{
		WheelID:    id,
		TotalSpins: history.TotalSpins,
		Slices:     wheel.Report(rt.set, history),
		Weights:    rt.selector.Weights(rt.set),
	}, nil
}
