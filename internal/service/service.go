// Package service owns the live state of every wheel: it loads slice sets
// and history from the store, serializes edits and spins per wheel, persists
// the results and publishes events.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/engine"
	"github.com/MJE43/fortune-wheel-go/internal/events"
	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/store"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// ErrWheelNotFound is returned for unknown wheel ids.
var ErrWheelNotFound = errors.New("wheel not found")

// Options tunes spins for every wheel the service manages.
type Options struct {
	// Seed, when set, gives each wheel a reproducible random stream keyed by
	// its id. Streams restart from the beginning when the process restarts.
	Seed           string
	Selector       wheel.SelectorConfig
	ExtraRotations int
	BorderRatio    float64
	Duration       time.Duration
}

// DefaultOptions returns the reference spin settings.
func DefaultOptions() Options {
	return Options{
		Selector:       wheel.DefaultSelectorConfig(),
		ExtraRotations: wheel.DefaultExtraRotations,
		BorderRatio:    wheel.DefaultBorderRatio,
		Duration:       wheel.DefaultSpinDuration,
	}
}

// WheelView is a wheel with its current slices.
type WheelView struct {
	store.Wheel
	Slices     []wheel.Slice `json:"slices"`
	Total      int           `json:"total"`
	TotalSpins int           `json:"total_spins"`
}

type runtime struct {
	mu       sync.Mutex
	loaded   bool
	meta     store.Wheel
	set      *wheel.SliceSet
	selector *wheel.Selector
	geometry *wheel.Geometry
}

// WheelService is safe for concurrent use. Work on one wheel is serialized;
// different wheels proceed independently.
type WheelService struct {
	db     store.DB
	opts   Options
	log    *slog.Logger
	events events.Emitter

	mu       sync.Mutex
	runtimes map[uuid.UUID]*runtime
}

// New builds a service. A nil emitter discards events.
func New(db store.DB, opts Options, log *slog.Logger, emitter events.Emitter) *WheelService {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &WheelService{
		db:       db,
		opts:     opts,
		log:      log,
		events:   emitter,
		runtimes: make(map[uuid.UUID]*runtime),
	}
}

// acquire returns the wheel's runtime locked and loaded. Callers must
// unlock rt.mu.
func (s *WheelService) acquire(ctx context.Context, id uuid.UUID) (*runtime, error) {
	s.mu.Lock()
	rt, ok := s.runtimes[id]
	if !ok {
		rt = &runtime{}
		s.runtimes[id] = rt
	}
	s.mu.Unlock()

	rt.mu.Lock()
	if rt.loaded {
		return rt, nil
	}
	if err := s.load(ctx, id, rt); err != nil {
		rt.mu.Unlock()
		if errors.Is(err, ErrWheelNotFound) {
			s.forget(id, rt)
		}
		return nil, err
	}
	return rt, nil
}

func (s *WheelService) forget(id uuid.UUID, rt *runtime) {
	s.mu.Lock()
	if s.runtimes[id] == rt {
		delete(s.runtimes, id)
	}
	s.mu.Unlock()
}

// load reads and re-validates persisted state. Nothing is cached on failure.
func (s *WheelService) load(ctx context.Context, id uuid.UUID, rt *runtime) error {
	const op = "service.load"

	meta, err := s.db.GetWheel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrWheelNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	slices, err := s.db.LoadSlices(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	set, err := wheel.FromSlices(slices)
	if err != nil {
		s.log.Error("persisted slices rejected", sl.String("op", op), sl.String("wheel_id", id.String()), sl.Err(err))
		return err
	}

	history, err := s.db.LoadHistory(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	selector := wheel.NewSelector(s.source("select", id), s.opts.Selector)
	if err := selector.RestoreHistory(history); err != nil {
		s.log.Error("persisted history rejected", sl.String("op", op), sl.String("wheel_id", id.String()), sl.Err(err))
		return err
	}
	ids := make([]uuid.UUID, 0, set.Len())
	for _, slice := range set.Slices() {
		ids = append(ids, slice.ID)
	}
	selector.Prune(ids)

	geometry := wheel.NewGeometry(s.source("geometry", id))
	if s.opts.ExtraRotations > 0 {
		geometry.ExtraRotations = s.opts.ExtraRotations
	}
	// Zero is a valid ratio: targets may land anywhere in the sector.
	geometry.BorderRatio = s.opts.BorderRatio
	if s.opts.Duration > 0 {
		geometry.Duration = s.opts.Duration
	}

	rt.meta = *meta
	rt.set = set
	rt.selector = selector
	rt.geometry = geometry
	rt.loaded = true
	return nil
}

func (s *WheelService) source(purpose string, id uuid.UUID) engine.Source {
	return engine.NewSource(s.opts.Seed, purpose+":"+id.String())
}

func (rt *runtime) view() *WheelView {
	return &WheelView{
		Wheel:      rt.meta,
		Slices:     rt.set.Slices(),
		Total:      rt.set.Total(),
		TotalSpins: rt.selector.History().TotalSpins,
	}
}

// CreateWheel stores a new wheel. withDefaults seeds it with two 50/50
// slices.
func (s *WheelService) CreateWheel(ctx context.Context, name string, withDefaults bool) (*WheelView, error) {
	const op = "service.CreateWheel"

	w := &store.Wheel{Name: name}
	if err := s.db.CreateWheel(ctx, w); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if withDefaults {
		set := wheel.NewSliceSet()
		for _, d := range []struct{ label, color string }{
			{"Prize 1", "#FF3B30"},
			{"Prize 2", "#34C759"},
		} {
			if _, err := set.AddWithRate(d.label, d.color, 50); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		if err := s.db.SaveSlices(ctx, w.ID, set.Slices()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("wheel created", sl.String("op", op), sl.String("wheel_id", w.ID.String()), sl.String("name", name))
	return s.GetWheel(ctx, w.ID)
}

// ListWheels returns every stored wheel without slices.
func (s *WheelService) ListWheels(ctx context.Context) ([]store.Wheel, error) {
	wheels, err := s.db.ListWheels(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.ListWheels: %w", err)
	}
	return wheels, nil
}

// GetWheel returns the wheel with its slices.
func (s *WheelService) GetWheel(ctx context.Context, id uuid.UUID) (*WheelView, error) {
	rt, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rt.mu.Unlock()
	return rt.view(), nil
}

// DeleteWheel removes the wheel and everything recorded for it.
func (s *WheelService) DeleteWheel(ctx context.Context, id uuid.UUID) error {
	const op = "service.DeleteWheel"

	s.mu.Lock()
	rt := s.runtimes[id]
	s.mu.Unlock()
	if rt != nil {
		rt.mu.Lock()
		defer rt.mu.Unlock()
	}

	err := s.db.DeleteWheel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrWheelNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rt != nil {
		rt.loaded = false
		s.forget(id, rt)
	}
	s.events.Emit(id.String(), events.EventDelete, map[string]string{"wheel_id": id.String()})
	s.log.Info("wheel deleted", sl.String("op", op), sl.String("wheel_id", id.String()))
	return nil
}
