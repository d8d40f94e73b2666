// Package store persists wheels, their slices, spin history and the spin log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// ErrNotFound is returned when a wheel does not exist.
var ErrNotFound = errors.New("store: not found")

// DB is the persistence collaborator. Slices are stored and returned in
// position order; loaded data is not validated here.
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)

	CreateWheel(ctx context.Context, w *Wheel) error
	GetWheel(ctx context.Context, id uuid.UUID) (*Wheel, error)
	ListWheels(ctx context.Context) ([]Wheel, error)
	DeleteWheel(ctx context.Context, id uuid.UUID) error

	LoadSlices(ctx context.Context, wheelID uuid.UUID) ([]wheel.Slice, error)
	SaveSlices(ctx context.Context, wheelID uuid.UUID, slices []wheel.Slice) error
	// ReplaceSlices saves slices and, if resetHistory is set, clears the
	// history atomically. Nothing is written on error.
	ReplaceSlices(ctx context.Context, wheelID uuid.UUID, slices []wheel.Slice, resetHistory bool) error

	LoadHistory(ctx context.Context, wheelID uuid.UUID) (wheel.History, error)
	SaveHistory(ctx context.Context, wheelID uuid.UUID, h wheel.History) error

	SaveSpin(ctx context.Context, spin *Spin) error
	// CommitSpin saves h and appends spin atomically.
	CommitSpin(ctx context.Context, spin *Spin, h wheel.History) error
	ListSpins(ctx context.Context, query SpinsQuery) (*SpinsPage, error)
	// EachSpin calls fn for every spin of a wheel, oldest first, stopping at
	// the first error.
	EachSpin(ctx context.Context, wheelID uuid.UUID, fn func(Spin) error) error
}

var (
	_ DB = (*SQLiteDB)(nil)
	_ DB = (*PostgresDB)(nil)
)

// Wheel is a named slice set.
type Wheel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Spin is one committed spin.
type Spin struct {
	ID            int64     `json:"id" db:"id"`
	WheelID       uuid.UUID `json:"wheel_id" db:"wheel_id"`
	SliceID       uuid.UUID `json:"slice_id" db:"slice_id"`
	SliceIndex    int       `json:"slice_index" db:"slice_index"`
	Label         string    `json:"label" db:"label"`
	TargetAngle   float64   `json:"target_angle" db:"target_angle"`
	TotalRotation float64   `json:"total_rotation" db:"total_rotation"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// SpinsQuery selects a page of a wheel's spin log.
type SpinsQuery struct {
	WheelID uuid.UUID `json:"wheel_id"`
	Page    int       `json:"page"`
	PerPage int       `json:"perPage"`
}

// SpinsPage is a paginated spin log, newest first.
type SpinsPage struct {
	Spins      []Spin `json:"spins"`
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalPages int    `json:"totalPages"`
}

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// normalize fills in paging defaults and returns the row offset.
func (q *SpinsQuery) normalize() int {
	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return (q.Page - 1) * q.PerPage
}

func totalPages(count, perPage int) int {
	return (count + perPage - 1) / perPage
}
