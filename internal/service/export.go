package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/store"
)

var csvHeader = []string{"id", "created_at", "slice_index", "slice_id", "label", "target_angle", "total_rotation"}

// ListSpins returns one page of the wheel's spin log, newest first.
func (s *WheelService) ListSpins(ctx context.Context, id uuid.UUID, page, perPage int) (*store.SpinsPage, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	res, err := s.db.ListSpins(ctx, store.SpinsQuery{WheelID: id, Page: page, PerPage: perPage})
	if err != nil {
		return nil, fmt.Errorf("service.ListSpins: %w", err)
	}
	return res, nil
}

// ExportCSV writes the wheel's whole spin log to w, oldest first, with a
// header row. Labels are quoted as needed.
func (s *WheelService) ExportCSV(ctx context.Context, id uuid.UUID, w io.Writer) error {
	const op = "service.ExportCSV"

	if err := s.exists(ctx, id); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.db.EachSpin(ctx, id, func(sp store.Spin) error {
		return cw.Write([]string{
			strconv.FormatInt(sp.ID, 10),
			sp.CreatedAt.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(sp.SliceIndex),
			sp.SliceID.String(),
			sp.Label,
			strconv.FormatFloat(sp.TargetAngle, 'f', 6, 64),
			strconv.FormatFloat(sp.TotalRotation, 'f', 6, 64),
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *WheelService) exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.GetWheel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrWheelNotFound, id)
	}
	return err
}
