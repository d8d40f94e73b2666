package api

import (
	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

type createWheelRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	// Defaults seeds the wheel with two 50/50 slices. Absent means true.
	Defaults *bool `json:"defaults"`
}

type addSliceRequest struct {
	Label string `json:"label" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	// DropRate, when present, is pinned and the other slices rebalance.
	// Absent takes the budget left over.
	DropRate *int `json:"drop_rate" validate:"omitempty,gte=0,lte=100"`
}

type updateSliceRequest struct {
	Label    *string `json:"label" validate:"omitempty,min=1,max=100"`
	Color    *string `json:"color" validate:"omitempty,hexcolor"`
	DropRate *int    `json:"drop_rate" validate:"omitempty,gte=0,lte=100"`
}

type sliceInput struct {
	ID       string `json:"id" validate:"omitempty,uuid"`
	Label    string `json:"label" validate:"required,max=100"`
	DropRate int    `json:"drop_rate" validate:"gte=0,lte=100"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
}

type commitSlicesRequest struct {
	Slices []sliceInput `json:"slices" validate:"required,min=1,dive"`
}

func (req commitSlicesRequest) toSlices() []wheel.Slice {
	out := make([]wheel.Slice, len(req.Slices))
	for i, in := range req.Slices {
		out[i] = wheel.Slice{Label: in.Label, DropRate: in.DropRate, Color: in.Color}
		if in.ID != "" {
			out[i].ID = uuid.MustParse(in.ID)
		}
	}
	return out
}

type spinRequest struct {
	// CurrentAngle is the wheel's accumulated rotation in radians.
	CurrentAngle float64 `json:"current_angle" validate:"gte=0"`
}

type spinResponse struct {
	SpinID        int64       `json:"spin_id"`
	Index         int         `json:"index"`
	Slice         wheel.Slice `json:"slice"`
	TargetAngle   float64     `json:"target_angle"`
	TotalRotation float64     `json:"total_rotation"`
	DurationMS    int64       `json:"duration_ms"`
	Message       string      `json:"message"`
	TotalSpins    int         `json:"total_spins"`
}
