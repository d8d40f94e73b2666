package wheel

import (
	"math"
	"time"

	"github.com/MJE43/fortune-wheel-go/internal/engine"
)

const (
	fullTurn = 2 * math.Pi

	DefaultExtraRotations = 4
	DefaultBorderRatio    = 0.1
	DefaultSpinDuration   = 4500 * time.Millisecond
)

// Rotation is where the wheel must come to rest and how far it travels to
// get there. Angles are radians; TargetAngle is in [0, 2π).
type Rotation struct {
	TargetAngle   float64       `json:"target_angle"`
	TotalRotation float64       `json:"total_rotation"`
	Duration      time.Duration `json:"duration"`
}

// Geometry maps a winning index onto a stop angle under the fixed indicator.
type Geometry struct {
	ExtraRotations int
	BorderRatio    float64
	Duration       time.Duration

	src engine.Source
}

// NewGeometry returns a Geometry with the reference settings.
func NewGeometry(src engine.Source) *Geometry {
	return &Geometry{
		ExtraRotations: DefaultExtraRotations,
		BorderRatio:    DefaultBorderRatio,
		Duration:       DefaultSpinDuration,
		src:            src,
	}
}

// ComputeTargetRotation returns the rotation that lands winningIndex under the
// indicator, jittered inside the sector and never spinning backwards.
func (g *Geometry) ComputeTargetRotation(currentAngle float64, winningIndex, sliceCount int) (Rotation, error) {
	const op = "rotation"

	if sliceCount < 2 {
		return Rotation{}, newError(KindInsufficientSlices, op, "need at least 2 slices, have %d", sliceCount)
	}
	if winningIndex < 0 || winningIndex >= sliceCount {
		return Rotation{}, newError(KindInvalidIndex, op, "index %d outside [0, %d)", winningIndex, sliceCount)
	}

	sector := fullTurn / float64(sliceCount)
	target := math.Mod(fullTurn-sector*float64(winningIndex), fullTurn)

	border := sector * g.BorderRatio
	target -= engine.Uniform(g.src, border, sector-border)
	if target < 0 {
		target += fullTurn
	}

	delta := target - currentAngle
	if delta < 0 {
		delta = math.Mod(delta, fullTurn)
		if delta < 0 {
			delta += fullTurn
		}
	}

	return Rotation{
		TargetAngle:   target,
		TotalRotation: currentAngle + delta + float64(g.ExtraRotations)*fullTurn,
		Duration:      g.Duration,
	}, nil
}

// SectorAt returns the index of the slice resting under the indicator when
// the wheel is at angle.
func SectorAt(angle float64, sliceCount int) (int, error) {
	if sliceCount < 1 {
		return 0, newError(KindEmptySliceSet, "sector", "no slices")
	}
	sector := fullTurn / float64(sliceCount)
	idx := int(pointer(angle) / sector)
	if idx >= sliceCount {
		idx = sliceCount - 1
	}
	return idx, nil
}

// pointer is the wheel position under the indicator, in [0, 2π).
func pointer(angle float64) float64 {
	p := math.Mod(-angle, fullTurn)
	if p < 0 {
		p += fullTurn
	}
	if p >= fullTurn {
		p = 0
	}
	return p
}
