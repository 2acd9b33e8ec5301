package physics

import (
	"errors"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
)

// AirDensity is the density of air at sea level in kg/m³.
const AirDensity = 1.225

// ErrNonPositiveTimeDelta is returned when two adjacent panel records are not
// strictly ordered in time. It is an input error, not a constraint violation.
var ErrNonPositiveTimeDelta = errors.New("non-positive time delta between panels")

// #region violation-type
// ViolationType enumerates the kinematic limits a sequence can break.
type ViolationType string

const (
	ViolationRotationRate ViolationType = "rotation_rate"
	ViolationDepthRate    ViolationType = "depth_rate"
)

// Violation records one exceeded limit between panels From and From+1.
type Violation struct {
	Type  ViolationType
	From  int
	Rate  float64
	Limit float64
}

// #endregion violation-type

// #region filter-config
// FilterConfig holds the oscillator constants and rate limits.
type FilterConfig struct {
	Mass            float64 // kg
	SpringConstant  float64 // N/m
	Damping         float64 // N·s/m
	Horizon         float64 // simulated seconds per panel
	Resolution      int     // samples over the horizon, endpoints included
	MaxRotationRate float64 // degrees per second
	MaxDepthRate    float64 // metres per second
}

// DefaultFilterConfig returns the standard panel constants.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Mass:            10,
		SpringConstant:  100,
		Damping:         5,
		Horizon:         10,
		Resolution:      1000,
		MaxRotationRate: 30,
		MaxDepthRate:    0.2,
	}
}

// #endregion filter-config

// #region verdict
// Verdict is the output of a filter run.
type Verdict struct {
	Panels     []facade.PanelRecord // simulated panels, same order as the input
	Admissible bool
	Violations []Violation
}

// #endregion verdict
