package physics

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
)

// #region wind-force
// WindForce converts a wind speed in m/s to the dynamic pressure force
// 0.5·ρ·v² acting on a panel.
func WindForce(speed float64) float64 {
	return 0.5 * AirDensity * speed * speed
}

// #endregion wind-force

// #region filter
// Filter integrates panel motion and checks actuation rate limits.
type Filter struct {
	config FilterConfig
}

// NewFilter creates a filter with the given configuration.
func NewFilter(config FilterConfig) *Filter {
	if config.Resolution < 2 {
		config.Resolution = 2
	}
	return &Filter{config: config}
}

// Config returns the filter configuration.
func (f *Filter) Config() FilterConfig {
	return f.config
}

// Run simulates panels under force and classifies the simulated sequence.
func (f *Filter) Run(panels []facade.PanelRecord, force float64) (Verdict, error) {
	return f.RunFrom(nil, panels, force)
}

// RunFrom is Run with an already-settled anchor panel placed before the
// sequence. The anchor takes part in the rate check but is not simulated
// again and is not part of the returned panels.
func (f *Filter) RunFrom(anchor *facade.PanelRecord, panels []facade.PanelRecord, force float64) (Verdict, error) {
	simulated := f.Simulate(panels, force)

	seq := simulated
	offset := 0
	if anchor != nil {
		seq = make([]facade.PanelRecord, 0, len(simulated)+1)
		seq = append(seq, *anchor)
		seq = append(seq, simulated...)
		offset = 1
	}

	violations, err := f.Check(seq)
	if err != nil {
		return Verdict{}, err
	}
	for i := range violations {
		violations[i].From -= offset
	}

	return Verdict{
		Panels:     simulated,
		Admissible: len(violations) == 0,
		Violations: violations,
	}, nil
}

// Simulate integrates each panel's depth as a driven damped oscillator
// m·a = F − k·x − c·v starting at rest at the requested depth. Rotation and
// timing pass through unchanged.
func (f *Filter) Simulate(panels []facade.PanelRecord, force float64) []facade.PanelRecord {
	out := make([]facade.PanelRecord, len(panels))
	for i, p := range panels {
		x, v := f.integrate(p.Depth, 0, force)
		p.Depth = x
		p.Velocity = v
		out[i] = p
	}
	return out
}

// Check returns every rate-limit violation between adjacent panels.
// A non-increasing timestamp yields ErrNonPositiveTimeDelta.
func (f *Filter) Check(panels []facade.PanelRecord) ([]Violation, error) {
	var violations []Violation
	for i := 1; i < len(panels); i++ {
		dt := panels[i].Time - panels[i-1].Time
		if dt <= 0 {
			return nil, fmt.Errorf("panels %d and %d (dt=%g): %w", i-1, i, dt, ErrNonPositiveTimeDelta)
		}

		rotRate := math.Abs(panels[i].Rotation-panels[i-1].Rotation) / dt
		if rotRate > f.config.MaxRotationRate {
			violations = append(violations, Violation{
				Type:  ViolationRotationRate,
				From:  i - 1,
				Rate:  rotRate,
				Limit: f.config.MaxRotationRate,
			})
		}

		depthRate := math.Abs(panels[i].Depth-panels[i-1].Depth) / dt
		if depthRate > f.config.MaxDepthRate {
			violations = append(violations, Violation{
				Type:  ViolationDepthRate,
				From:  i - 1,
				Rate:  depthRate,
				Limit: f.config.MaxDepthRate,
			})
		}
	}
	return violations, nil
}

// #endregion filter

// #region integration
// integrate advances (x, v) over the horizon with fixed-step RK4.
func (f *Filter) integrate(x, v, force float64) (float64, float64) {
	c := f.config
	steps := c.Resolution - 1
	dt := c.Horizon / float64(steps)

	accel := func(x, v float64) float64 {
		return (force - c.SpringConstant*x - c.Damping*v) / c.Mass
	}

	for i := 0; i < steps; i++ {
		k1x, k1v := v, accel(x, v)
		k2x, k2v := v+0.5*dt*k1v, accel(x+0.5*dt*k1x, v+0.5*dt*k1v)
		k3x, k3v := v+0.5*dt*k2v, accel(x+0.5*dt*k2x, v+0.5*dt*k2v)
		k4x, k4v := v+dt*k3v, accel(x+dt*k3x, v+dt*k3v)

		x += (dt / 6.0) * (k1x + 2*k2x + 2*k3x + k4x)
		v += (dt / 6.0) * (k1v + 2*k2v + 2*k3v + k4v)
	}
	return x, v
}

// #endregion integration
