package evaluator

import (
	"context"
	"math"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// #region surrogate-config
// SurrogateConfig holds coefficients of the reduced-order building model.
type SurrogateConfig struct {
	BaseLoad          float64 // kWh/year independent of the facade
	HeatingPerK       float64 // kWh/year per K below HeatingSetpoint
	CoolingPerK       float64 // kWh/year per K above CoolingSetpoint
	LightingLoss      float64 // kWh/year at full shading
	ActuationPerPanel float64
	HeatingSetpoint   float64
	CoolingSetpoint   float64
	SolarGainK        float64 // indoor K added at full sun, no shading
	Coupling          float64 // share of the outdoor deviation reaching indoors
}

// DefaultSurrogateConfig returns coefficients for a mid-size office floor.
func DefaultSurrogateConfig() SurrogateConfig {
	return SurrogateConfig{
		BaseLoad:          120000,
		HeatingPerK:       2500,
		CoolingPerK:       3000,
		LightingLoss:      2000,
		ActuationPerPanel: 50,
		HeatingSetpoint:   20,
		CoolingSetpoint:   24,
		SolarGainK:        5,
		Coupling:          0.35,
	}
}

// #endregion surrogate-config

// #region surrogate
// Surrogate is an analytic stand-in for a whole-building energy simulation,
// used for offline training and by the reference evaluator service.
type Surrogate struct {
	config SurrogateConfig
}

// NewSurrogate creates a surrogate evaluator.
func NewSurrogate(config SurrogateConfig) *Surrogate {
	return &Surrogate{config: config}
}

// Evaluate scores the facade. An empty facade yields no result.
func (s *Surrogate) Evaluate(ctx context.Context, panels []facade.PanelRecord, w weather.Reading) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(panels) == 0 {
		return nil, nil
	}
	c := s.config

	shading := Shading(panels)
	sun := 1 - clamp(w.CloudCover, 0, 100)/100
	gain := c.SolarGainK * sun * (1 - 0.8*shading)

	indoorT := c.HeatingSetpoint + 1 + c.Coupling*(w.Temperature-c.HeatingSetpoint-1) + gain - 0.1*w.WindSpeed
	indoorH := clamp(0.6*w.Humidity+15, 0, 100)

	energy := c.BaseLoad
	energy += c.HeatingPerK * math.Max(0, c.HeatingSetpoint-indoorT)
	energy += c.CoolingPerK * math.Max(0, indoorT-c.CoolingSetpoint)
	energy += c.LightingLoss * shading
	energy += c.ActuationPerPanel * float64(len(panels))

	return &Result{
		AnnualEnergyUse:   energy,
		IndoorTemperature: &indoorT,
		IndoorHumidity:    &indoorH,
	}, nil
}

// Shading estimates the fraction of the facade shaded by its panels, from
// rotation (fully closed at 90°), depth, and panel coverage.
func Shading(panels []facade.PanelRecord) float64 {
	if len(panels) == 0 {
		return 0
	}
	var sum float64
	for _, p := range panels {
		rot := math.Sin(clamp(p.Rotation, 0, facade.MaxRotation) * math.Pi / 180)
		sum += rot * clamp(p.Depth/facade.MaxDepth, 0, 1)
	}
	coverage := float64(len(panels)) / facade.MaxPanelCount
	return clamp(sum/float64(len(panels))*coverage, 0, 1)
}

// #endregion surrogate

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
