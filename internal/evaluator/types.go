package evaluator

import (
	"context"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// Indoor conditions assumed when the evaluator omits them.
const (
	DefaultIndoorTemperature = 22.0
	DefaultIndoorHumidity    = 50.0
)

// #region types
// Result is the outcome of one energy/comfort evaluation.
type Result struct {
	AnnualEnergyUse   float64  // kWh
	IndoorTemperature *float64 // °C, nil when not simulated
	IndoorHumidity    *float64 // %RH, nil when not simulated
}

// Indoor returns the indoor temperature and humidity, falling back to the
// defaults for absent fields.
func (r Result) Indoor() (temperature, humidity float64) {
	temperature, humidity = DefaultIndoorTemperature, DefaultIndoorHumidity
	if r.IndoorTemperature != nil {
		temperature = *r.IndoorTemperature
	}
	if r.IndoorHumidity != nil {
		humidity = *r.IndoorHumidity
	}
	return temperature, humidity
}

// Evaluator scores a facade geometry under the given weather. A nil result
// with a nil error means the simulator produced nothing for this geometry.
type Evaluator interface {
	Evaluate(ctx context.Context, panels []facade.PanelRecord, w weather.Reading) (*Result, error)
}

// #endregion types
