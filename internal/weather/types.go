package weather

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
)

// ErrUnavailable marks a failed weather fetch. Callers treat it as fatal for
// the current step; there is no cached fallback.
var ErrUnavailable = errors.New("weather data unavailable")

// #region types

// Reading is one exogenous weather observation.
type Reading struct {
	Temperature   float64 `json:"temperature"`    // °C
	Humidity      float64 `json:"humidity"`       // %RH
	WindSpeed     float64 `json:"wind_speed"`     // m/s
	WindDirection float64 `json:"wind_direction"` // degrees
	CloudCover    float64 `json:"cloud_cover"`    // %
	Condition     string  `json:"condition"`
}

// Source provides weather readings.
type Source interface {
	Fetch(ctx context.Context) (Reading, error)
}

// Config holds weather client parameters.
type Config struct {
	APIKey  string
	City    string
	BaseURL string
	Timeout time.Duration
}

// #endregion types

// #region config

// DefaultConfig returns OpenWeatherMap defaults.
// Reads from env vars: OWM_API_KEY, OWM_CITY, OWM_BASE_URL, OWM_TIMEOUT.
func DefaultConfig() Config {
	cfg := Config{
		City:    "New York",
		BaseURL: "https://api.openweathermap.org/data/2.5/weather",
		Timeout: 10 * time.Second,
	}
	if v := os.Getenv("OWM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OWM_CITY"); v != "" {
		cfg.City = v
	}
	if v := os.Getenv("OWM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OWM_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// #endregion config

// #region condition

var conditionCodes = map[string]int{
	"Clear":  facade.ConditionClear,
	"Clouds": facade.ConditionClouds,
	"Rain":   facade.ConditionRain,
	"Snow":   facade.ConditionSnow,
}

// ConditionCode maps a condition name to its observation code.
// Unknown names map to clear.
func ConditionCode(name string) int {
	if code, ok := conditionCodes[name]; ok {
		return code
	}
	return facade.ConditionClear
}

// Observation converts a reading into the base observation fields.
func (r Reading) Observation() facade.Observation {
	return facade.Observation{
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		WindSpeed:     r.WindSpeed,
		WindDirection: r.WindDirection,
		CloudCover:    r.CloudCover,
		Condition:     ConditionCode(r.Condition),
	}
}

// #endregion condition
