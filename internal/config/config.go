package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Weather modes.
const (
	WeatherOpenWeatherMap = "openweathermap"
	WeatherStatic         = "static"
)

// #region config
// Config is the process configuration of the controller binaries.
type Config struct {
	DBPath          string
	EvaluatorAddr   string // empty selects the in-process surrogate
	HTTPAddr        string
	OWMAPIKey       string
	OWMCity         string
	WeatherMode     string
	Episodes        int // 0 trains until stopped
	EpisodeInterval time.Duration
	ExtendedObs     bool
	ComfortEnabled  bool
	ClampComfort    bool
	ReportDir       string
	Seed            uint64
	LogLevel        string
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		DBPath:          "facade_controller.db",
		HTTPAddr:        ":8765",
		OWMCity:         "New York",
		WeatherMode:     WeatherStatic,
		EpisodeInterval: 0,
		ComfortEnabled:  true,
		Seed:            1,
		LogLevel:        "info",
	}
}

// #endregion config

// #region load
// Load reads the environment on top of Default. Malformed values are errors
// rather than silent fallbacks.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	cfg.DBPath = p.str("FACADE_DB", cfg.DBPath)
	cfg.EvaluatorAddr = p.str("EVALUATOR_ADDR", cfg.EvaluatorAddr)
	cfg.HTTPAddr = p.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.OWMAPIKey = p.str("OWM_API_KEY", cfg.OWMAPIKey)
	cfg.OWMCity = p.str("OWM_CITY", cfg.OWMCity)
	cfg.WeatherMode = strings.ToLower(p.str("WEATHER_MODE", cfg.WeatherMode))
	cfg.Episodes = p.integer("EPISODES", cfg.Episodes)
	cfg.EpisodeInterval = p.duration("EPISODE_INTERVAL", cfg.EpisodeInterval)
	cfg.ExtendedObs = p.boolean("EXTENDED_OBS", cfg.ExtendedObs)
	cfg.ComfortEnabled = p.boolean("COMFORT_ENABLED", cfg.ComfortEnabled)
	cfg.ClampComfort = p.boolean("CLAMP_COMFORT", cfg.ClampComfort)
	cfg.ReportDir = p.str("REPORT_DIR", cfg.ReportDir)
	cfg.Seed = uint64(p.integer("SEED", int(cfg.Seed)))
	cfg.LogLevel = strings.ToLower(p.str("LOG_LEVEL", cfg.LogLevel))

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.WeatherMode {
	case WeatherStatic:
	case WeatherOpenWeatherMap:
		if c.OWMAPIKey == "" {
			return fmt.Errorf("WEATHER_MODE=%s requires OWM_API_KEY", c.WeatherMode)
		}
	default:
		return fmt.Errorf("unknown WEATHER_MODE %q", c.WeatherMode)
	}
	if c.Episodes < 0 {
		return fmt.Errorf("EPISODES must be >= 0, got %d", c.Episodes)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// #endregion load

// #region logger
// NewLogger builds a production logger at the configured level, or a
// development logger for "debug".
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if level == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// #endregion logger

// #region parser
// parser keeps the first parse error so Load reports it once.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, fallback string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return fallback
}

func (p *parser) integer(key string, fallback int) int {
	v := p.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := p.getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

// duration accepts Go durations ("90s") or bare seconds ("90").
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return fallback
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}

// #endregion parser
