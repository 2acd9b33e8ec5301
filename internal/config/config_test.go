package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if !cfg.ComfortEnabled || cfg.ClampComfort {
		t.Error("comfort should be enabled and unclamped by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"FACADE_DB":        "/tmp/x.db",
		"EVALUATOR_ADDR":   "localhost:50051",
		"WEATHER_MODE":     "OpenWeatherMap",
		"OWM_API_KEY":      "k",
		"OWM_CITY":         "Lisbon",
		"EPISODES":         "12",
		"EPISODE_INTERVAL": "90",
		"EXTENDED_OBS":     "true",
		"COMFORT_ENABLED":  "0",
		"CLAMP_COMFORT":    "1",
		"SEED":             "42",
		"LOG_LEVEL":        "DEBUG",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.EvaluatorAddr != "localhost:50051" || cfg.OWMCity != "Lisbon" {
		t.Errorf("string overrides not applied: %+v", cfg)
	}
	if cfg.WeatherMode != WeatherOpenWeatherMap {
		t.Errorf("WeatherMode = %q", cfg.WeatherMode)
	}
	if cfg.Episodes != 12 || cfg.EpisodeInterval != 90*time.Second || cfg.Seed != 42 {
		t.Errorf("numeric overrides not applied: %+v", cfg)
	}
	if !cfg.ExtendedObs || cfg.ComfortEnabled || !cfg.ClampComfort {
		t.Errorf("bool overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadDurationString(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"EPISODE_INTERVAL": "1m30s"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EpisodeInterval != 90*time.Second {
		t.Errorf("EpisodeInterval = %v", cfg.EpisodeInterval)
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := load(envMap(map[string]string{"EPISODES": "many"}))
	if err == nil || !strings.Contains(err.Error(), "EPISODES") {
		t.Fatalf("err = %v, want EPISODES parse error", err)
	}
}

func TestOpenWeatherMapRequiresKey(t *testing.T) {
	_, err := load(envMap(map[string]string{"WEATHER_MODE": "openweathermap"}))
	if err == nil {
		t.Fatal("expected error without OWM_API_KEY")
	}
}

func TestUnknownWeatherMode(t *testing.T) {
	if _, err := load(envMap(map[string]string{"WEATHER_MODE": "radar"})); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn"} {
		cfg := Default()
		cfg.LogLevel = level
		logger, err := cfg.NewLogger()
		if err != nil {
			t.Fatalf("NewLogger(%s): %v", level, err)
		}
		logger.Sync()
	}
}
