package testsupport

import (
	"path/filepath"
	"testing"

	"timedtext/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose log directory and caption store live in a
// fresh temp directory. Simulated resources have no latency by default.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Store.Path = filepath.Join(base, "captions.db")
	cfg.Simulation.BufferMS = 0
	cfg.Simulation.SeekMS = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithMemoryStore keeps caption artifacts in memory.
func WithMemoryStore() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Store.Path = ""
	}
}

// WithThreshold overrides the caption break threshold.
func WithThreshold(chars int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Captions.Threshold = chars
	}
}

// WithSimulationSpeed overrides how fast simulated media advances.
func WithSimulationSpeed(speed float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Simulation.Speed = speed
	}
}
