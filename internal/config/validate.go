package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateSimulation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if err := ensurePositiveMap(map[string]int{
		"captions.threshold": c.Captions.Threshold,
		"captions.tail":      c.Captions.Tail,
	}); err != nil {
		return err
	}
	if c.Captions.LookAhead < 0 {
		return errors.New("captions.look_ahead must be >= 0")
	}
	if c.Captions.LookBehind < 0 {
		return errors.New("captions.look_behind must be >= 0")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if !finitePositive(c.Playback.TickHz) {
		return errors.New("playback.tick_hz must be positive")
	}
	if c.Playback.TickHz > 240 {
		return errors.New("playback.tick_hz must not exceed 240")
	}
	if c.Playback.LoopBackGuard < 0 || math.IsNaN(c.Playback.LoopBackGuard) {
		return errors.New("playback.loop_back_guard must be >= 0")
	}
	if c.Playback.SeekNudge < 0 || c.Playback.SeekNudge >= 1 || math.IsNaN(c.Playback.SeekNudge) {
		return errors.New("playback.seek_nudge must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSimulation() error {
	if c.Simulation.BufferMS < 0 {
		return errors.New("simulation.buffer_ms must be >= 0")
	}
	if c.Simulation.SeekMS < 0 {
		return errors.New("simulation.seek_ms must be >= 0")
	}
	if !finitePositive(c.Simulation.UpdateHz) {
		return errors.New("simulation.update_hz must be positive")
	}
	if !finitePositive(c.Simulation.Speed) {
		return errors.New("simulation.speed must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
