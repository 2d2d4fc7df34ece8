package main

import (
	"time"

	"timedtext/internal/captions"
	"timedtext/internal/compiler"
	"timedtext/internal/config"
	"timedtext/internal/playback"
)

func compilerOptions(cfg *config.Config, language string) compiler.Options {
	if language == "" {
		language = cfg.Captions.Language
	}
	return compiler.Options{
		Language: language,
		Captions: captions.Options{
			Threshold:  cfg.Captions.Threshold,
			LookBehind: cfg.Captions.LookBehind,
			LookAhead:  cfg.Captions.LookAhead,
			Tail:       cfg.Captions.Tail,
			Karaoke:    cfg.Captions.Karaoke,
		},
	}
}

func playbackOptions(cfg *config.Config) playback.Options {
	return playback.Options{
		TickHz:        cfg.Playback.TickHz,
		LoopBackGuard: cfg.Playback.LoopBackGuard,
		SeekNudge:     cfg.Playback.SeekNudge,
	}
}

func simOptions(cfg *config.Config, speed float64) playback.SimOptions {
	if speed <= 0 {
		speed = cfg.Simulation.Speed
	}
	return playback.SimOptions{
		BufferDelay:    time.Duration(cfg.Simulation.BufferMS) * time.Millisecond,
		SeekDelay:      time.Duration(cfg.Simulation.SeekMS) * time.Millisecond,
		UpdateInterval: time.Duration(float64(time.Second) / cfg.Simulation.UpdateHz),
		Speed:          speed,
	}
}
