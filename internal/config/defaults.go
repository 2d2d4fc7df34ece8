package config

const (
	defaultConfigPath      = "~/.config/timedtext/config.toml"
	defaultLogDir          = "~/.local/share/timedtext/logs"
	defaultStorePath       = "~/.local/share/timedtext/captions.db"
	defaultLanguage        = "en"
	defaultThreshold       = 74
	defaultLookAhead       = 3
	defaultLookBehind      = 5
	defaultTail            = 5
	defaultTickHz          = 15
	defaultLoopBackGuard   = 0.4
	defaultSeekNudge       = 0.02
	defaultBufferMS        = 200
	defaultSeekMS          = 30
	defaultUpdateHz        = 4
	defaultSimulationSpeed = 1
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Captions: Captions{
			Language:   defaultLanguage,
			Threshold:  defaultThreshold,
			LookAhead:  defaultLookAhead,
			LookBehind: defaultLookBehind,
			Tail:       defaultTail,
			Karaoke:    true,
		},
		Playback: Playback{
			TickHz:        defaultTickHz,
			LoopBackGuard: defaultLoopBackGuard,
			SeekNudge:     defaultSeekNudge,
		},
		Simulation: Simulation{
			BufferMS: defaultBufferMS,
			SeekMS:   defaultSeekMS,
			UpdateHz: defaultUpdateHz,
			Speed:    defaultSimulationSpeed,
		},
		Store: Store{
			Path: defaultStorePath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
