package mentat

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the engine's construction-time configuration (SPEC_FULL.md
// "[AMBIENT] Configuration"), loadable from a TOML file the same way the
// corpus's config-driven tools do, with file discovery itself left to the
// caller (§1 scope: CLI entrypoints are external).
type Config struct {
	Name             string  `toml:"name"`
	OSCPort          int     `toml:"osc_port"`
	OSCTCPPort       int     `toml:"osc_tcp_port"`
	OSCUnixSocket    string  `toml:"osc_unix_socket"`
	MIDIClientName   string  `toml:"midi_client_name"`
	Tempo            float64 `toml:"tempo"`
	CycleLength      float64 `toml:"cycle_length"`
	MainLoopPeriodMS int     `toml:"mainloop_period_ms"`
	AnimationPeriodMS int    `toml:"animation_period_ms"`
	RestartEnvVar    string  `toml:"restart_env_var"`
}

// DefaultConfig returns the configuration defaults named in SPEC_FULL.md:
// 1ms main loop / 20ms animation period, 120bpm, 4 quarter-note cycle.
func DefaultConfig() Config {
	return Config{
		Name:              "mentat",
		Tempo:             120,
		CycleLength:       4,
		MainLoopPeriodMS:  1,
		AnimationPeriodMS: 20,
		RestartEnvVar:     "MENTAT_RESTARTED",
	}
}

// LoadConfig decodes a TOML file at path over DefaultConfig, applying
// defaults to any zero-valued field the file left unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, NewError(ErrKindConfigFatal, "LoadConfig", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Tempo <= 0 {
		c.Tempo = d.Tempo
	}
	if c.CycleLength <= 0 {
		c.CycleLength = d.CycleLength
	}
	if c.MainLoopPeriodMS <= 0 {
		c.MainLoopPeriodMS = d.MainLoopPeriodMS
	}
	if c.AnimationPeriodMS <= 0 {
		c.AnimationPeriodMS = d.AnimationPeriodMS
	}
	if c.RestartEnvVar == "" {
		c.RestartEnvVar = d.RestartEnvVar
	}
}

// MainLoopPeriod returns the configured main loop tick period as a
// time.Duration (spec §4.1 step 10).
func (c Config) MainLoopPeriod() time.Duration {
	return time.Duration(c.MainLoopPeriodMS) * time.Millisecond
}

// AnimationPeriod returns the configured animation-advance period (spec
// §4.1 step 5).
func (c Config) AnimationPeriod() time.Duration {
	return time.Duration(c.AnimationPeriodMS) * time.Millisecond
}
