package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stillpoint/ipc"
)

// Config is the top-level YAML configuration for the stillpoint daemon.
//
// User meditation preferences (duration, gongs, preparation) are not here;
// they live in the settings file managed by the settings store.
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Timer    TimerConfig    `yaml:"timer"`
	IPC      IPCConfig      `yaml:"ipc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Input    InputConfig    `yaml:"input"`
	Settings SettingsConfig `yaml:"settings"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AudioConfig struct {
	// PlayerCommand is run once per sound. PlayerArgs may contain the
	// placeholders {file} and {volume} (PulseAudio scale, 0-65536).
	PlayerCommand string   `yaml:"player_command"`
	PlayerArgs    []string `yaml:"player_args"`

	SoundsDir string `yaml:"sounds_dir"`

	// Sounds maps a sound id to a file, relative to SoundsDir unless absolute.
	Sounds map[string]string `yaml:"sounds"`

	CompletionSoundID string `yaml:"completion_sound_id"`
}

type TimerConfig struct {
	TickMS int `yaml:"tick_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	StatePath  string `yaml:"state_path"`
}

type InputConfig struct {
	Enabled bool     `yaml:"enabled"`
	Devices []string `yaml:"devices"`
}

type SettingsConfig struct {
	Path string `yaml:"path"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			PlayerCommand: defaultPlayerCommand,
			PlayerArgs:    []string{"--volume={volume}", "{file}"},
			SoundsDir:     defaultSoundsDir,
			Sounds: map[string]string{
				"temple_bell":     "temple_bell.ogg",
				"singing_bowl":    "singing_bowl.ogg",
				"completion_bell": "completion_bell.ogg",
				"forest":          "forest.ogg",
				"rain":            "rain.ogg",
				"ocean":           "ocean.ogg",
			},
			CompletionSoundID: defaultCompletionSound,
		},
		Timer: TimerConfig{
			TickMS: defaultTickMS,
		},
		IPC: IPCConfig{
			SocketPath: ipc.DefaultSocketPath,
		},
		HTTP: HTTPConfig{
			ListenAddr: defaultHTTPListenAddr,
			StatePath:  defaultStatePath,
		},
		Input: InputConfig{
			Enabled: false,
			Devices: []string{"/dev/input/event0"},
		},
		Settings: SettingsConfig{
			Path: defaultSettingsPath,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line values that win over the config file.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	PlayerCommand *string
	SoundsDir     *string
	TickMS        *int
	IPCSocketPath *string
	HTTPListen    *string
	InputDevice   *string
	SettingsPath  *string
	JournalPath   *string
	NoJournal     *bool
	LogLevel      *string
	LogFormat     *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PlayerCommand != nil {
		cfg.Audio.PlayerCommand = *o.PlayerCommand
	}
	if o.SoundsDir != nil {
		cfg.Audio.SoundsDir = *o.SoundsDir
	}
	if o.TickMS != nil {
		cfg.Timer.TickMS = *o.TickMS
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.ListenAddr = *o.HTTPListen
	}
	if o.InputDevice != nil {
		cfg.Input.Enabled = true
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.SettingsPath != nil {
		cfg.Settings.Path = *o.SettingsPath
	}
	if o.JournalPath != nil {
		cfg.Journal.Path = *o.JournalPath
	}
	if o.NoJournal != nil && *o.NoJournal {
		cfg.Journal.Enabled = false
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if c.Audio.PlayerCommand == "" {
		return errors.New("audio.player_command must not be empty")
	}
	hasFile := false
	for _, a := range c.Audio.PlayerArgs {
		if strings.Contains(a, "{file}") {
			hasFile = true
		}
	}
	if !hasFile {
		return errors.New("audio.player_args must contain a {file} placeholder")
	}
	for id, file := range c.Audio.Sounds {
		if id == "" || file == "" {
			return fmt.Errorf("audio.sounds has an empty entry (%q: %q)", id, file)
		}
		if id == silentSoundID {
			return fmt.Errorf("audio.sounds must not define the reserved id %q", silentSoundID)
		}
	}

	if c.Timer.TickMS <= 0 || c.Timer.TickMS > 60_000 {
		return errors.New("timer.tick_ms must be between 1 and 60000")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.HTTP.ListenAddr != "" && !strings.HasPrefix(c.HTTP.StatePath, "/") {
		return errors.New("http.state_path must start with /")
	}

	if c.Input.Enabled {
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty when input.enabled is true")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
	}

	if c.Settings.Path == "" {
		return errors.New("settings.path must not be empty")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.enabled is true but journal.path is empty")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// TickInterval is the wall-clock length of one timer second.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timer.TickMS) * time.Millisecond
}

// SoundPath resolves a sound id to a file. The silent id and unknown ids
// resolve to nothing.
func (a AudioConfig) SoundPath(id string) (string, bool) {
	if id == "" || id == silentSoundID {
		return "", false
	}
	file, ok := a.Sounds[id]
	if !ok {
		return "", false
	}
	file = ExpandPath(file)
	if !filepath.IsAbs(file) {
		file = filepath.Join(ExpandPath(a.SoundsDir), file)
	}
	return file, true
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
