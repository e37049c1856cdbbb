// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultSoundDir        = "~/lister_sound_system/sounds"
	DefaultSoundPlayer     = "aplay"
	DefaultSoundDevice     = "default"
	DefaultPlaybackTimeout = 30 * time.Second

	DefaultMixerBinary  = "amixer"
	DefaultMixerChannel = "PCM"
	DefaultVolumeStep   = 5
	DefaultVolumeMin    = 0
	DefaultVolumeMax    = 100

	DefaultStreamPlayer  = "mpv"
	DefaultSwitchTimeout = 60 * time.Second

	DefaultListenAddr = "127.0.0.1:7130"
)

// Duration is a time.Duration that can be unmarshaled from human-readable
// strings like "5s" or "1m30s", or from a bare integer number of seconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Bare integers are seconds, matching the original config convention.
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '30s', '1m30s' or seconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the daemon configuration.
// Loaded from ~/.config/lister-sound-system/config.toml
type Config struct {
	Sound  SoundConfig  `toml:"sound"`
	Volume VolumeConfig `toml:"volume"`
	Stream StreamConfig `toml:"stream"`
	Server ServerConfig `toml:"server"`
}

// SoundConfig contains notification sound settings.
type SoundConfig struct {
	Directory       string            `toml:"directory"`        // Root of the WAV library
	Player          string            `toml:"player"`           // Sound player binary (aplay)
	Device          string            `toml:"device"`           // ALSA device passed to the player
	PlaybackTimeout Duration          `toml:"playback_timeout"` // Hard wall-clock kill timeout
	Predefined      map[string]string `toml:"predefined"`       // Name -> path (relative to Directory unless absolute)
}

// VolumeConfig contains mixer settings.
type VolumeConfig struct {
	Mixer   string `toml:"mixer"`   // Mixer binary (amixer)
	Channel string `toml:"channel"` // Mixer simple control name
	Step    int    `toml:"step"`    // Step size for VOLUME_UP/VOLUME_DOWN
	Min     int    `toml:"min"`     // Lower clamp bound
	Max     int    `toml:"max"`     // Upper clamp bound
}

// StreamConfig contains radio stream settings.
type StreamConfig struct {
	Player        string   `toml:"player"`         // Stream player binary (mpv)
	URLs          []string `toml:"urls"`           // Configured stream URLs, cycled in order
	RadioStreams  string   `toml:"radio_streams"`  // Legacy newline-separated URL list
	SwitchTimeout Duration `toml:"switch_timeout"` // Stop->restart window that means "skip"
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Sound: SoundConfig{
			Directory:       DefaultSoundDir,
			Player:          DefaultSoundPlayer,
			Device:          DefaultSoundDevice,
			PlaybackTimeout: Duration(DefaultPlaybackTimeout),
			Predefined: map[string]string{
				"startup": "startup.wav",
			},
		},
		Volume: VolumeConfig{
			Mixer:   DefaultMixerBinary,
			Channel: DefaultMixerChannel,
			Step:    DefaultVolumeStep,
			Min:     DefaultVolumeMin,
			Max:     DefaultVolumeMax,
		},
		Stream: StreamConfig{
			Player:        DefaultStreamPlayer,
			SwitchTimeout: Duration(DefaultSwitchTimeout),
		},
		Server: ServerConfig{
			Listen: DefaultListenAddr,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "lister-sound-system", "config.toml")
}

// LoadConfig loads configuration from the given path.
// A missing file is not an error: defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Defaults need normalizing too: the default sound directory is ~-relative.
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize folds the legacy newline-separated radio_streams value into URLs
// and expands the sound directory.
func (c *Config) normalize() {
	if len(c.Stream.URLs) == 0 && c.Stream.RadioStreams != "" {
		for _, line := range strings.Split(c.Stream.RadioStreams, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				c.Stream.URLs = append(c.Stream.URLs, line)
			}
		}
	}
	c.Sound.Directory = ExpandPath(c.Sound.Directory)
}

func (c *Config) validate() error {
	if c.Volume.Min > c.Volume.Max {
		return fmt.Errorf("volume min %d exceeds max %d", c.Volume.Min, c.Volume.Max)
	}
	if c.Volume.Step <= 0 {
		return fmt.Errorf("volume step must be positive, got %d", c.Volume.Step)
	}
	return nil
}

// StreamURLs returns the effective stream URL list.
func (c *Config) StreamURLs() []string {
	return c.Stream.URLs
}

// PredefinedSounds returns the predefined name -> absolute path table,
// resolving relative entries under the sound directory.
func (c *Config) PredefinedSounds() map[string]string {
	out := make(map[string]string, len(c.Sound.Predefined))
	for name, p := range c.Sound.Predefined {
		p = ExpandPath(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Sound.Directory, p)
		}
		out[name] = p
	}
	return out
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
