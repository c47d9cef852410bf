package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Tone   ToneConfig   `mapstructure:"tone" yaml:"tone"`
	Player PlayerConfig `mapstructure:"player" yaml:"player"`
	Edit   EditConfig   `mapstructure:"edit" yaml:"edit"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

type AudioConfig struct {
	Backend      string        `mapstructure:"backend" yaml:"backend"` // "pipewire", "pulse", "alsa", "auto"
	Source       string        `mapstructure:"source" yaml:"source"`   // capture source name, "default" for the system default
	SampleRate   int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels     int           `mapstructure:"channels" yaml:"channels"`
	Codec        string        `mapstructure:"codec" yaml:"codec"`
	Container    string        `mapstructure:"container" yaml:"container"`
	FFmpegPath   string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// ToneConfig describes the alert cue played before a message.
type ToneConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Frequency  float64       `mapstructure:"frequency" yaml:"frequency"`
	Duration   time.Duration `mapstructure:"duration" yaml:"duration"`
	Gain       float64       `mapstructure:"gain" yaml:"gain"`
	Floor      float64       `mapstructure:"floor" yaml:"floor"` // gain reached at the end of the decay
	SampleRate int           `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type PlayerConfig struct {
	Command string `mapstructure:"command" yaml:"command"` // "auto", "ffplay", "mpv"
}

type EditConfig struct {
	RevertOnCancel bool `mapstructure:"revert_on_cancel" yaml:"revert_on_cancel"`
}

type ServerConfig struct {
	Port          string   `mapstructure:"port" yaml:"port"`
	EnableMetrics bool     `mapstructure:"enable_metrics" yaml:"enable_metrics"`
	RateLimitRPS  int      `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"` // 0 disables
	AllowedOrigin []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:      "auto",
		Source:       "default",
		SampleRate:   48000,
		Channels:     1,
		Codec:        "libopus",
		Container:    "webm",
		FFmpegPath:   "ffmpeg",
		ProbeTimeout: 3 * time.Second,
	},
	Tone: ToneConfig{
		Enabled:    true,
		Frequency:  800,
		Duration:   300 * time.Millisecond,
		Gain:       0.3,
		Floor:      0.01,
		SampleRate: 44100,
	},
	Player: PlayerConfig{
		Command: "auto",
	},
	Edit: EditConfig{
		RevertOnCancel: true,
	},
	Server: ServerConfig{
		Port:          "8080",
		EnableMetrics: true,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// DefaultPath is where the config file is looked up when --config is not given.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/tapedeck.yaml")
}

// Load reads configFile on top of the defaults. A missing file is not an
// error when optional is set, so a fresh install runs with built-in values.
func Load(configFile string, optional bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TAPEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(expandPath(configFile))
		if err := v.ReadInConfig(); err != nil {
			if !optional || !isMissingFile(configFile) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Audio.FFmpegPath = expandPath(cfg.Audio.FFmpegPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig

	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.source", d.Audio.Source)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.codec", d.Audio.Codec)
	v.SetDefault("audio.container", d.Audio.Container)
	v.SetDefault("audio.ffmpeg_path", d.Audio.FFmpegPath)
	v.SetDefault("audio.probe_timeout", d.Audio.ProbeTimeout)

	v.SetDefault("tone.enabled", d.Tone.Enabled)
	v.SetDefault("tone.frequency", d.Tone.Frequency)
	v.SetDefault("tone.duration", d.Tone.Duration)
	v.SetDefault("tone.gain", d.Tone.Gain)
	v.SetDefault("tone.floor", d.Tone.Floor)
	v.SetDefault("tone.sample_rate", d.Tone.SampleRate)

	v.SetDefault("player.command", d.Player.Command)
	v.SetDefault("edit.revert_on_cancel", d.Edit.RevertOnCancel)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.enable_metrics", d.Server.EnableMetrics)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigin)
}

func isMissingFile(path string) bool {
	_, err := os.Stat(expandPath(path))
	return os.IsNotExist(err)
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := validateAudio(c.Audio); err != nil {
		return err
	}
	if err := validateTone(c.Tone); err != nil {
		return err
	}
	switch c.Player.Command {
	case "auto", "ffplay", "mpv":
	default:
		return fmt.Errorf("player.command must be 'auto', 'ffplay' or 'mpv', got: %s", c.Player.Command)
	}
	return validateServer(c.Server)
}

func validateAudio(a AudioConfig) error {
	switch strings.ToLower(a.Backend) {
	case "pipewire", "pulse", "alsa", "auto":
	default:
		return fmt.Errorf("audio.backend must be 'pipewire', 'pulse', 'alsa' or 'auto', got: %s", a.Backend)
	}

	if !isValidAudioSource(a.Source) {
		return fmt.Errorf("audio.source must be a valid capture source name, got: %q", a.Source)
	}

	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got: %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", a.Channels)
	}

	if a.Codec == "" {
		return fmt.Errorf("audio.codec is required")
	}
	if a.Container == "" {
		return fmt.Errorf("audio.container is required")
	}
	if a.FFmpegPath == "" {
		return fmt.Errorf("audio.ffmpeg_path is required")
	}

	if a.ProbeTimeout <= 0 {
		return fmt.Errorf("audio.probe_timeout must be > 0, got: %s", a.ProbeTimeout)
	}

	return nil
}

func validateTone(t ToneConfig) error {
	if !t.Enabled {
		return nil
	}

	if t.Frequency < 20 || t.Frequency > 20000 {
		return fmt.Errorf("tone.frequency must be within 20-20000 Hz, got: %.1f", t.Frequency)
	}
	if t.Duration <= 0 || t.Duration > 2*time.Second {
		return fmt.Errorf("tone.duration must be within (0, 2s], got: %s", t.Duration)
	}
	if t.Gain <= 0 || t.Gain > 1 {
		return fmt.Errorf("tone.gain must be within (0, 1], got: %.2f", t.Gain)
	}
	if t.Floor <= 0 || t.Floor >= t.Gain {
		return fmt.Errorf("tone.floor must be > 0 and below tone.gain, got: %.3f", t.Floor)
	}
	if t.SampleRate < 8000 || t.SampleRate > 192000 {
		return fmt.Errorf("tone.sample_rate must be between 8000 and 192000, got: %d", t.SampleRate)
	}

	return nil
}

func validateServer(s ServerConfig) error {
	port, err := strconv.Atoi(s.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 1 and 65535, got: %q", s.Port)
	}
	if s.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0, got: %d", s.RateLimitRPS)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// isValidAudioSource accepts "default", plain source names
// ("alsa_input.usb-...") and device:port pairs ("hw:1,0").
func isValidAudioSource(source string) bool {
	source = strings.TrimSpace(source)
	if source == "" {
		return false
	}
	if source == "default" {
		return true
	}

	if strings.Contains(source, ":") {
		lastColonIndex := strings.LastIndex(source, ":")
		deviceName := strings.TrimSpace(source[:lastColonIndex])
		port := strings.TrimSpace(source[lastColonIndex+1:])
		return len(deviceName) > 0 && len(port) > 0
	}

	return !strings.ContainsAny(source, " \t\n")
}
