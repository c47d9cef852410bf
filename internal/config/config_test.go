package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tapedeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Audio.Backend)
	assert.Equal(t, "default", cfg.Audio.Source)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 800.0, cfg.Tone.Frequency)
	assert.Equal(t, 300*time.Millisecond, cfg.Tone.Duration)
	assert.True(t, cfg.Edit.RevertOnCancel)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_MissingRequiredFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := createTempConfig(t, `
audio:
  backend: alsa
  source: "hw:1,0"
  sample_rate: 44100
  probe_timeout: 500ms
tone:
  frequency: 1000
  duration: 250ms
player:
  command: mpv
edit:
  revert_on_cancel: false
server:
  port: "9090"
  rate_limit_rps: 20
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "alsa", cfg.Audio.Backend)
	assert.Equal(t, "hw:1,0", cfg.Audio.Source)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Audio.ProbeTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, "libopus", cfg.Audio.Codec)
	assert.Equal(t, 1000.0, cfg.Tone.Frequency)
	assert.Equal(t, 250*time.Millisecond, cfg.Tone.Duration)
	assert.Equal(t, 0.3, cfg.Tone.Gain)
	assert.Equal(t, "mpv", cfg.Player.Command)
	assert.False(t, cfg.Edit.RevertOnCancel)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.RateLimitRPS)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("TAPEDECK_AUDIO_SOURCE", "alsa_input.usb-mic")
	t.Setenv("TAPEDECK_SERVER_PORT", "7070")

	cfg, err := Load("", true)
	require.NoError(t, err)

	assert.Equal(t, "alsa_input.usb-mic", cfg.Audio.Source)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown backend",
			content: "audio:\n  backend: coreaudio\n",
			want:    "audio.backend",
		},
		{
			name:    "three channels",
			content: "audio:\n  channels: 3\n",
			want:    "audio.channels",
		},
		{
			name:    "floor above gain",
			content: "tone:\n  gain: 0.2\n  floor: 0.5\n",
			want:    "tone.floor",
		},
		{
			name:    "inaudible frequency",
			content: "tone:\n  frequency: 5\n",
			want:    "tone.frequency",
		},
		{
			name:    "unknown player",
			content: "player:\n  command: vlc\n",
			want:    "player.command",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: \"70000\"\n",
			want:    "server.port",
		},
		{
			name:    "source with spaces",
			content: "audio:\n  source: \"my mic\"\n",
			want:    "audio.source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(createTempConfig(t, tt.content), false)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestValidate_DisabledToneSkipsToneChecks(t *testing.T) {
	cfg := Default()
	cfg.Tone.Enabled = false
	cfg.Tone.Frequency = 0

	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/bin/ffmpeg", filepath.Join(homeDir, "bin/ffmpeg")},
		{"/usr/bin/ffmpeg", "/usr/bin/ffmpeg"},
		{"ffmpeg", "ffmpeg"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, expandPath(test.input))
	}
}

func TestIsValidAudioSource(t *testing.T) {
	valid := []string{"default", "hw:1,0", "alsa_input.pci-0000_00_1f.3.analog-stereo", "system:capture_1"}
	for _, s := range valid {
		assert.True(t, isValidAudioSource(s), s)
	}

	invalid := []string{"", "   ", ":0", "device:", "two words"}
	for _, s := range invalid {
		assert.False(t, isValidAudioSource(s), s)
	}
}
