package audio

import (
	"io"
	"strings"

	"github.com/audiolibrelab/tapedeck/internal/config"
)

// BackendType represents the sound system a capture device talks to
type BackendType string

const (
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypePulse    BackendType = "pulse"
	BackendTypeALSA     BackendType = "alsa"
)

// NewDevice creates the capture device selected by configuration.
func NewDevice(cfg *config.Config, logWriter io.Writer) Device {
	audioCfg := cfg.Audio
	backend := determineBackend(audioCfg)
	if backend == BackendTypeALSA {
		audioCfg.Backend = string(BackendTypeALSA)
	}
	return NewFFmpegDevice(audioCfg, NewSourceLister(backend), logWriter)
}

// NewSourceLister returns the source enumerator for backend.
func NewSourceLister(backend BackendType) SourceLister {
	if backend == BackendTypeALSA {
		return ALSA{}
	}
	return NewPipeWire()
}

// determineBackend resolves "auto" and unknown values to PipeWire.
func determineBackend(cfg config.AudioConfig) BackendType {
	switch strings.ToLower(cfg.Backend) {
	case "alsa":
		return BackendTypeALSA
	case "pulse":
		return BackendTypePulse
	default:
		return BackendTypePipeWire
	}
}

// DetermineBackend exposes the resolved backend for display.
func DetermineBackend(cfg *config.Config) BackendType {
	return determineBackend(cfg.Audio)
}
