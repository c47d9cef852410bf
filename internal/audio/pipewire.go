package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// SourceLister enumerates capture sources and checks a configured one.
type SourceLister interface {
	ListSources() ([]string, error)
	ValidateSource(source string) error
}

// PipeWire lists capture sources through the PulseAudio compatibility
// layer (pipewire-pulse), which is what ffmpeg's pulse input talks to.
type PipeWire struct{}

func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListSources returns the names of all capture sources. Monitor sources
// (loopbacks of an output) are skipped.
func (pw *PipeWire) ListSources() ([]string, error) {
	output, err := exec.Command("pactl", "list", "short", "sources").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire sources: %w", err)
	}
	return parseSourceList(string(output)), nil
}

// ValidateSource checks that source exists exactly once. "default" always
// passes because the sound server resolves it.
func (pw *PipeWire) ValidateSource(source string) error {
	if source == "" || source == "default" {
		return nil
	}

	sources, err := pw.ListSources()
	if err != nil {
		slog.Debug("Source listing unavailable, skipping validation", "error", err)
		return nil
	}
	return validateSourceInList(source, sources)
}

// parseSourceList extracts the name column of `pactl list short sources`.
func parseSourceList(output string) []string {
	var sources []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if strings.HasSuffix(name, ".monitor") {
			continue
		}
		sources = append(sources, name)
	}
	return sources
}

func validateSourceInList(source string, sources []string) error {
	duplicates := findSourceDuplicates(source, sources)
	switch {
	case len(duplicates) == 0:
		return fmt.Errorf("source not found: %s", source)
	case len(duplicates) > 1:
		return fmt.Errorf("duplicate sources detected for '%s': %v", source, duplicates)
	}
	return nil
}

// findSourceDuplicates returns every entry exactly equal to source.
func findSourceDuplicates(source string, sources []string) []string {
	var duplicates []string
	for _, s := range sources {
		if s == source {
			duplicates = append(duplicates, s)
		}
	}
	return duplicates
}

// ALSA sources are hardware names; there is nothing cheap to validate
// without opening the device, so the encoder probe is the check.
type ALSA struct{}

func (ALSA) ListSources() ([]string, error) {
	output, err := exec.Command("arecord", "-L").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list ALSA devices: %w", err)
	}
	var sources []string
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}
		sources = append(sources, strings.TrimSpace(line))
	}
	return sources, nil
}

func (ALSA) ValidateSource(string) error {
	return nil
}
