package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/tapedeck/internal/audio"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved capture and playback setup",
	Long:  `Display the backend, source and encoder settings the deck will use, and which external tools it found.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== CAPTURE ===\n")
		fmt.Printf("backend: %s\n", audio.DetermineBackend(cfg))
		fmt.Printf("source: %s\n", cfg.Audio.Source)
		fmt.Printf("format: %s/%s, %d Hz, %d ch\n", cfg.Audio.Codec, cfg.Audio.Container, cfg.Audio.SampleRate, cfg.Audio.Channels)
		fmt.Printf("ffmpeg: %s\n", toolStatus(cfg.Audio.FFmpegPath))

		fmt.Printf("\n=== PLAYBACK ===\n")
		fmt.Printf("player: %s\n", cfg.Player.Command)
		for _, p := range []string{"ffplay", "mpv"} {
			fmt.Printf("  %s: %s\n", p, toolStatus(p))
		}

		fmt.Printf("\n=== ALERT TONE ===\n")
		if !cfg.Tone.Enabled {
			fmt.Printf("disabled\n")
		} else {
			tone := audio.ToneFromConfig(cfg.Tone)
			fmt.Printf("%.0f Hz, %s, gain %.2f → %.3f (%d samples)\n",
				tone.Frequency, tone.Duration, tone.Gain, tone.Floor, tone.SampleCount())
		}

		fmt.Printf("\n=== EDITING ===\n")
		fmt.Printf("revert_on_cancel: %t\n", cfg.Edit.RevertOnCancel)
		return nil
	},
}

func toolStatus(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return "not found"
	}
	return strings.TrimSpace(path)
}
