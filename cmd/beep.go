package cmd

import (
	"fmt"
	"os"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/play"

	"github.com/spf13/cobra"
)

var beepCmd = &cobra.Command{
	Use:   "beep",
	Short: "Play the alert tone",
	Long: `Play the alert tone that precedes every message, using the tone settings
from the configuration. With --wav the tone is written to a file instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wavPath, _ := cmd.Flags().GetString("wav")
		if cmd.Flags().Changed("frequency") {
			cfg.Tone.Frequency, _ = cmd.Flags().GetFloat64("frequency")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if wavPath != "" {
			data, err := audio.ToneFromConfig(cfg.Tone).WAV()
			if err != nil {
				return err
			}
			if err := os.WriteFile(wavPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", wavPath, err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", wavPath, len(data))
			return nil
		}

		cfg.Tone.Enabled = true
		cue, err := play.NewCue(cfg)
		if err != nil {
			return err
		}
		return cue.Play(cmd.Context())
	},
}

func init() {
	beepCmd.Flags().String("wav", "", "write the tone to this WAV file instead of playing it")
	beepCmd.Flags().Float64("frequency", 0, "tone frequency in Hz (overrides config)")
}
