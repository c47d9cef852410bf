package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/tapedeck/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available capture sources",
	Long:  `List the capture sources the configured backend can record from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.DetermineBackend(cfg)
		return listAvailableSources(backend, cfg.Audio.Source)
	},
}

// listAvailableSources prints the sources of backend and marks configured
func listAvailableSources(backend audio.BackendType, configured string) error {
	fmt.Printf("🎙  Capture Sources (%s, %s)\n", backend, runtime.GOOS)
	fmt.Printf("═══════════════════════════════════════\n\n")

	sources, err := audio.NewSourceLister(backend).ListSources()
	if err != nil {
		return fmt.Errorf("failed to get %s sources: %w", backend, err)
	}

	fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
	for i, source := range sources {
		marker := ""
		if source == configured {
			marker = "  ← configured"
		}
		fmt.Printf("  %d. %s%s\n", i+1, source, marker)
	}

	fmt.Printf("\n💡 Usage:\n")
	fmt.Printf("  • \"default\" records from the system default source\n")
	fmt.Printf("  • Set audio.source in the config file or TAPEDECK_AUDIO_SOURCE\n\n")

	return nil
}
