package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/tapedeck/internal/service"
	"github.com/audiolibrelab/tapedeck/internal/tui"
)

var logFile string

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Open the terminal deck",
	Long: `Open the interactive deck: record with r, play with space, rewind with b,
move with the arrow keys, delete with d (then y), edit name/date/time with
n, D and t. Logs are discarded while the deck owns the terminal unless
--log-file is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		restore, err := redirectLogs(logFile)
		if err != nil {
			return err
		}
		defer restore()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(cfg, encoderLog())
		if err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}
		defer svc.Close()

		p := tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("deck failed: %w", err)
		}
		return nil
	},
}

// redirectLogs points slog at path, or discards it, for as long as the deck
// owns the terminal.
func redirectLogs(path string) (func(), error) {
	previous := slog.Default()

	var w io.Writer = io.Discard
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
	}

	level := slog.LevelInfo
	if verboseLevel >= 1 {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))

	return func() {
		slog.SetDefault(previous)
		if f != nil {
			f.Close()
		}
	}, nil
}

func init() {
	deckCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the deck is open")
}
