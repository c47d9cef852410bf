package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/tapedeck/internal/server"
	"github.com/audiolibrelab/tapedeck/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the tapedeck web server to record and play messages from a browser.
This allows you to use the deck from your smartphone or any device on the same network.

The server will display the local network URL for easy access from mobile devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(cfg, encoderLog())
		if err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}
		defer svc.Close()

		srv := server.New(svc, port)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx)
		})
		g.Go(func() error {
			logTransitions(gctx, svc)
			return nil
		})

		if err := g.Wait(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

// logTransitions logs capture and playback state changes until ctx ends.
func logTransitions(ctx context.Context, svc service.Service) {
	updates, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	last := svc.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if snap.Status != last.Status || snap.Playback != last.Playback || len(snap.Recordings) != len(last.Recordings) {
				slog.Info("Deck state changed",
					"status", snap.Status,
					"playback", snap.Playback,
					"recordings", len(snap.Recordings),
					"selected", snap.Selected)
			}
			last = snap
		}
	}
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (default from server.port)")
}
