package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slidesync/internal/driver"
	"slidesync/internal/metricsserver"
	"slidesync/internal/tracker"
)

// syncCmd generates a synchronization script from a recorded presentation
// and its rasterized slide deck.
var syncCmd = &cobra.Command{
	Use:          "sync",
	SilenceUsage: true,
	Short:        "Match footage against a slide deck and emit a synchronization script",
	Long: `sync reads a video recording of a live presentation and a directory of
rasterized slide images, tracks which slide is on screen frame by frame, and
writes a timed synchronization script of Next/Previous/GoTo instructions.

A cached script from a prior run against the same footage and slide deck is
reused automatically unless --no-cache is given.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("footage", "", "path to the recorded presentation video (required)")
	syncCmd.Flags().String("slides", "", "path to the directory of rasterized slide images (required)")
	syncCmd.Flags().String("sync", "", "path to write the synchronization script to (required)")
	syncCmd.Flags().String("output", "", "path to write a rendered slide-synchronized video to (required)")
	syncCmd.Flags().Bool("no-cache", false, "ignore and overwrite any existing cached synchronization script")

	_ = viper.BindPFlag("paths.footage", syncCmd.Flags().Lookup("footage"))
	_ = viper.BindPFlag("paths.slides", syncCmd.Flags().Lookup("slides"))
	_ = viper.BindPFlag("paths.sync", syncCmd.Flags().Lookup("sync"))
	_ = viper.BindPFlag("paths.output", syncCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if cfg.Paths.Footage == "" || cfg.Paths.Slides == "" || cfg.Paths.Sync == "" || cfg.Paths.Output == "" {
		_ = cmd.Help()
		return withExitCode(2, errors.New("--footage, --slides, --sync and --output are all required"))
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")

	logger := slog.Default().With("footage", cfg.Paths.Footage, "slides", cfg.Paths.Slides)

	if metricsAddr := cfg.Metrics.Addr; metricsAddr != "" {
		srv := metricsserver.New(metricsAddr)
		errCh := srv.Start()
		logger.Info("serving metrics", "addr", metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown error", "error", err)
			}
		}()
		go func() {
			if err := <-errCh; err != nil {
				logger.Error("metrics server exited", "error", err)
			}
		}()
	}

	if !noCache {
		stream, found, err := driver.LoadCached(*cfg)
		if err != nil {
			logger.Warn("failed to inspect synchronization cache", "error", err)
		} else if found {
			logger.Info("reusing cached synchronization script")
			return writeSyncFile(cfg.Paths.Sync, stream.String())
		}
	}

	d, err := driver.Open(*cfg, logger)
	if err != nil {
		return withExitCode(3, fmt.Errorf("opening footage and slide deck: %w", err))
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("error closing driver", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := d.Run(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrUnrecoverable) {
			return withExitCode(4, err)
		}
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted before completion")
			return writeSyncFile(cfg.Paths.Sync, stream.String())
		}
		return withExitCode(1, err)
	}

	return writeSyncFile(cfg.Paths.Sync, stream.String())
}

func writeSyncFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil { //nolint:gosec // not secret content
		return fmt.Errorf("sync: write %s: %w", path, err)
	}
	return nil
}
