// Command bigbrother runs the continuous NDJSON archiver: load
// configuration, initialize logging, acquire the data-dir lockfile,
// build the supervisor tree, and run until a shutdown signal arrives.
//
// Grounded on original_source/src/main.rs's overall startup sequence
// (load settings, init tracing, build State, run until ctrl_c) and
// restructured around the suture supervision tree the way
// cmd/server/main.go builds and starts its own SupervisorTree.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Milkshiift/BigBrother-bot/internal/catchup"
	"github.com/Milkshiift/BigBrother-bot/internal/config"
	"github.com/Milkshiift/BigBrother-bot/internal/downloader"
	bberrors "github.com/Milkshiift/BigBrother-bot/internal/errors"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
	"github.com/Milkshiift/BigBrother-bot/internal/supervisor"
)

// Exit codes per spec.md §6: 0 clean shutdown, 1 fatal init failure,
// 2 fatal runtime failure.
const (
	exitOK          = 0
	exitInitFailure = 1
	exitRunFailure  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
		return exitInitFailure
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("data_path", cfg.DataPath).Msg("bigbrother starting")

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		logging.Error().Err(err).Msg("failed to create data directory")
		return exitInitFailure
	}

	client := newUnimplementedClient()

	deps := supervisor.Deps{
		DataPath: cfg.DataPath,
		Gateway:  client,
		REST:     client,
		StreamConfig: streamlog.Config{
			BatchLines:        streamlog.DefaultConfig().BatchLines,
			BatchBytes:        streamlog.DefaultConfig().BatchBytes,
			AutoflushInterval: cfg.AutoflushInterval(),
		},
		CatchupConfig: catchup.Config{
			MessagesPerRequest: cfg.Catchup.MessagesPerRequest,
			WriteBatchSize:     cfg.Catchup.WriteBatchSize,
			ChannelConcurrency: cfg.Catchup.ChannelConcurrency,
			MemberFetchLimit:   cfg.Metadata.MemberFetchLimit,
		},
		DownloadConfig: downloader.Config{
			Concurrency: cfg.Network.DownloadConcurrencyLimit,
			Timeout:     cfg.Network.Timeout,
			MaxRetries:  downloader.DefaultConfig().MaxRetries,
		},
		HTTPAddr:   cfg.Ops.ListenAddr,
		TreeConfig: supervisor.DefaultTreeConfig(),
		SlogLogger: logging.NewSlogLogger(),
	}

	sup, err := supervisor.New(deps)
	if err != nil {
		logging.Error().Err(err).Msg("failed to build supervisor")
		return exitInitFailure
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, bberrors.ErrLockHeld) {
			logging.Error().Err(err).Msg("data directory is locked by another instance")
			return exitInitFailure
		}
		logging.Error().Err(err).Msg("supervisor exited with error")
		return exitRunFailure
	}

	logging.Info().Msg("bigbrother stopped gracefully")
	return exitOK
}
