// Package supervisor implements component G's process lifecycle:
// acquire the data-dir lockfile, bring up storage before ingest, start
// the suture tree and flip the gateway to deliver mode right away, then
// run catchup per guild on GUILD_CREATE while gating live events per
// channel, until a shutdown signal arrives. Catchup does not complete
// before the switch to deliver mode.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Milkshiift/BigBrother-bot/internal/cache"
	"github.com/Milkshiift/BigBrother-bot/internal/catchup"
	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/downloader"
	"github.com/Milkshiift/BigBrother-bot/internal/httpapi"
	"github.com/Milkshiift/BigBrother-bot/internal/ingest"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
	"github.com/Milkshiift/BigBrother-bot/internal/tracker"
)

// Deps bundles everything the Supervisor needs to construct the
// archiver's runtime, per §4.G's lifecycle. Concrete Gateway/REST
// implementations are injected by cmd/bigbrother/main.go; this package
// only depends on the discord.REST/discord.Gateway interfaces.
type Deps struct {
	DataPath      string
	Gateway       discord.Gateway
	REST          discord.REST
	StreamConfig  streamlog.Config
	CatchupConfig catchup.Config
	DownloadConfig downloader.Config
	HTTPAddr      string
	TreeConfig    TreeConfig
	SlogLogger    *slog.Logger
}

// Supervisor owns every long-running task's lifecycle and the
// startup/shutdown sequence.
type Supervisor struct {
	deps Deps
	tree *Tree

	lockfile *Lockfile
	pool     *streamlog.Pool
	tracker  *tracker.Tracker
	dl       *downloader.Downloader
	cache    *cache.Cache
	engine   *catchup.Engine
	router   *ingest.Router
	http     *httpapi.Server

	ready atomic.Bool
}

// New wires every component but does not start anything yet.
func New(deps Deps) (*Supervisor, error) {
	if deps.SlogLogger == nil {
		deps.SlogLogger = logging.NewSlogLogger()
	}

	s := &Supervisor{deps: deps}
	s.cache = cache.New()
	s.pool = streamlog.NewPool(deps.DataPath, deps.StreamConfig)

	tr, err := tracker.Open(model.DownloadsLogPath(deps.DataPath), deps.StreamConfig)
	if err != nil {
		return nil, fmt.Errorf("open download tracker: %w", err)
	}
	s.tracker = tr

	s.dl = downloader.New(deps.DownloadConfig, deps.DataPath, tr)
	s.engine = catchup.New(deps.CatchupConfig, deps.DataPath, deps.REST, s.pool, s.cache, s.dl)
	s.router = ingest.New(deps.Gateway, s.cache, s.pool, s.dl, deps.DataPath, 0)
	s.http = httpapi.New(deps.HTTPAddr, func() bool { return s.ready.Load() })

	s.engine.OnChannelDone = func(ctx context.Context, guildID, channelID uint64) {
		if err := s.router.Gate().Release(ctx, channelID); err != nil {
			logging.Warn().Err(err).Uint64("guild", guildID).Uint64("channel", channelID).Msg("failed to release live gate for channel")
		}
	}
	s.router.OnGuildCreate = func(ctx context.Context, guildID uint64) {
		s.startGuildCatchup(ctx, guildID)
	}

	s.tree = NewTree(deps.SlogLogger, deps.TreeConfig)
	return s, nil
}

// startGuildCatchup fetches guildID's channel list, closes their gates
// before any message traffic for them can be delivered, and runs the
// Catchup Engine for the guild in the background so the ingest loop
// keeps draining other guilds' events.
func (s *Supervisor) startGuildCatchup(ctx context.Context, guildID uint64) {
	channels, err := s.deps.REST.GuildChannels(ctx, guildID)
	if err != nil {
		logging.Error().Err(err).Uint64("guild", guildID).Msg("failed to list channels for catchup, guild will not be gated")
		return
	}
	ids := make([]uint64, len(channels))
	for i, c := range channels {
		ids[i] = c.ID
	}
	s.router.Gate().Register(ids)

	go func() {
		if err := s.engine.RunGuild(ctx, guildID); err != nil {
			logging.Error().Err(err).Uint64("guild", guildID).Msg("catchup failed for guild")
		}
	}()
}

// Run executes the full §4.G lifecycle and blocks until ctx is
// canceled or a fatal startup error occurs.
func (s *Supervisor) Run(ctx context.Context) error {
	lf, err := AcquireLockfile(s.deps.DataPath)
	if err != nil {
		return fmt.Errorf("acquire lockfile: %w", err)
	}
	s.lockfile = lf
	defer func() {
		if err := s.lockfile.Release(); err != nil {
			logging.Warn().Err(err).Msg("failed to release lockfile")
		}
	}()

	if err := s.dl.ResumePending(ctx); err != nil {
		return fmt.Errorf("resume pending downloads: %w", err)
	}

	s.tree.AddStorageService(NewFuncService("downloader", s.dl.Run))
	s.tree.AddOpsService(s.http)

	s.deps.Gateway.SetMode(discord.ModeBuffer)
	s.tree.AddIngestService(NewFuncService("live-ingest-router", s.router.Run))

	treeErrCh := s.tree.ServeBackground(ctx)

	s.deps.Gateway.SetMode(discord.ModeDeliver)
	s.ready.Store(true)
	logging.Info().Msg("supervisor is ready, delivering live events")

	select {
	case err := <-treeErrCh:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

// shutdown runs the graceful-drain sequence from §4.G step 8: stop
// accepting new events (the caller has already canceled ctx, which
// stops Live Ingest's Run loop), flush every writer, close the
// downloader (waiting for in-flight work), and fsync the tracker.
func (s *Supervisor) shutdown() error {
	s.ready.Store(false)
	logging.Info().Msg("shutting down")

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.pool.FlushAll(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("error flushing streams during shutdown")
	}

	s.dl.Close()

	if err := s.tracker.Flush(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("error flushing download tracker during shutdown")
	}
	if err := s.pool.CloseAll(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("error closing streams during shutdown")
	}
	return nil
}
