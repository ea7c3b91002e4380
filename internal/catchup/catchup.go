// Package catchup implements component E, the Catchup Engine: on
// startup, materializes everything that happened to a guild while the
// archiver was offline, then hands control to Live Ingest. Grounded on
// original_source/src/catchup.rs (run_full_guild_catchup,
// run_message_catchup's for_each_concurrent, process_channel's
// cursor-then-paginate loop) and metadata.rs's do_full_catchup.
package catchup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Milkshiift/BigBrother-bot/internal/cache"
	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/downloader"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/metrics"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/normalize"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
)

// Config tunes catchup pagination and concurrency, sourced from the
// catchup.* and metadata.* config sections (§6).
type Config struct {
	MessagesPerRequest int // default 100
	WriteBatchSize     int // default 1000
	ChannelConcurrency int // default 4
	MemberFetchLimit   int // default 1000
}

// DefaultConfig returns the defaults named in §4.E/§6.
func DefaultConfig() Config {
	return Config{MessagesPerRequest: 100, WriteBatchSize: 1000, ChannelConcurrency: 4, MemberFetchLimit: 1000}
}

// Engine drives per-guild metadata and message backfill.
type Engine struct {
	cfg        Config
	dataPath   string
	rest       discord.REST
	pool       *streamlog.Pool
	cache      *cache.Cache
	downloader *downloader.Downloader

	mu       sync.Mutex
	breakers map[uint64]*gobreaker.CircuitBreaker[any]

	// OnChannelDone, if set, is called once a channel's message backfill
	// finishes or is abandoned on fatal error — success or failure alike
	// releases live events for that channel, per §4.E ("MUST complete (or
	// be explicitly abandoned on fatal error) before live events... are
	// appended"). The Supervisor wires this to the ingest Gate's Release.
	OnChannelDone func(ctx context.Context, guildID, channelID uint64)
}

// New builds an Engine. dataPath roots every stream and asset path it
// produces.
func New(cfg Config, dataPath string, rest discord.REST, pool *streamlog.Pool, ch *cache.Cache, dl *downloader.Downloader) *Engine {
	return &Engine{
		cfg: cfg, dataPath: dataPath, rest: rest, pool: pool, cache: ch, downloader: dl,
		breakers: make(map[uint64]*gobreaker.CircuitBreaker[any]),
	}
}

// RunGuild performs full catchup for one guild: metadata first, then
// per-channel message backfill, per §4.E.
func (e *Engine) RunGuild(ctx context.Context, guildID uint64) error {
	logging.Info().Uint64("guild", guildID).Msg("starting full catchup for guild")

	if err := e.metadataCatchup(ctx, guildID); err != nil {
		return fmt.Errorf("metadata catchup for guild %d: %w", guildID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.messageCatchup(ctx, guildID); err != nil {
		return fmt.Errorf("message catchup for guild %d: %w", guildID, err)
	}

	logging.Info().Uint64("guild", guildID).Msg("full catchup complete for guild")
	return nil
}

func (e *Engine) breakerFor(guildID uint64) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[guildID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        fmt.Sprintf("guild-%d", guildID),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("guild_breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("catchup circuit breaker state change")
		},
	})
	e.breakers[guildID] = b
	return b
}

// metadataCatchup runs the reconcile-then-diff pass in the fixed order
// guild, roles, channels, emojis, stickers, members (§9 Open Question
// resolution 3).
func (e *Engine) metadataCatchup(ctx context.Context, guildID uint64) error {
	breaker := e.breakerFor(guildID)

	res, err := breaker.Execute(func() (any, error) { return e.rest.Guild(ctx, guildID) })
	if err != nil {
		return err
	}
	guild := res.(*discord.Guild)

	if err := e.appendMetadata(ctx, guildID, model.MetadataGuild, normalize.Guild(*guild)); err != nil {
		return err
	}

	res, err = breaker.Execute(func() (any, error) { return e.rest.GuildRoles(ctx, guildID) })
	if err != nil {
		return err
	}
	if err := e.reconcileRoles(ctx, guildID, res.([]discord.Role)); err != nil {
		return err
	}

	res, err = breaker.Execute(func() (any, error) { return e.rest.GuildChannels(ctx, guildID) })
	if err != nil {
		return err
	}
	if err := e.reconcileChannels(ctx, guildID, res.([]discord.Channel)); err != nil {
		return err
	}

	if err := e.reconcileEmojis(ctx, guildID, guild.Emojis); err != nil {
		return err
	}
	if err := e.reconcileStickers(ctx, guildID, guild.Stickers); err != nil {
		return err
	}

	if err := e.syncMembers(ctx, guildID, breaker); err != nil {
		return err
	}

	logging.Info().Uint64("guild", guildID).Msg("metadata catchup complete")
	return nil
}

func (e *Engine) reconcileRoles(ctx context.Context, guildID uint64, roles []discord.Role) error {
	alive, err := foldReplayable(model.StreamPath(e.dataPath, model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: model.MetadataRoles}), func(b []byte) (model.Replayable, bool) {
		var r model.RoleEvent
		if json.Unmarshal(b, &r) != nil {
			return nil, false
		}
		return r, true
	})
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool, len(roles))
	for _, r := range roles {
		seen[r.ID] = true
		if err := e.appendMetadata(ctx, guildID, model.MetadataRoles, normalize.Role(r)); err != nil {
			return err
		}
	}
	for id := range alive {
		if !seen[id] {
			if err := e.appendMetadata(ctx, guildID, model.MetadataRoles, model.NewDeletedRole(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) reconcileChannels(ctx context.Context, guildID uint64, channels []discord.Channel) error {
	alive, err := foldReplayable(model.StreamPath(e.dataPath, model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: model.MetadataChannels}), func(b []byte) (model.Replayable, bool) {
		var c model.ChannelEvent
		if json.Unmarshal(b, &c) != nil {
			return nil, false
		}
		return c, true
	})
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool, len(channels))
	for _, c := range channels {
		seen[c.ID] = true
		e.cache.Put(guildID, c)
		if err := e.appendMetadata(ctx, guildID, model.MetadataChannels, normalize.Channel(c)); err != nil {
			return err
		}
	}
	for id := range alive {
		if !seen[id] {
			e.cache.Remove(guildID, id)
			if err := e.appendMetadata(ctx, guildID, model.MetadataChannels, model.NewDeletedChannel(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) reconcileEmojis(ctx context.Context, guildID uint64, emojis []discord.Emoji) error {
	alive, err := foldReplayable(model.StreamPath(e.dataPath, model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: model.MetadataEmojis}), func(b []byte) (model.Replayable, bool) {
		var em model.EmojiEvent
		if json.Unmarshal(b, &em) != nil {
			return nil, false
		}
		return em, true
	})
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool, len(emojis))
	for _, em := range emojis {
		seen[em.ID] = true
		ev, req := normalize.Emoji(e.dataPath, guildID, em)
		if err := e.appendMetadata(ctx, guildID, model.MetadataEmojis, ev); err != nil {
			return err
		}
		if err := e.downloader.Enqueue(ctx, req); err != nil {
			return err
		}
	}
	for id := range alive {
		if !seen[id] {
			if err := e.appendMetadata(ctx, guildID, model.MetadataEmojis, model.NewDeletedEmoji(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) reconcileStickers(ctx context.Context, guildID uint64, stickers []discord.Sticker) error {
	alive, err := foldReplayable(model.StreamPath(e.dataPath, model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: model.MetadataStickers}), func(b []byte) (model.Replayable, bool) {
		var s model.StickerEvent
		if json.Unmarshal(b, &s) != nil {
			return nil, false
		}
		return s, true
	})
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool, len(stickers))
	for _, s := range stickers {
		seen[s.ID] = true
		ev, req := normalize.Sticker(e.dataPath, guildID, s)
		if err := e.appendMetadata(ctx, guildID, model.MetadataStickers, ev); err != nil {
			return err
		}
		if err := e.downloader.Enqueue(ctx, req); err != nil {
			return err
		}
	}
	for id := range alive {
		if !seen[id] {
			if err := e.appendMetadata(ctx, guildID, model.MetadataStickers, model.NewDeletedSticker(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) syncMembers(ctx context.Context, guildID uint64, breaker *gobreaker.CircuitBreaker[any]) error {
	alive, err := foldReplayable(model.StreamPath(e.dataPath, model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: model.MetadataMembers}), func(b []byte) (model.Replayable, bool) {
		var m model.MemberEvent
		if json.Unmarshal(b, &m) != nil {
			return nil, false
		}
		return m, true
	})
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool)
	after := uint64(0)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := breaker.Execute(func() (any, error) {
			return e.rest.GuildMembers(ctx, guildID, after, e.cfg.MemberFetchLimit)
		})
		if err != nil {
			return err
		}
		members := res.([]discord.Member)
		if len(members) == 0 {
			break
		}
		after = members[len(members)-1].UserID
		total += len(members)

		for _, m := range members {
			seen[m.UserID] = true
			if err := e.appendMetadata(ctx, guildID, model.MetadataMembers, normalize.Member(m)); err != nil {
				return err
			}
			if m.Avatar != nil {
				animated := len(*m.Avatar) > 2 && (*m.Avatar)[:2] == "a_"
				if err := e.downloader.Enqueue(ctx, normalize.Avatar(e.dataPath, guildID, m.UserID, *m.Avatar, animated)); err != nil {
					return err
				}
			}
		}
		if len(members) < e.cfg.MemberFetchLimit {
			break
		}
	}

	for id := range alive {
		if !seen[id] {
			left := uint64(time.Now().UnixMilli())
			if err := e.appendMetadata(ctx, guildID, model.MetadataMembers, normalize.MemberRemove(id, left)); err != nil {
				return err
			}
		}
	}

	logging.Info().Uint64("guild", guildID).Int("count", total).Msg("synced members")
	return nil
}

func (e *Engine) appendMetadata(ctx context.Context, guildID uint64, kind model.MetadataKind, event any) error {
	w, err := e.pool.Get(model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: kind})
	if err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	metrics.RecordStreamWrite("metadata")
	return w.Append(ctx, line, true)
}

// foldReplayable replays a metadata log into a set of currently-alive
// record ids, tolerating corrupt lines per §7's decode taxonomy.
func foldReplayable(path string, decode func([]byte) (model.Replayable, bool)) (map[uint64]bool, error) {
	lines, err := streamlog.ReadLines(path)
	if err != nil {
		return nil, err
	}
	alive := make(map[uint64]bool)
	for _, line := range lines {
		rec, ok := decode(line)
		if !ok {
			continue
		}
		if rec.IsDelete() {
			delete(alive, rec.RecordID())
		} else {
			alive[rec.RecordID()] = true
		}
	}
	return alive, nil
}

// messageCatchup backfills every archivable channel in guildID
// concurrently, bounded by ChannelConcurrency (§4.E, §5).
func (e *Engine) messageCatchup(ctx context.Context, guildID uint64) error {
	channelIDs := e.cache.GuildChannels(guildID)
	if len(channelIDs) == 0 {
		logging.Warn().Uint64("guild", guildID).Msg("no channels found in cache for guild")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ChannelConcurrency)

	for _, channelID := range channelIDs {
		channelID := channelID
		if !e.cache.IsArchivable(guildID, channelID) {
			if e.OnChannelDone != nil {
				e.OnChannelDone(ctx, guildID, channelID)
			}
			continue
		}
		g.Go(func() error {
			metrics.IncCatchupChannelsActive(1)
			defer metrics.IncCatchupChannelsActive(-1)
			if err := e.catchupChannel(gctx, guildID, channelID); err != nil {
				logging.Error().Err(err).Uint64("guild", guildID).Uint64("channel", channelID).Msg("failed to catch up channel")
			}
			if e.OnChannelDone != nil {
				e.OnChannelDone(ctx, guildID, channelID)
			}
			return nil // one channel's failure never aborts the guild's whole backfill
		})
	}

	return g.Wait()
}

func (e *Engine) catchupChannel(ctx context.Context, guildID, channelID uint64) error {
	key := model.StreamKey{GuildID: guildID, Kind: model.StreamMessages, ChannelID: channelID}
	path := model.StreamPath(e.dataPath, key)

	cursor, found, err := streamlog.LastMessageID(path)
	if err != nil {
		logging.Warn().Err(err).Uint64("channel", channelID).Msg("cursor unreadable, falling back to full history")
	}
	after := uint64(0)
	if found {
		after = cursor
	}

	logging.Info().Uint64("channel", channelID).Uint64("start_after", after).Msg("starting message catchup")

	writer, err := e.pool.Get(key)
	if err != nil {
		return err
	}
	breaker := e.breakerFor(guildID)

	var lines [][]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := breaker.Execute(func() (any, error) {
			return e.rest.ChannelMessages(ctx, channelID, after, e.cfg.MessagesPerRequest)
		})
		if err != nil {
			return err
		}
		messages := res.([]discord.Message)
		if len(messages) == 0 {
			break
		}

		// The platform returns newest-first; the next cursor is the
		// newest id seen, and the buffer must be written in ascending
		// order, per §4.E.
		after = messages[0].ID
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}

		for _, m := range messages {
			ev, assets := normalize.Message(e.dataPath, m)
			line, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			lines = append(lines, line)
			for _, a := range assets {
				if err := e.downloader.Enqueue(ctx, a); err != nil {
					return err
				}
			}
		}

		if len(lines) >= e.cfg.WriteBatchSize {
			if err := writer.AppendBulk(ctx, lines, true); err != nil {
				return err
			}
			metrics.RecordCatchupMessage(fmt.Sprintf("%d", guildID), len(lines))
			for range lines {
				metrics.RecordStreamWrite("messages")
			}
			lines = lines[:0]
		}

		if len(messages) < e.cfg.MessagesPerRequest {
			break
		}
	}

	if err := writer.AppendBulk(ctx, lines, true); err != nil {
		return err
	}
	if len(lines) > 0 {
		metrics.RecordCatchupMessage(fmt.Sprintf("%d", guildID), len(lines))
		for range lines {
			metrics.RecordStreamWrite("messages")
		}
	}

	logging.Info().Uint64("channel", channelID).Msg("message catchup complete for channel")
	return nil
}
