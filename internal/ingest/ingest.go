// Package ingest implements component F, Live Ingest: the single task
// draining the gateway's live event stream, honoring the per-channel gate
// from Catchup (component E) and routing everything else straight
// through the Normalizer into the Log Writer Pool and Asset Downloader.
// Grounded on original_source/src/dispatch.rs's handle_event dispatch
// table.
package ingest

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/Milkshiift/BigBrother-bot/internal/cache"
	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/downloader"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/metrics"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/normalize"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
)

// Router consumes discord.Gateway's event channel and dispatches each
// event to the right stream, gated per channel.
type Router struct {
	gateway    discord.Gateway
	cache      *cache.Cache
	pool       *streamlog.Pool
	downloader *downloader.Downloader
	dataPath   string
	gate       *Gate

	// OnGuildCreate, if set, is called synchronously from the ingest loop
	// for every EventGuildCreate, before any other event for that guild
	// can reach handle — real gateway sessions always deliver a guild's
	// GUILD_CREATE before any message traffic for its channels, so
	// registering the gate here (blocking the single ingest task briefly)
	// races with nothing. The Supervisor wires this to fetch the guild's
	// channel list, close their gates, and launch the Catchup Engine.
	OnGuildCreate func(ctx context.Context, guildID uint64)
}

// New builds a Router. hardCap bounds the per-channel gate buffer (§4.F
// backpressure); pass 0 for the default.
func New(gateway discord.Gateway, ch *cache.Cache, pool *streamlog.Pool, dl *downloader.Downloader, dataPath string, hardCap int) *Router {
	r := &Router{gateway: gateway, cache: ch, pool: pool, downloader: dl, dataPath: dataPath}
	r.gate = NewGate(hardCap, r.handle)
	return r
}

// Gate exposes the router's per-channel gate so the Supervisor can
// Register channels before catchup starts and Release them as each
// channel's backfill completes.
func (r *Router) Gate() *Gate { return r.gate }

// Run drains gateway.Events() until the channel closes or ctx is
// canceled. Presence/typing/read-state traffic is discarded by
// construction — discord.Event's Kind enum has no variant for it, so
// there is nothing for this loop to see or drop.
func (r *Router) Run(ctx context.Context) error {
	events := r.gateway.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.gate.Submit(ctx, ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Router) handle(ctx context.Context, ev discord.Event) error {
	switch ev.Kind {
	case discord.EventMessageCreate:
		return r.handleMessageCreate(ctx, ev)
	case discord.EventMessageUpdate:
		return r.handleMessageUpdate(ctx, ev)
	case discord.EventMessageDelete:
		return r.appendMessage(ctx, ev.GuildID, ev.ChannelID, normalize.MessageDelete(ev.MessageID))
	case discord.EventMessageBulkDelete:
		return r.appendMessage(ctx, ev.GuildID, ev.ChannelID, normalize.MessageBulkDelete(ev.BulkIDs))
	case discord.EventReactionAdd:
		if !r.archivable(ev.GuildID, ev.ChannelID) {
			return nil
		}
		return r.appendMessageAny(ctx, ev.GuildID, ev.ChannelID, normalize.ReactionAdd(ev.MessageID, ev.ReactionUser, derefReaction(ev.Reaction)))
	case discord.EventReactionRemove:
		if !r.archivable(ev.GuildID, ev.ChannelID) {
			return nil
		}
		return r.appendMessageAny(ctx, ev.GuildID, ev.ChannelID, normalize.ReactionRemove(ev.MessageID, ev.ReactionUser, derefReaction(ev.Reaction)))
	case discord.EventReactionRemoveAll:
		if !r.archivable(ev.GuildID, ev.ChannelID) {
			return nil
		}
		return r.appendMessageAny(ctx, ev.GuildID, ev.ChannelID, normalize.ReactionRemoveAll(ev.MessageID))
	case discord.EventReactionRemoveEmoji:
		if !r.archivable(ev.GuildID, ev.ChannelID) {
			return nil
		}
		return r.appendMessageAny(ctx, ev.GuildID, ev.ChannelID, normalize.ReactionRemoveEmoji(ev.MessageID, derefReaction(ev.Reaction)))
	case discord.EventMemberAdd, discord.EventMemberUpdate:
		return r.handleMember(ctx, ev)
	case discord.EventMemberRemove:
		return r.appendMetadata(ctx, ev.GuildID, model.MetadataMembers, normalize.MemberRemove(ev.UserID, nowMillis()))
	case discord.EventRoleUpdate:
		if ev.Role == nil {
			return nil
		}
		return r.appendMetadata(ctx, ev.GuildID, model.MetadataRoles, normalize.Role(*ev.Role))
	case discord.EventRoleDelete:
		return r.appendMetadata(ctx, ev.GuildID, model.MetadataRoles, model.NewDeletedRole(ev.RoleID))
	case discord.EventChannelUpdate:
		return r.handleChannelUpdate(ctx, ev)
	case discord.EventChannelDelete:
		r.cache.Remove(ev.GuildID, ev.ChannelID)
		return r.appendMetadata(ctx, ev.GuildID, model.MetadataChannels, model.NewDeletedChannel(ev.ChannelID))
	case discord.EventGuildUpdate:
		return r.handleGuildUpdate(ctx, ev)
	case discord.EventGuildCreate:
		// Guild availability is the Supervisor's cue to run catchup for a
		// (re)joined guild; Live Ingest itself has nothing to persist here.
		if r.OnGuildCreate != nil {
			r.OnGuildCreate(ctx, ev.GuildID)
		}
		return nil
	default:
		logging.Warn().Int("kind", int(ev.Kind)).Msg("dropping unrecognized gateway event")
		return nil
	}
}

func (r *Router) archivable(guildID, channelID uint64) bool {
	return r.cache.IsArchivable(guildID, channelID)
}

func (r *Router) handleMessageCreate(ctx context.Context, ev discord.Event) error {
	if ev.Message == nil || !r.archivable(ev.GuildID, ev.ChannelID) {
		return nil
	}
	wire, assets := normalize.Message(r.dataPath, *ev.Message)
	if err := r.appendMessage(ctx, ev.GuildID, ev.ChannelID, wire); err != nil {
		return err
	}
	for _, a := range assets {
		if err := r.downloader.Enqueue(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) handleMessageUpdate(ctx context.Context, ev discord.Event) error {
	if ev.Message == nil || !r.archivable(ev.GuildID, ev.ChannelID) {
		return nil
	}
	wire := normalize.MessageUpdate(*ev.Message)
	if err := r.appendMessage(ctx, ev.GuildID, ev.ChannelID, wire); err != nil {
		return err
	}
	assets := normalize.AttachmentRequests(r.dataPath, ev.GuildID, ev.ChannelID, ev.Message.Attachments)
	for _, a := range assets {
		if err := r.downloader.Enqueue(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) handleMember(ctx context.Context, ev discord.Event) error {
	if ev.Member == nil {
		return nil
	}
	if err := r.appendMetadata(ctx, ev.GuildID, model.MetadataMembers, normalize.Member(*ev.Member)); err != nil {
		return err
	}
	if ev.Member.Avatar == nil {
		return nil
	}
	animated := len(*ev.Member.Avatar) > 2 && (*ev.Member.Avatar)[:2] == "a_"
	return r.downloader.Enqueue(ctx, normalize.Avatar(r.dataPath, ev.GuildID, ev.Member.UserID, *ev.Member.Avatar, animated))
}

func (r *Router) handleChannelUpdate(ctx context.Context, ev discord.Event) error {
	if ev.Channel == nil {
		return nil
	}
	r.cache.Put(ev.GuildID, *ev.Channel)
	return r.appendMetadata(ctx, ev.GuildID, model.MetadataChannels, normalize.Channel(*ev.Channel))
}

func (r *Router) handleGuildUpdate(ctx context.Context, ev discord.Event) error {
	if ev.Guild == nil {
		return nil
	}
	if err := r.appendMetadata(ctx, ev.GuildID, model.MetadataGuild, normalize.Guild(*ev.Guild)); err != nil {
		return err
	}
	if ev.Guild.Icon != nil {
		if err := r.downloader.Enqueue(ctx, normalize.GuildIcon(r.dataPath, ev.GuildID, *ev.Guild.Icon, isAnimatedHash(*ev.Guild.Icon))); err != nil {
			return err
		}
	}
	if ev.Guild.Banner != nil {
		if err := r.downloader.Enqueue(ctx, normalize.GuildBanner(r.dataPath, ev.GuildID, *ev.Guild.Banner, isAnimatedHash(*ev.Guild.Banner))); err != nil {
			return err
		}
	}
	if ev.Guild.Splash != nil {
		if err := r.downloader.Enqueue(ctx, normalize.GuildSplash(r.dataPath, ev.GuildID, *ev.Guild.Splash)); err != nil {
			return err
		}
	}
	return nil
}

func isAnimatedHash(hash string) bool { return len(hash) > 2 && hash[:2] == "a_" }

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

func derefReaction(r *discord.Reaction) discord.Reaction {
	if r == nil {
		return discord.Reaction{}
	}
	return *r
}

func (r *Router) appendMessage(ctx context.Context, guildID, channelID uint64, ev model.MessageEvent) error {
	return r.appendMessageAny(ctx, guildID, channelID, ev)
}

func (r *Router) appendMessageAny(ctx context.Context, guildID, channelID uint64, ev any) error {
	writer, err := r.pool.Get(model.StreamKey{GuildID: guildID, Kind: model.StreamMessages, ChannelID: channelID})
	if err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	metrics.RecordStreamWrite("messages")
	return writer.Append(ctx, line, false) // live ingest relies on the autoflush timer, not durable-on-append (§4.A)
}

func (r *Router) appendMetadata(ctx context.Context, guildID uint64, kind model.MetadataKind, ev any) error {
	writer, err := r.pool.Get(model.StreamKey{GuildID: guildID, Kind: model.StreamMetadata, Metadata: kind})
	if err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	metrics.RecordStreamWrite("metadata")
	return writer.Append(ctx, line, false)
}
