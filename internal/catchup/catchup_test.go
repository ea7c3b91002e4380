package catchup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/cache"
	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/downloader"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
	"github.com/Milkshiift/BigBrother-bot/internal/tracker"
)

func cfg() streamlog.Config {
	return streamlog.Config{BatchLines: 1000, BatchBytes: 1 << 20, AutoflushInterval: time.Hour}
}

func newHarness(t *testing.T) (*Engine, string, *cache.Cache) {
	t.Helper()
	dir := t.TempDir()
	tr, err := tracker.Open(model.DownloadsLogPath(dir), cfg())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close(context.Background()) })

	dl := downloader.New(downloader.DefaultConfig(), dir, tr)
	go dl.Run(context.Background())
	t.Cleanup(dl.Close)

	pool := streamlog.NewPool(dir, cfg())
	t.Cleanup(func() { pool.CloseAll(context.Background()) })

	ch := cache.New()
	return New(DefaultConfig(), dir, nil, pool, ch, dl), dir, ch
}

type fakeREST struct {
	guild    *discord.Guild
	roles    []discord.Role
	channels []discord.Channel
	members  [][]discord.Member // successive pages returned by GuildMembers
	messages [][]discord.Message // successive pages returned by ChannelMessages

	memberCalls  int
	messageCalls int
	failAfter    int // ChannelMessages call index (1-based) to fail on, 0 disables
}

func (f *fakeREST) ChannelMessages(ctx context.Context, channelID uint64, after uint64, limit int) ([]discord.Message, error) {
	f.messageCalls++
	if f.failAfter != 0 && f.messageCalls == f.failAfter {
		return nil, errors.New("boom")
	}
	idx := f.messageCalls - 1
	if idx >= len(f.messages) {
		return nil, nil
	}
	return f.messages[idx], nil
}

func (f *fakeREST) GuildMembers(ctx context.Context, guildID uint64, after uint64, limit int) ([]discord.Member, error) {
	f.memberCalls++
	idx := f.memberCalls - 1
	if idx >= len(f.members) {
		return nil, nil
	}
	return f.members[idx], nil
}

func (f *fakeREST) Guild(ctx context.Context, guildID uint64) (*discord.Guild, error) { return f.guild, nil }
func (f *fakeREST) GuildRoles(ctx context.Context, guildID uint64) ([]discord.Role, error) {
	return f.roles, nil
}
func (f *fakeREST) GuildChannels(ctx context.Context, guildID uint64) ([]discord.Channel, error) {
	return f.channels, nil
}

func TestCatchupChannelWritesMessagesInAscendingOrder(t *testing.T) {
	e, dir, _ := newHarness(t)
	rest := &fakeREST{
		messages: [][]discord.Message{
			{{ID: 30, ChannelID: 1, GuildID: 1}, {ID: 20, ChannelID: 1, GuildID: 1}},
		},
	}
	e.rest = rest

	require.NoError(t, e.catchupChannel(context.Background(), 1, 1))

	lines, err := streamlog.ReadLines(model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMessages, ChannelID: 1}))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var first model.MessageEvent
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.Equal(t, uint64(20), first.ID)
}

func TestMessageCatchupSkipsNonArchivableChannels(t *testing.T) {
	e, _, ch := newHarness(t)
	ch.Put(1, discord.Channel{ID: 10, Kind: discord.ChannelGuildText})
	ch.Put(1, discord.Channel{ID: 11, Kind: discord.ChannelGuildCategory})

	rest := &fakeREST{messages: [][]discord.Message{{}}}
	e.rest = rest

	require.NoError(t, e.messageCatchup(context.Background(), 1))
	require.LessOrEqual(t, rest.messageCalls, 1) // only channel 10 is archivable
}

func TestSyncMembersRemovesStaleEntriesNotInFreshFetch(t *testing.T) {
	e, dir, _ := newHarness(t)
	path := model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMetadata, Metadata: model.MetadataMembers})

	writer, err := e.pool.Get(model.StreamKey{GuildID: 1, Kind: model.StreamMetadata, Metadata: model.MetadataMembers})
	require.NoError(t, err)
	line, err := json.Marshal(model.MemberEvent{UserID: 99, Username: "ghost"})
	require.NoError(t, err)
	require.NoError(t, writer.Append(context.Background(), line, true))

	breaker := e.breakerFor(1)
	rest := &fakeREST{members: [][]discord.Member{{{UserID: 1, Username: "alice"}}}}
	e.rest = rest

	require.NoError(t, e.syncMembers(context.Background(), 1, breaker))

	lines, err := streamlog.ReadLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 3) // original ghost line + alice + ghost tombstone

	var tombstone model.MemberEvent
	require.NoError(t, json.Unmarshal(lines[2], &tombstone))
	require.Equal(t, uint64(99), tombstone.UserID)
	require.NotNil(t, tombstone.LeftAt)
}

func TestReconcileChannelsUpdatesCacheAndEmitsTombstone(t *testing.T) {
	e, dir, ch := newHarness(t)
	path := model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMetadata, Metadata: model.MetadataChannels})

	writer, err := e.pool.Get(model.StreamKey{GuildID: 1, Kind: model.StreamMetadata, Metadata: model.MetadataChannels})
	require.NoError(t, err)
	line, err := json.Marshal(model.ChannelEvent{ChannelID: 5, Name: "old"})
	require.NoError(t, err)
	require.NoError(t, writer.Append(context.Background(), line, true))

	require.NoError(t, e.reconcileChannels(context.Background(), 1, []discord.Channel{{ID: 6, Name: "new", Kind: discord.ChannelGuildText}}))

	require.True(t, ch.IsArchivable(1, 6))
	_, known := ch.Lookup(1, 5)
	require.True(t, known)
	require.False(t, ch.IsArchivable(1, 5))

	lines, err := streamlog.ReadLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 3)
}

func TestBreakerForReturnsSameInstancePerGuild(t *testing.T) {
	e, _, _ := newHarness(t)
	a := e.breakerFor(7)
	b := e.breakerFor(7)
	require.Same(t, a, b)
	c := e.breakerFor(8)
	require.NotSame(t, a, c)
}

