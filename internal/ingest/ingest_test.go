package ingest

import (
	"context"
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

type fakeGateway struct {
	events chan discord.Event
}

func newFakeGateway() *fakeGateway { return &fakeGateway{events: make(chan discord.Event, 16)} }

func (f *fakeGateway) SetMode(discord.Mode)             {}
func (f *fakeGateway) Events() <-chan discord.Event     { return f.events }
func (f *fakeGateway) Close(ctx context.Context) error  { close(f.events); return nil }

func streamCfg() streamlog.Config {
	return streamlog.Config{BatchLines: 1000, BatchBytes: 1 << 20, AutoflushInterval: time.Hour}
}

func newRouterHarness(t *testing.T) (*Router, string, *tracker.Tracker) {
	t.Helper()
	dir := t.TempDir()
	tr, err := tracker.Open(model.DownloadsLogPath(dir), streamCfg())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close(context.Background()) })

	dl := downloader.New(downloader.DefaultConfig(), dir, tr)
	go dl.Run(context.Background())
	t.Cleanup(dl.Close)

	pool := streamlog.NewPool(dir, streamCfg())
	t.Cleanup(func() { pool.CloseAll(context.Background()) })

	gw := newFakeGateway()
	ch := cache.New()
	r := New(gw, ch, pool, dl, dir, 0)
	return r, dir, tr
}

func TestHandleMessageCreateWritesToChannelStream(t *testing.T) {
	r, dir, _ := newRouterHarness(t)
	ev := discord.Event{
		Kind: discord.EventMessageCreate, GuildID: 1, ChannelID: 2,
		Message: &discord.Message{ID: 99, ChannelID: 2, GuildID: 1, Content: "hi", AuthorID: 5},
	}
	require.NoError(t, r.handle(context.Background(), ev))
	require.NoError(t, r.pool.FlushAll(context.Background()))

	lines, err := streamlog.ReadLines(model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMessages, ChannelID: 2}))
	require.NoError(t, err)
	require.Len(t, lines, 1)

	var got model.MessageEvent
	require.NoError(t, json.Unmarshal(lines[0], &got))
	require.Equal(t, uint64(99), got.ID)
	require.Equal(t, model.TagCreate, got.Tag)
}

func TestHandleMessageCreateDroppedForNonArchivableChannel(t *testing.T) {
	r, dir, _ := newRouterHarness(t)
	r.cache.Put(1, discord.Channel{ID: 2, Kind: discord.ChannelGuildCategory})

	ev := discord.Event{
		Kind: discord.EventMessageCreate, GuildID: 1, ChannelID: 2,
		Message: &discord.Message{ID: 99, ChannelID: 2, GuildID: 1},
	}
	require.NoError(t, r.handle(context.Background(), ev))
	require.NoError(t, r.pool.FlushAll(context.Background()))

	lines, _ := streamlog.ReadLines(model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMessages, ChannelID: 2}))
	require.Empty(t, lines)
}

func TestHandleChannelUpdateWarmsCache(t *testing.T) {
	r, _, _ := newRouterHarness(t)
	ev := discord.Event{Kind: discord.EventChannelUpdate, GuildID: 1, ChannelID: 3,
		Channel: &discord.Channel{ID: 3, GuildID: 1, Name: "general", Kind: discord.ChannelGuildText}}
	require.NoError(t, r.handle(context.Background(), ev))
	require.True(t, r.cache.IsArchivable(1, 3))
}

func TestHandleChannelDeleteRemovesFromCache(t *testing.T) {
	r, _, _ := newRouterHarness(t)
	r.cache.Put(1, discord.Channel{ID: 3, Kind: discord.ChannelGuildText})
	ev := discord.Event{Kind: discord.EventChannelDelete, GuildID: 1, ChannelID: 3}
	require.NoError(t, r.handle(context.Background(), ev))
	require.False(t, r.cache.IsArchivable(1, 3))
}

func TestHandleMemberAddEnqueuesAvatarDownload(t *testing.T) {
	r, dir, tr := newRouterHarness(t)
	hash := "a_deadbeef"
	ev := discord.Event{Kind: discord.EventMemberAdd, GuildID: 1,
		Member: &discord.Member{UserID: 42, Username: "bob", Avatar: &hash}}
	require.NoError(t, r.handle(context.Background(), ev))

	id := model.NewAvatarRequest(dir, 1, 42, hash, true).ID
	require.Eventually(t, func() bool {
		_, ok := tr.Lookup(model.AssetAvatar, id)
		return ok
	}, time.Second, 5*time.Millisecond, "avatar download was never submitted to the tracker")
}

func TestRunRoutesEventsThroughGateUntilGatewayCloses(t *testing.T) {
	r, dir, _ := newRouterHarness(t)
	gw := r.gateway.(*fakeGateway)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	gw.events <- discord.Event{Kind: discord.EventMessageCreate, GuildID: 1, ChannelID: 4,
		Message: &discord.Message{ID: 1, ChannelID: 4, GuildID: 1}}
	time.Sleep(20 * time.Millisecond)
	close(gw.events)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after gateway channel closed")
	}

	require.NoError(t, r.pool.FlushAll(context.Background()))
	lines, err := streamlog.ReadLines(model.StreamPath(dir, model.StreamKey{GuildID: 1, Kind: model.StreamMessages, ChannelID: 4}))
	require.NoError(t, err)
	require.Len(t, lines, 1)
}
