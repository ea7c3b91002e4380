package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
)

func cfg() streamlog.Config {
	return streamlog.Config{BatchLines: 1000, BatchBytes: 1 << 20, AutoflushInterval: time.Hour}
}

func TestRequestThenMarkDoneRoundTrips(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "downloads.ndjson")

	tr, err := Open(path, cfg())
	require.NoError(t, err)
	defer tr.Close(ctx)

	ok, err := tr.Request(ctx, model.AssetAttachment, "42")
	require.NoError(t, err)
	require.True(t, ok)

	state, found := tr.Lookup(model.AssetAttachment, "42")
	require.True(t, found)
	require.Equal(t, model.DownloadPending, state)

	require.NoError(t, tr.MarkDone(ctx, model.AssetAttachment, "42"))
	state, found = tr.Lookup(model.AssetAttachment, "42")
	require.True(t, found)
	require.Equal(t, model.DownloadDone, state)
}

func TestRequestReturnsFalseWhenAlreadyDone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "downloads.ndjson")

	tr, err := Open(path, cfg())
	require.NoError(t, err)
	defer tr.Close(ctx)

	_, err = tr.Request(ctx, model.AssetAvatar, "7_hash")
	require.NoError(t, err)
	require.NoError(t, tr.MarkDone(ctx, model.AssetAvatar, "7_hash"))

	ok, err := tr.Request(ctx, model.AssetAvatar, "7_hash")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenReplaysPriorState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "downloads.ndjson")

	tr, err := Open(path, cfg())
	require.NoError(t, err)
	_, err = tr.Request(ctx, model.AssetEmoji, "99")
	require.NoError(t, err)
	require.NoError(t, tr.Close(ctx))

	tr2, err := Open(path, cfg())
	require.NoError(t, err)
	defer tr2.Close(ctx)

	state, found := tr2.Lookup(model.AssetEmoji, "99")
	require.True(t, found)
	require.Equal(t, model.DownloadPending, state)
	require.ElementsMatch(t, []model.TrackerRecord{{Kind: model.AssetEmoji, ID: "99", State: model.DownloadPending}}, tr2.Pending())
}

func TestMarkDoneCompactsLogOnceNothingPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "downloads.ndjson")

	tr, err := Open(path, cfg())
	require.NoError(t, err)
	defer tr.Close(ctx)

	_, err = tr.Request(ctx, model.AssetIcon, "abc")
	require.NoError(t, err)
	require.NoError(t, tr.MarkDone(ctx, model.AssetIcon, "abc"))
	require.Equal(t, 0, tr.PendingCount())

	lines, err := streamlog.ReadLines(path)
	require.NoError(t, err)
	// After compaction only the current fold (one done record) remains,
	// rather than every historical p/d line ever appended.
	require.Len(t, lines, 1)
}
