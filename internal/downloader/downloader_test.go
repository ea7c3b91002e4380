package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/streamlog"
	"github.com/Milkshiift/BigBrother-bot/internal/tracker"
)

func newTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "downloads.ndjson")
	tr, err := tracker.Open(path, streamlog.Config{BatchLines: 1000, BatchBytes: 1 << 20, AutoflushInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close(context.Background()) })
	return tr
}

func TestDownloadSucceedsAndMarksDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dataPath := t.TempDir()
	tr := newTracker(t)
	d := New(Config{Concurrency: 2, Timeout: 5 * time.Second, MaxRetries: 3}, dataPath, tr)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() { d.Run(ctx); close(runDone) }()

	req := model.AssetRequest{Kind: model.AssetEmoji, ID: "1|1.png", URL: srv.URL, Folder: filepath.Join(dataPath, "assets"), Filename: "1.png"}
	require.NoError(t, d.Enqueue(ctx, req))
	d.Close()
	cancel()
	<-runDone

	state, ok := tr.Lookup(model.AssetEmoji, req.ID)
	require.True(t, ok)
	require.Equal(t, model.DownloadDone, state)

	data, err := os.ReadFile(filepath.Join(req.Folder, req.Filename))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestDownloadSkipsAlreadyExistingNonEmptyFile(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dataPath := t.TempDir()
	folder := filepath.Join(dataPath, "assets")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "1.png"), []byte("cached"), 0o644))

	tr := newTracker(t)
	d := New(Config{Concurrency: 2, Timeout: 5 * time.Second, MaxRetries: 3}, dataPath, tr)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() { d.Run(ctx); close(runDone) }()

	req := model.AssetRequest{Kind: model.AssetEmoji, ID: "1|1.png", URL: srv.URL, Folder: folder, Filename: "1.png"}
	require.NoError(t, d.Enqueue(ctx, req))
	d.Close()
	cancel()
	<-runDone

	require.False(t, called)
	data, err := os.ReadFile(filepath.Join(folder, "1.png"))
	require.NoError(t, err)
	require.Equal(t, "cached", string(data))
}

func TestDownloadNonRetriableStatusMarksFailedImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dataPath := t.TempDir()
	tr := newTracker(t)
	d := New(Config{Concurrency: 2, Timeout: 5 * time.Second, MaxRetries: 3}, dataPath, tr)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() { d.Run(ctx); close(runDone) }()

	req := model.AssetRequest{Kind: model.AssetIcon, ID: "9|h.png", URL: srv.URL, Folder: filepath.Join(dataPath, "assets"), Filename: "h.png"}
	require.NoError(t, d.Enqueue(ctx, req))
	d.Close()
	cancel()
	<-runDone

	state, ok := tr.Lookup(model.AssetIcon, req.ID)
	require.True(t, ok)
	require.Equal(t, model.DownloadFailed, state)
	require.Equal(t, 1, attempts)
}

func TestResumePendingSkipsUnreconstructableAttachmentURL(t *testing.T) {
	dataPath := t.TempDir()
	tr := newTracker(t)
	ctx := context.Background()

	attachmentID := model.NewAttachmentRequest(dataPath, 1, 2, 3, "cat.png", "https://signed.example/cat.png").ID
	_, err := tr.Request(ctx, model.AssetAttachment, attachmentID)
	require.NoError(t, err)

	d := New(DefaultConfig(), dataPath, tr)
	require.NoError(t, d.ResumePending(ctx))

	select {
	case <-d.queue:
		t.Fatal("attachment with unrecoverable URL should not be re-enqueued")
	default:
	}
}
