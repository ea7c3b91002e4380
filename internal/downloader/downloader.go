// Package downloader implements component D, the Asset Downloader: a
// bounded worker pool draining a FIFO request queue, writing each fetch
// to a `.part` file and renaming it into place atomically once complete.
// Grounded on original_source/src/network.rs's asset_downloader_worker
// and download_file, translated from a tokio::sync::Semaphore + JoinSet
// pair into golang.org/x/sync/semaphore plus one goroutine per in-flight
// download, and from a hand-rolled retry loop into
// github.com/cenkalti/backoff/v5.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	bberrors "github.com/Milkshiift/BigBrother-bot/internal/errors"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/metrics"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
	"github.com/Milkshiift/BigBrother-bot/internal/tracker"
)

// Config tunes the downloader pool, sourced from the network.* section
// of the process config (§6).
type Config struct {
	// Concurrency is the maximum number of simultaneous downloads.
	// Default 10, per §4.D.
	Concurrency int64
	// Timeout bounds a single request's wall-clock time. Default 120s.
	Timeout time.Duration
	// MaxRetries bounds the total number of attempts, the first one
	// included, before a request is marked failed. Default 5, per §4.D.
	MaxRetries uint
	// RequestsPerSecond caps the steady-state rate of CDN requests
	// across the whole pool, independent of the 429 Retry-After path,
	// so a burst of newly discovered assets during catchup doesn't
	// itself trigger rate limiting. Default 20.
	RequestsPerSecond float64
}

// DefaultConfig returns the defaults named in §4.D/§6.
func DefaultConfig() Config {
	return Config{Concurrency: 10, Timeout: 120 * time.Second, MaxRetries: 5, RequestsPerSecond: 20}
}

// Downloader owns the request queue and worker pool for one process.
type Downloader struct {
	cfg      Config
	dataPath string
	client   *http.Client
	tracker  *tracker.Tracker
	sem      *semaphore.Weighted
	limiter  *rate.Limiter

	queue chan model.AssetRequest
	done  chan struct{}
}

// New builds a Downloader. dataPath is used to rebuild requests left
// pending by a prior crash (ResumePending); each AssetRequest's Folder is
// used as given. t is the shared Download Tracker instance component C
// owns.
func New(cfg Config, dataPath string, t *tracker.Tracker) *Downloader {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultConfig().RequestsPerSecond
	}
	return &Downloader{
		cfg:      cfg,
		dataPath: dataPath,
		client:   &http.Client{Timeout: cfg.Timeout},
		tracker:  t,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		limiter:  rate.NewLimiter(rate.Limit(rps), int(cfg.Concurrency)),
		queue:    make(chan model.AssetRequest, 4096),
		done:     make(chan struct{}),
	}
}

// Enqueue submits a request for download, blocking only if the internal
// queue is saturated (cooperative backpressure per §5).
func (d *Downloader) Enqueue(ctx context.Context, req model.AssetRequest) error {
	select {
	case d.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResumePending re-enqueues every record left `pending` by a prior
// crash, per §4.G step 3. Records whose id cannot be parsed back into a
// full request (a corrupt or foreign entry) are logged and skipped, and
// records that reconstruct with no URL (signed attachment URLs cannot
// survive a crash) are left for catchup to naturally re-derive.
func (d *Downloader) ResumePending(ctx context.Context) error {
	for _, rec := range d.tracker.Pending() {
		req, ok := model.ReconstructRequest(d.dataPath, rec.Kind, rec.ID)
		if !ok {
			logging.Warn().Str("kind", string(rec.Kind)).Str("id", rec.ID).Msg("could not reconstruct pending download, dropping")
			continue
		}
		if req.URL == "" {
			continue
		}
		if err := d.Enqueue(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Run drains the queue until ctx is canceled, bounding concurrency with
// the configured semaphore. It returns once every in-flight download
// has finished, honoring the grace period the caller's ctx encodes.
func (d *Downloader) Run(ctx context.Context) error {
	defer close(d.done)

	for {
		select {
		case req, ok := <-d.queue:
			if !ok {
				d.sem.Acquire(context.Background(), d.cfg.Concurrency) //nolint:errcheck // draining, unconditional wait
				return nil
			}
			if err := d.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			go func() {
				defer d.sem.Release(1)
				d.process(ctx, req)
			}()

		case <-ctx.Done():
			d.sem.Acquire(context.Background(), d.cfg.Concurrency) //nolint:errcheck
			return nil
		}
	}
}

// Close stops accepting new requests and waits for Run to return.
func (d *Downloader) Close() {
	close(d.queue)
	<-d.done
}

func (d *Downloader) process(ctx context.Context, req model.AssetRequest) {
	ok, err := d.tracker.Request(ctx, req.Kind, req.ID)
	if err != nil {
		logging.Error().Err(err).Str("id", req.ID).Msg("failed to record pending download")
		return
	}
	if !ok {
		return // already done
	}

	start := time.Now()
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, d.attempt(ctx, req)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(d.cfg.MaxRetries))
	metrics.RecordDownloadDuration(time.Since(start).Seconds())

	if err != nil {
		var perm *backoff.PermanentError
		retries := int(d.cfg.MaxRetries)
		if errors.As(err, &perm) {
			retries = 0
		}
		logging.Warn().Err(err).Str("id", req.ID).Str("url", req.URL).Msg("asset download failed, giving up")
		metrics.RecordDownload("failed")
		if mErr := d.tracker.MarkFailed(ctx, req.Kind, req.ID, retries); mErr != nil {
			logging.Error().Err(mErr).Msg("failed to record download failure")
		}
		return
	}

	metrics.RecordDownload("done")
	if err := d.tracker.MarkDone(ctx, req.Kind, req.ID); err != nil {
		logging.Error().Err(err).Str("id", req.ID).Msg("failed to record download completion")
	}
}

// attempt performs one fetch, classifying the result the way
// network.rs's status-code short-circuit does: 401/403/404 are
// permanent, 429 honors a Retry-After hint, 5xx statuses and network or
// read errors retry under the backoff policy, and any other non-200
// status is permanent.
func (d *Downloader) attempt(ctx context.Context, req model.AssetRequest) error {
	finalPath := filepath.Join(req.Folder, req.Filename)
	if info, err := os.Stat(finalPath); err == nil && info.Size() > 0 {
		return nil
	}

	if err := os.MkdirAll(req.Folder, 0o755); err != nil {
		return backoff.Permanent(err)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return err // network error: retriable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return backoff.RetryAfter(wait)
		}
		return bberrors.NewHTTPStatusError(resp.StatusCode, errDownloadFailed(resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(bberrors.NewHTTPStatusError(resp.StatusCode, errDownloadFailed(resp.StatusCode)))
	case resp.StatusCode >= 500:
		return bberrors.NewHTTPStatusError(resp.StatusCode, errDownloadFailed(resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(bberrors.NewHTTPStatusError(resp.StatusCode, errDownloadFailed(resp.StatusCode)))
	}

	tmpPath := finalPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return backoff.Permanent(err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err // truncated read: retriable
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

func errDownloadFailed(status int) error {
	return fmt.Errorf("download failed with status %d", status)
}

// retryAfter parses a Retry-After header value expressed in seconds
// (the only form the CDN is expected to send; the HTTP-date form is not
// handled since Discord's CDN never uses it for 429 responses).
func retryAfter(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
