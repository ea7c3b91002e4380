// Package supervisor implements component G: the suture-based
// supervision tree that owns the lifecycle of the Asset Downloader, Live
// Ingest and the operational HTTP surface (each stream writer runs its
// own autoflush ticker, and per-guild catchup runs in goroutines the
// Supervisor starts, both outside the tree) and orchestrates the startup
// sequence from spec.md §4.G — acquire the data-dir lockfile, open the
// pool and tracker, resume pending downloads, switch the gateway to
// deliver mode, and run catchup per guild as guilds arrive, holding each
// channel's live events at its gate until that channel's backfill
// completes.
//
// Grounded on internal/supervisor/tree.go's three-child-supervisor
// pattern: this tree's three groups are ingest (Live Ingest), storage
// (Asset Downloader), and ops (the HTTP surface) instead of the teacher's data/messaging/api layers, but
// the failure-isolation rationale is identical — a crash restarting the
// HTTP server should never take down message archiving.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree failure-handling parameters.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's own documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree manages the hierarchical supervisor structure for the archiver
// process. Each group is isolated: a repeatedly crashing HTTP server in
// ops cannot bring down archiving in storage or ingest.
type Tree struct {
	root    *suture.Supervisor
	ingest  *suture.Supervisor
	storage *suture.Supervisor
	ops     *suture.Supervisor
	config  TreeConfig
}

// NewTree creates the supervisor tree. logger receives suture's own
// lifecycle events (service start/stop/panic) via sutureslog, whose hook
// type is fixed to *slog.Logger; the Supervisor passes one that writes
// through the zerolog logger (logging.NewSlogLogger) by default.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	eventHook := (&sutureslog.Handler{Logger: logger}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("bigbrother", rootSpec)
	ingest := suture.New("ingest-layer", childSpec)
	storage := suture.New("storage-layer", childSpec)
	ops := suture.New("ops-layer", childSpec)

	root.Add(ingest)
	root.Add(storage)
	root.Add(ops)

	return &Tree{root: root, ingest: ingest, storage: storage, ops: ops, config: config}
}

// Root returns the root supervisor.
func (t *Tree) Root() *suture.Supervisor { return t.root }

// AddIngestService adds a service to the ingest group (the Supervisor
// adds Live Ingest's router here).
func (t *Tree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddStorageService adds a service to the storage group (the Supervisor
// adds the Asset Downloader here).
func (t *Tree) AddStorageService(svc suture.Service) suture.ServiceToken {
	return t.storage.Add(svc)
}

// AddOpsService adds a service to the ops group (the HTTP surface).
func (t *Tree) AddOpsService(svc suture.Service) suture.ServiceToken {
	return t.ops.Add(svc)
}

// Serve starts the tree and blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine, returning
// a channel that receives the terminal error when it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport reports services that failed to stop within
// ShutdownTimeout, for diagnosing a hung shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
