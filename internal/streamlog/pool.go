package streamlog

import (
	"context"
	"sync"

	"github.com/Milkshiift/BigBrother-bot/internal/model"
)

// Pool maps a StreamKey to its Writer, opening streams lazily on first
// write and keeping them open until Close, per §4.A's lifecycle. Map
// mutation is guarded by a mutex; the mutex never guards a stream's
// actual I/O, which each Writer's own goroutine owns exclusively.
type Pool struct {
	dataPath string
	cfg      Config

	mu      sync.Mutex
	writers map[model.StreamKey]*Writer
}

// NewPool constructs an empty pool rooted at dataPath.
func NewPool(dataPath string, cfg Config) *Pool {
	return &Pool{dataPath: dataPath, cfg: cfg, writers: make(map[model.StreamKey]*Writer)}
}

// Get returns the Writer for key, opening it if this is the first
// reference.
func (p *Pool) Get(key model.StreamKey) (*Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[key]; ok {
		return w, nil
	}

	path := model.StreamPath(p.dataPath, key)
	w, err := Open(path, p.cfg)
	if err != nil {
		return nil, err
	}
	p.writers[key] = w
	return w, nil
}

// FlushAll flushes every open stream, used by the autoflush ticker and
// by graceful shutdown.
func (p *Pool) FlushAll(ctx context.Context) error {
	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	var firstErr error
	for _, w := range writers {
		if err := w.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseAll flushes and closes every open stream.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.writers = make(map[model.StreamKey]*Writer)
	p.mu.Unlock()

	var firstErr error
	for _, w := range writers {
		if err := w.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports how many streams are currently open, for tests and
// metrics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writers)
}
