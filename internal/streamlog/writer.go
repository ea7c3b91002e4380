// Package streamlog implements component A, the Log Writer Pool: one
// single-writer-goroutine-per-stream discipline over append-only NDJSON
// files, translated one-for-one from the prior implementation's
// mpsc-channel-fed spawn_blocking writer task (original_source/src/storage.rs)
// into a goroutine fed by a Go channel.
package streamlog

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Milkshiift/BigBrother-bot/internal/errors"
	"github.com/Milkshiift/BigBrother-bot/internal/logging"
	"github.com/Milkshiift/BigBrother-bot/internal/metrics"
)

// Config tunes the batching and flush behavior of a single stream
// writer, sourced from the storage.* section of the process config.
type Config struct {
	// BatchLines is the line-count high-water mark that triggers a
	// flush ahead of the autoflush timer. Default 1000, per §4.A.
	BatchLines int
	// BatchBytes is the byte-size high-water mark. Default 1 MiB,
	// matching the original implementation's scratchpad cap.
	BatchBytes int
	// AutoflushInterval is how often a stream flushes even if neither
	// high-water mark was hit. Default 60s, per §6.
	AutoflushInterval time.Duration
}

// DefaultConfig returns the batching defaults named in §4.A/§6.
func DefaultConfig() Config {
	return Config{BatchLines: 1000, BatchBytes: 1 << 20, AutoflushInterval: 60 * time.Second}
}

// rewriteCmd asks the writer goroutine to atomically replace the file's
// contents with lines, used by the Download Tracker to clear its log
// down to its current fold once nothing is pending (§4.C/§9: the
// tracker's own log is allowed to compact itself; message logs never
// are).
type rewriteCmd struct {
	lines [][]byte
	resp  chan error
}

type writeCmd struct {
	line []byte
	// ack, if non-nil, receives nil once this line's batch has been
	// fsynced (or ErrStreamPoisoned if the line could not be written).
	// Durability-on-batch (catchup) sets this; durability-on-timer (live
	// ingest) leaves it nil.
	ack chan error
}

// Writer owns exactly one NDJSON file. All state is confined to its run
// goroutine except the poison flag, which callers may check without
// synchronizing with the goroutine.
type Writer struct {
	path string
	cfg  Config

	cmds     chan writeCmd
	flushReq    chan chan error
	rewriteReq  chan rewriteCmd
	closed      chan struct{}
	done        chan struct{}

	poisoned atomic.Bool
	poisonMu atomic.Value // stores error
}

// Open creates or opens the stream file at path for appending and starts
// its writer goroutine. Crash safety: if the file's last byte is not a
// newline (a torn write from a prior crash), a leading newline is queued
// before the first append so the stream restarts on a fresh line, per
// §4.A and Testable Property 2/Scenario S3.
func Open(path string, cfg Config) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	needsLeadingNewline, err := hasTornTrailingLine(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		path:       path,
		cfg:        cfg,
		cmds:       make(chan writeCmd, 4096),
		flushReq:   make(chan chan error, 1),
		rewriteReq: make(chan rewriteCmd, 1),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	go w.run(f, needsLeadingNewline)
	return w, nil
}

// hasTornTrailingLine reports whether path's last byte exists and is not
// a newline, meaning the previous process died mid-write.
func hasTornTrailingLine(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return false, err
	}
	return buf[0] != '\n', nil
}

// Path returns the file path this writer owns.
func (w *Writer) Path() string { return w.path }

// Poisoned reports whether a prior I/O error has taken this stream
// offline. Poisoned streams refuse further appends.
func (w *Writer) Poisoned() (bool, error) {
	if !w.poisoned.Load() {
		return false, nil
	}
	if e, ok := w.poisonMu.Load().(error); ok {
		return true, e
	}
	return true, errors.ErrStreamPoisoned
}

// Append enqueues line for writing, without a trailing newline (the
// writer appends one). If durable is true, Append blocks until the line
// has been part of an fsynced batch; catchup uses durable appends,
// live ingest relies on the autoflush timer instead (§4.A).
func (w *Writer) Append(ctx context.Context, line []byte, durable bool) error {
	if poisoned, err := w.Poisoned(); poisoned {
		return err
	}

	cmd := writeCmd{line: line}
	var ack chan error
	if durable {
		ack = make(chan error, 1)
		cmd.ack = ack
	}

	select {
	case w.cmds <- cmd:
	case <-w.closed:
		return errors.ErrStreamPoisoned
	case <-ctx.Done():
		return ctx.Err()
	}

	if !durable {
		return nil
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AppendBulk enqueues several lines as one durable batch, matching the
// original implementation's append_bulk used by catchup's page writes.
func (w *Writer) AppendBulk(ctx context.Context, lines [][]byte, durable bool) error {
	for i, line := range lines {
		last := i == len(lines)-1
		if err := w.Append(ctx, line, durable && last); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces an immediate fsync of any buffered lines and waits for it
// to complete.
func (w *Writer) Flush(ctx context.Context) error {
	respCh := make(chan error, 1)
	select {
	case w.flushReq <- respCh:
	case <-w.closed:
		return errors.ErrStreamPoisoned
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Truncate atomically replaces the file's entire contents with lines
// (each written without its own trailing newline; Truncate appends one
// per line). Used only by logs that are explicitly allowed to compact
// their own history, such as the Download Tracker once nothing is
// pending — never by message or metadata streams.
func (w *Writer) Truncate(ctx context.Context, lines [][]byte) error {
	respCh := make(chan error, 1)
	cmd := rewriteCmd{lines: lines, resp: respCh}
	select {
	case w.rewriteReq <- cmd:
	case <-w.closed:
		return errors.ErrStreamPoisoned
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and stops the writer goroutine, closing the underlying
// file. Safe to call once.
func (w *Writer) Close(ctx context.Context) error {
	select {
	case <-w.closed:
		return nil
	default:
	}
	close(w.closed)
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Writer) poison(err error) {
	w.poisonMu.Store(err)
	w.poisoned.Store(true)
	logging.Error().Err(err).Str("stream", w.path).Msg("stream writer poisoned")
}

func (w *Writer) run(f *os.File, leadingNewline bool) {
	defer close(w.done)
	defer f.Close()

	bw := bufio.NewWriterSize(f, 64*1024)
	if leadingNewline {
		_, _ = bw.WriteString("\n")
	}

	ticker := time.NewTicker(w.cfg.AutoflushInterval)
	defer ticker.Stop()

	pending := 0
	pendingBytes := 0
	var pendingAcks []chan error

	syncNow := func() error {
		start := time.Now()
		if err := bw.Flush(); err != nil {
			w.poison(err)
			return err
		}
		if err := f.Sync(); err != nil {
			w.poison(err)
			return err
		}
		metrics.RecordStreamFlushLatency(time.Since(start).Seconds())
		pending, pendingBytes = 0, 0
		for _, ack := range pendingAcks {
			ack <- nil
		}
		pendingAcks = pendingAcks[:0]
		return nil
	}

	writeLine := func(line []byte) bool {
		if _, err := bw.Write(line); err != nil {
			w.poison(err)
			return false
		}
		if err := bw.WriteByte('\n'); err != nil {
			w.poison(err)
			return false
		}
		pending++
		pendingBytes += len(line) + 1
		return true
	}

	// drainQueued writes every command already waiting in w.cmds, so a
	// Flush or Close covers lines appended before it was requested.
	drainQueued := func() {
		for {
			select {
			case cmd := <-w.cmds:
				if writeLine(cmd.line) && cmd.ack != nil {
					pendingAcks = append(pendingAcks, cmd.ack)
				} else if cmd.ack != nil {
					cmd.ack <- errors.ErrStreamPoisoned
				}
			default:
				return
			}
		}
	}

	for {
		select {
		case <-w.closed:
			drainQueued()
			_ = syncNow()
			return

		case respCh := <-w.flushReq:
			drainQueued()
			respCh <- syncNow()

		case rw := <-w.rewriteReq:
			if err := f.Truncate(0); err != nil {
				w.poison(err)
				rw.resp <- err
				continue
			}
			bw.Reset(f)
			var writeErr error
			for _, line := range rw.lines {
				if !writeLine(line) {
					writeErr = errors.ErrStreamPoisoned
					break
				}
			}
			if writeErr == nil {
				writeErr = syncNow()
			}
			rw.resp <- writeErr

		case cmd := <-w.cmds:
			if !writeLine(cmd.line) {
				if cmd.ack != nil {
					cmd.ack <- errors.ErrStreamPoisoned
				}
				continue
			}
			if cmd.ack != nil {
				pendingAcks = append(pendingAcks, cmd.ack)
			}

			// Opportunistically batch further already-queued writes,
			// mirroring the original scratchpad-draining loop, up to
			// the configured high-water marks.
		batchLoop:
			for pending < w.cfg.BatchLines && pendingBytes < w.cfg.BatchBytes {
				select {
				case next := <-w.cmds:
					if !writeLine(next.line) {
						if next.ack != nil {
							next.ack <- errors.ErrStreamPoisoned
						}
						break batchLoop
					}
					if next.ack != nil {
						pendingAcks = append(pendingAcks, next.ack)
					}
				default:
					break batchLoop
				}
			}

			if pending >= w.cfg.BatchLines || pendingBytes >= w.cfg.BatchBytes || len(pendingAcks) > 0 {
				_ = syncNow()
			}

		case <-ticker.C:
			if pending > 0 {
				_ = syncNow()
			}
		}
	}
}
