package ingest

import (
	"context"
	"sync"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
)

// defaultGateCap bounds how many live events a still-catching-up channel
// will buffer before Submit blocks the caller, per §4.F's "cooperative
// backpressure" requirement.
const defaultGateCap = 4096

type channelState struct {
	open bool
	buf  []discord.Event
}

// Gate is the per-channel interlock spec.md §4.E/§8 (property 4, scenario
// S6) requires: live events for a channel are buffered until catchup for
// that channel releases it, so a stream's writes stay totally ordered
// (catchup's ascending backfill, then live arrival order) without ever
// serializing unrelated channels against each other. This generalizes
// `original_source/src/main.rs`'s single per-guild mpsc queue — a valid
// strategy for guild-granularity ordering, but coarser than what the
// per-channel requirement demands — into an explicit type keyed by
// channel id (see the REDESIGN note in DESIGN.md).
type Gate struct {
	mu      sync.Mutex
	cap     int
	deliver func(context.Context, discord.Event) error
	states  map[uint64]*channelState
	// wake is closed and replaced on every Release, waking any Submit
	// call parked on a full buffer. A single shared channel is enough
	// since Live Ingest is one task (§5) — there is never more than one
	// blocked Submit call to wake.
	wake chan struct{}
}

// NewGate builds a Gate that calls deliver for every event once its
// channel is open, either immediately (already open) or from Release's
// buffered replay.
func NewGate(hardCap int, deliver func(context.Context, discord.Event) error) *Gate {
	if hardCap <= 0 {
		hardCap = defaultGateCap
	}
	return &Gate{cap: hardCap, deliver: deliver, states: make(map[uint64]*channelState), wake: make(chan struct{})}
}

// Register marks channelIDs as pending catchup, closing their gates. A
// channel never registered defaults to open, per the Open Question
// resolution that events for a channel unknown to metadata catchup are
// accepted rather than dropped (they simply have no gate to wait on).
func (g *Gate) Register(channelIDs []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range channelIDs {
		if _, ok := g.states[id]; !ok {
			g.states[id] = &channelState{open: false}
		}
	}
}

func (g *Gate) stateForLocked(id uint64) *channelState {
	st, ok := g.states[id]
	if !ok {
		st = &channelState{open: true}
		g.states[id] = st
	}
	return st
}

// Submit routes ev through the gate: delivered immediately if its channel
// is open, buffered otherwise. Blocks (cooperatively, honoring ctx) if a
// still-closed channel's buffer is already at capacity — a channel stuck
// this way means catchup for it is taking unusually long, and blocking
// the single ingest loop rather than growing without bound matches §4.F's
// backpressure requirement.
func (g *Gate) Submit(ctx context.Context, ev discord.Event) error {
	g.mu.Lock()
	st := g.stateForLocked(ev.ChannelID)
	for !st.open && len(st.buf) >= g.cap {
		wake := g.wake
		g.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.mu.Lock()
		st = g.stateForLocked(ev.ChannelID)
	}
	if st.open {
		g.mu.Unlock()
		return g.deliver(ctx, ev)
	}
	st.buf = append(st.buf, ev)
	g.mu.Unlock()
	return nil
}

// Release replays channelID's buffered events in arrival order, then
// marks the channel permanently open. Called by the Catchup Engine once
// backfill for that channel completes or is abandoned on fatal error.
func (g *Gate) Release(ctx context.Context, channelID uint64) error {
	g.mu.Lock()
	st := g.stateForLocked(channelID)
	buffered := st.buf
	st.buf = nil
	st.open = true
	oldWake := g.wake
	g.wake = make(chan struct{})
	g.mu.Unlock()
	close(oldWake)

	for _, ev := range buffered {
		if err := g.deliver(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// IsOpen reports whether channelID's gate has been released, for tests
// and diagnostics.
func (g *Gate) IsOpen(channelID uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateForLocked(channelID).open
}
