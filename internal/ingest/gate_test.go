package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
)

func TestUnregisteredChannelDeliversImmediately(t *testing.T) {
	var delivered []discord.Event
	var mu sync.Mutex
	g := NewGate(4, func(_ context.Context, ev discord.Event) error {
		mu.Lock()
		delivered = append(delivered, ev)
		mu.Unlock()
		return nil
	})

	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 1, MessageID: 10}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1)
	require.True(t, g.IsOpen(1))
}

func TestRegisteredChannelBuffersUntilReleased(t *testing.T) {
	var delivered []uint64
	var mu sync.Mutex
	g := NewGate(4, func(_ context.Context, ev discord.Event) error {
		mu.Lock()
		delivered = append(delivered, ev.MessageID)
		mu.Unlock()
		return nil
	})
	g.Register([]uint64{5})

	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 5, MessageID: 1}))
	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 5, MessageID: 2}))

	mu.Lock()
	require.Empty(t, delivered)
	mu.Unlock()
	require.False(t, g.IsOpen(5))

	require.NoError(t, g.Release(context.Background(), 5))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint64{1, 2}, delivered)
	require.True(t, g.IsOpen(5))
}

func TestSubmitAfterReleaseDeliversDirectly(t *testing.T) {
	var delivered []uint64
	var mu sync.Mutex
	g := NewGate(4, func(_ context.Context, ev discord.Event) error {
		mu.Lock()
		delivered = append(delivered, ev.MessageID)
		mu.Unlock()
		return nil
	})
	g.Register([]uint64{5})
	require.NoError(t, g.Release(context.Background(), 5))
	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 5, MessageID: 9}))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint64{9}, delivered)
}

func TestSubmitBlocksAtCapacityUntilReleaseAndRespectsContext(t *testing.T) {
	g := NewGate(2, func(_ context.Context, ev discord.Event) error { return nil })
	g.Register([]uint64{7})

	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 7, MessageID: 1}))
	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 7, MessageID: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.Submit(ctx, discord.Event{ChannelID: 7, MessageID: 3})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseUnblocksPendingSubmit(t *testing.T) {
	g := NewGate(1, func(_ context.Context, ev discord.Event) error { return nil })
	g.Register([]uint64{3})
	require.NoError(t, g.Submit(context.Background(), discord.Event{ChannelID: 3, MessageID: 1}))

	done := make(chan error, 1)
	go func() {
		done <- g.Submit(context.Background(), discord.Event{ChannelID: 3, MessageID: 2})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, g.Release(context.Background(), 3))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Submit did not unblock after Release")
	}
}
