package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
)

func TestUnknownChannelDefaultsToArchivable(t *testing.T) {
	c := New()
	_, ok := c.Lookup(1, 2)
	require.False(t, ok)
	require.True(t, c.IsArchivable(1, 2))
}

func TestPutThenLookupReflectsKind(t *testing.T) {
	c := New()
	c.Put(1, discord.Channel{ID: 2, Kind: discord.ChannelGuildVoice})
	e, ok := c.Lookup(1, 2)
	require.True(t, ok)
	require.True(t, e.Archivable)

	c.Put(1, discord.Channel{ID: 3, Kind: discord.ChannelGuildCategory})
	require.False(t, c.IsArchivable(1, 3))
}

func TestRemoveKeepsChannelKnownButNotArchivable(t *testing.T) {
	c := New()
	c.Put(1, discord.Channel{ID: 2, Kind: discord.ChannelGuildText})
	c.Remove(1, 2)

	_, ok := c.Lookup(1, 2)
	require.True(t, ok)
	require.False(t, c.IsArchivable(1, 2))
}

func TestGuildChannelsExcludesDeleted(t *testing.T) {
	c := New()
	c.Put(5, discord.Channel{ID: 1, Kind: discord.ChannelGuildText})
	c.Put(5, discord.Channel{ID: 2, Kind: discord.ChannelGuildText})
	c.Remove(5, 2)

	require.Equal(t, []uint64{1}, c.GuildChannels(5))
}
