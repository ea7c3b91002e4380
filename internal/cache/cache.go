// Package cache implements component M, the channel metadata cache: an
// in-memory map of every known channel's kind and archivability, filled
// by the Catchup Engine's channel reconcile and by Live Ingest's channel
// update/delete events. It starts empty; it is not rebuilt from
// metadata/channels.ndjson at startup.
package cache

import (
	"sync"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
)

// Entry is what the cache remembers about one channel.
type Entry struct {
	Kind       discord.ChannelKind
	Archivable bool
	ParentID   *uint64
	Deleted    bool
}

type key struct {
	GuildID   uint64
	ChannelID uint64
}

// Cache is safe for concurrent use by the Catchup Engine (writer during
// backfill) and Live Ingest (reader on every gateway event).
type Cache struct {
	mu      sync.RWMutex
	entries map[key]Entry
	guilds  map[uint64][]uint64 // guildID -> known channel ids, insertion order
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[key]Entry), guilds: make(map[uint64][]uint64)}
}

// Put records or updates a channel's metadata.
func (c *Cache) Put(guildID uint64, ch discord.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{GuildID: guildID, ChannelID: ch.ID}
	if _, exists := c.entries[k]; !exists {
		c.guilds[guildID] = append(c.guilds[guildID], ch.ID)
	}
	c.entries[k] = Entry{Kind: ch.Kind, Archivable: discord.IsArchivable(ch.Kind), ParentID: ch.ParentID}
}

// Remove marks a channel deleted without forgetting it was once known,
// so a stray late event for it is still recognized (and dropped) rather
// than treated as "unknown, assume archivable".
func (c *Cache) Remove(guildID, channelID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{GuildID: guildID, ChannelID: channelID}
	e := c.entries[k]
	e.Deleted = true
	c.entries[k] = e
}

// Lookup returns what the cache knows about (guildID, channelID). ok is
// false when the channel has never been observed; per §9's Open
// Question resolution, callers must treat that as "assume archivable",
// never as grounds to drop the event.
func (c *Cache) Lookup(guildID, channelID uint64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key{GuildID: guildID, ChannelID: channelID}]
	return e, ok
}

// IsArchivable reports whether events for this channel should be
// written to a message stream at all. Unknown channels default to
// true, matching Lookup's documented "assume archivable" fallback.
func (c *Cache) IsArchivable(guildID, channelID uint64) bool {
	e, ok := c.Lookup(guildID, channelID)
	if !ok {
		return true
	}
	return e.Archivable && !e.Deleted
}

// GuildChannels returns every non-deleted channel id the cache knows
// about for guildID, for the Catchup Engine to enumerate when starting
// per-channel message backfill.
func (c *Cache) GuildChannels(guildID uint64) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.guilds[guildID]
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if e, ok := c.entries[key{GuildID: guildID, ChannelID: id}]; ok && !e.Deleted {
			out = append(out, id)
		}
	}
	return out
}
