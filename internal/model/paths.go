package model

import (
	"path/filepath"
	"strconv"
)

// StreamKind discriminates the kinds of NDJSON stream the Log Writer Pool
// manages. Combined with a guild id and, for Messages, a channel id, it
// forms a StreamKey — the pool's map key and the mechanical path
// derivation input from §6.
type StreamKind string

const (
	StreamMessages StreamKind = "messages"
	StreamMetadata StreamKind = "metadata"
	StreamTracker  StreamKind = "tracker"
)

// StreamKey identifies exactly one log stream: one writer per process.
type StreamKey struct {
	GuildID   uint64
	Kind      StreamKind
	ChannelID uint64       // only meaningful when Kind == StreamMessages
	Metadata  MetadataKind // only meaningful when Kind == StreamMetadata
}

// String renders a StreamKey as a stable map/log key.
func (k StreamKey) String() string {
	switch k.Kind {
	case StreamMessages:
		return "messages/" + u64s(k.GuildID) + "/" + u64s(k.ChannelID)
	case StreamMetadata:
		return "metadata/" + u64s(k.GuildID) + "/" + string(k.Metadata)
	default:
		return "tracker"
	}
}

func u64s(v uint64) string { return strconv.FormatUint(v, 10) }

func parseU64(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

// StreamPath derives the on-disk path for a StreamKey relative to
// dataPath, per the filesystem layout in §6.
func StreamPath(dataPath string, key StreamKey) string {
	switch key.Kind {
	case StreamMessages:
		return filepath.Join(dataPath, u64s(key.GuildID), "messages", u64s(key.ChannelID)+".ndjson")
	case StreamMetadata:
		return filepath.Join(dataPath, u64s(key.GuildID), "metadata", string(key.Metadata)+".ndjson")
	default:
		return filepath.Join(dataPath, "downloads.ndjson")
	}
}

// MessageAttachmentDir is the per-channel attachment directory: the
// channel's stream path with the .ndjson suffix stripped, per §6
// (`messages/{channel_id}/{attachment_id}_{attachment_name}.{ext}`).
func MessageAttachmentDir(dataPath string, guildID, channelID uint64) string {
	return filepath.Join(dataPath, u64s(guildID), "messages", u64s(channelID))
}

// AssetDir returns the directory an AssetKind's bytes are stored under,
// per §6 (`assets/{avatars,emojis,icons,stickers}/...`).
func AssetDir(dataPath string, guildID uint64, kind AssetKind) string {
	var sub string
	switch kind {
	case AssetAvatar:
		sub = "avatars"
	case AssetEmoji:
		sub = "emojis"
	case AssetIcon:
		sub = "icons"
	case AssetBanner:
		sub = "banners"
	case AssetSplash:
		sub = "splashes"
	case AssetSticker:
		sub = "stickers"
	default:
		sub = "attachments"
	}
	return filepath.Join(dataPath, u64s(guildID), "assets", sub)
}

// LockfilePath is the exclusive lockfile the Supervisor acquires at
// startup, per §4.G/§6.
func LockfilePath(dataPath string) string {
	return filepath.Join(dataPath, ".lock")
}

// DownloadsLogPath is the single downloads.ndjson at the data-dir root.
func DownloadsLogPath(dataPath string) string {
	return filepath.Join(dataPath, "downloads.ndjson")
}
