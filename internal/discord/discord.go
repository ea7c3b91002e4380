// Package discord specifies, by interface only, the gateway/REST client
// this archiver depends on. Per the purpose-and-scope non-goal, the wire
// protocol to the chat platform itself is an external collaborator; this
// package exists so the ingest core can be written and tested against a
// stable contract without depending on any concrete client library.
package discord

import "context"

// ChannelKind mirrors the platform's channel type enum closely enough for
// IsArchivable to classify it; the numeric values match the upstream
// gateway's own channel type integers.
type ChannelKind uint8

const (
	ChannelGuildText          ChannelKind = 0
	ChannelDM                 ChannelKind = 1
	ChannelGuildVoice         ChannelKind = 2
	ChannelGroupDM            ChannelKind = 3
	ChannelGuildCategory      ChannelKind = 4
	ChannelGuildAnnouncement  ChannelKind = 5
	ChannelAnnouncementThread ChannelKind = 10
	ChannelPublicThread       ChannelKind = 11
	ChannelPrivateThread      ChannelKind = 12
	ChannelGuildStageVoice    ChannelKind = 13
	ChannelGuildForum         ChannelKind = 15
	ChannelGuildMedia         ChannelKind = 16
)

// IsArchivable reports whether a channel kind is one this archiver keeps
// a message log for. Grounded on the original implementation's
// is_archivable_channel allow-list.
func IsArchivable(kind ChannelKind) bool {
	switch kind {
	case ChannelGuildText, ChannelGuildAnnouncement, ChannelAnnouncementThread,
		ChannelPublicThread, ChannelPrivateThread, ChannelGuildVoice, ChannelGuildMedia:
		return true
	default:
		return false
	}
}

// Attachment is a message attachment as delivered by the platform.
type Attachment struct {
	ID       uint64
	Filename string
	URL      string
}

// Reaction is one entry of a message's reaction snapshot.
type Reaction struct {
	CustomEmojiID *uint64
	UnicodeEmoji  *string
	Count         int
}

// Message is the wire shape of a chat message.
type Message struct {
	ID          uint64
	ChannelID   uint64
	GuildID     uint64
	Content     string
	AuthorID    uint64
	CreatedAt   uint64
	EditedAt    *uint64
	Embeds      []map[string]any
	Attachments []Attachment
	StickerIDs  []uint64
	Reactions   []Reaction
	ReplyTo     *uint64
}

// Member is the wire shape of a guild member.
type Member struct {
	UserID     uint64
	Username   string
	GlobalName *string
	Avatar     *string
	JoinedAt   *uint64
	Roles      []uint64
	Nickname   *string
	Bot        bool
}

// Role is the wire shape of a guild role.
type Role struct {
	ID          uint64
	Name        string
	Color       uint32
	Position    int64
	Permissions string
	Hoist       bool
	Mentionable bool
}

// Channel is the wire shape of a guild channel.
type Channel struct {
	ID       uint64
	GuildID  uint64
	Name     string
	Topic    *string
	Kind     ChannelKind
	Position int32
	ParentID *uint64
	NSFW     bool
}

// Guild is the wire shape of a guild's top-level metadata.
type Guild struct {
	ID          uint64
	Name        string
	Icon        *string
	Banner      *string
	Description *string
	Splash      *string
	Emojis      []Emoji
	Stickers    []Sticker
}

// Emoji is the wire shape of a custom guild emoji.
type Emoji struct {
	ID       uint64
	Name     string
	Animated bool
}

// StickerFormat mirrors the platform's sticker format type enum.
type StickerFormat uint8

const (
	StickerFormatPNG   StickerFormat = 1
	StickerFormatAPNG  StickerFormat = 2
	StickerFormatLottie StickerFormat = 3
	StickerFormatGIF   StickerFormat = 4
)

// Sticker is the wire shape of a guild sticker.
type Sticker struct {
	ID     uint64
	Name   string
	Format StickerFormat
}

// REST is the paginated-history and metadata-fetch surface the Catchup
// Engine depends on.
type REST interface {
	ChannelMessages(ctx context.Context, channelID uint64, after uint64, limit int) ([]Message, error)
	GuildMembers(ctx context.Context, guildID uint64, after uint64, limit int) ([]Member, error)
	Guild(ctx context.Context, guildID uint64) (*Guild, error)
	GuildRoles(ctx context.Context, guildID uint64) ([]Role, error)
	GuildChannels(ctx context.Context, guildID uint64) ([]Channel, error)
}

// Mode controls whether the Gateway buffers events for the Supervisor's
// gate or delivers them straight to Live Ingest.
type Mode int

const (
	ModeBuffer Mode = iota
	ModeDeliver
)

// EventKind discriminates the gateway Event union.
type EventKind int

const (
	EventGuildCreate EventKind = iota
	EventMessageCreate
	EventMessageUpdate
	EventMessageDelete
	EventMessageBulkDelete
	EventReactionAdd
	EventReactionRemove
	EventReactionRemoveAll
	EventReactionRemoveEmoji
	EventMemberAdd
	EventMemberUpdate
	EventMemberRemove
	EventRoleUpdate
	EventRoleDelete
	EventChannelUpdate
	EventChannelDelete
	EventGuildUpdate
)

// Event is a single gateway payload, tagged by Kind; only the fields
// relevant to that Kind are populated. Guild-scoped for routing to the
// per-guild metadata archiver and gate.
type Event struct {
	Kind    EventKind
	GuildID uint64

	Message      *Message
	MessageID    uint64
	ChannelID    uint64
	BulkIDs      []uint64
	ReactionUser uint64
	Reaction     *Reaction

	Member   *Member
	UserID   uint64
	Role     *Role
	RoleID   uint64
	Channel  *Channel
	Guild    *Guild
}

// Gateway is the live event source and session controller the Live
// Ingest component depends on.
type Gateway interface {
	SetMode(Mode)
	Events() <-chan Event
	Close(ctx context.Context) error
}
