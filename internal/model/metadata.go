package model

// Replayable is implemented by every metadata record kind so the
// Catchup Engine's reconcile fold over an existing metadata log can
// treat them uniformly.
type Replayable interface {
	RecordID() uint64
	IsDelete() bool
}

// GuildEvent records a guild-level metadata change. There is exactly one
// logical guild record; updates replace it in place, there is no delete
// tag (a guild the archiver has stopped seeing is never a "deletion",
// just a bot removal, which is not itself observable as a guild event).
type GuildEvent struct {
	Name        string  `json:"n"`
	Icon        *string `json:"ic,omitempty"`
	Banner      *string `json:"bn,omitempty"`
	Description *string `json:"d,omitempty"`
	Splash      *string `json:"s,omitempty"`
}

func (GuildEvent) RecordID() uint64 { return 0 }
func (GuildEvent) IsDelete() bool   { return false }

// MemberEvent records a guild member's profile and membership state.
type MemberEvent struct {
	UserID     uint64   `json:"i"`
	Username   string   `json:"u"`
	GlobalName *string  `json:"gn,omitempty"`
	Avatar     *string  `json:"a,omitempty"`
	JoinedAt   *uint64  `json:"j,omitempty"`
	LeftAt     *uint64  `json:"l,omitempty"`
	Roles      []uint64 `json:"r,omitempty"`
	Nickname   *string  `json:"nk,omitempty"`
	Bot        bool     `json:"b,omitempty"`
}

func (m MemberEvent) RecordID() uint64 { return m.UserID }
func (m MemberEvent) IsDelete() bool   { return m.LeftAt != nil }

// RoleEvent records a guild role's attributes.
type RoleEvent struct {
	RoleID      uint64 `json:"i"`
	Name        string `json:"n"`
	Color       uint32 `json:"c"`
	Position    int64  `json:"p"`
	Permissions string `json:"ps"`
	Hoist       bool   `json:"h,omitempty"`
	Mentionable bool   `json:"m,omitempty"`
	Deleted     bool   `json:"d,omitempty"`
}

func (r RoleEvent) RecordID() uint64 { return r.RoleID }
func (r RoleEvent) IsDelete() bool   { return r.Deleted }

// NewDeletedRole builds the tombstone record appended when a role
// disappears from the guild's role list during a reconcile pass.
func NewDeletedRole(id uint64) RoleEvent {
	return RoleEvent{RoleID: id, Permissions: "0", Deleted: true}
}

// ChannelEvent records a guild channel's attributes.
type ChannelEvent struct {
	ChannelID uint64  `json:"i"`
	Name      string  `json:"n"`
	Topic     *string `json:"t,omitempty"`
	Kind      uint8   `json:"ty"`
	Position  int32   `json:"p"`
	ParentID  *uint64 `json:"pi,omitempty"`
	NSFW      bool    `json:"ns,omitempty"`
	Deleted   bool    `json:"d,omitempty"`
}

func (c ChannelEvent) RecordID() uint64 { return c.ChannelID }
func (c ChannelEvent) IsDelete() bool   { return c.Deleted }

// NewDeletedChannel builds the tombstone record appended when a channel
// disappears from the guild's channel list during a reconcile pass.
func NewDeletedChannel(id uint64) ChannelEvent {
	return ChannelEvent{ChannelID: id, Name: "DELETED", Deleted: true}
}

// EmojiEvent records a custom emoji's attributes.
type EmojiEvent struct {
	ID       uint64 `json:"i"`
	Name     string `json:"n"`
	Animated bool   `json:"a,omitempty"`
	Deleted  bool   `json:"d,omitempty"`
}

func (e EmojiEvent) RecordID() uint64 { return e.ID }
func (e EmojiEvent) IsDelete() bool   { return e.Deleted }

// NewDeletedEmoji builds the tombstone record for a removed emoji.
func NewDeletedEmoji(id uint64) EmojiEvent { return EmojiEvent{ID: id, Deleted: true} }

// StickerEvent records a guild sticker's attributes.
type StickerEvent struct {
	ID         uint64 `json:"i"`
	Name       string `json:"n"`
	FormatType uint8  `json:"f"`
	Deleted    bool   `json:"d,omitempty"`
}

func (s StickerEvent) RecordID() uint64 { return s.ID }
func (s StickerEvent) IsDelete() bool   { return s.Deleted }

// NewDeletedSticker builds the tombstone record for a removed sticker.
func NewDeletedSticker(id uint64) StickerEvent { return StickerEvent{ID: id, Deleted: true} }

// MetadataKind names the six metadata log files under a guild's
// metadata/ directory. The zero value is invalid.
type MetadataKind string

const (
	MetadataGuild    MetadataKind = "guild"
	MetadataMembers  MetadataKind = "members"
	MetadataRoles    MetadataKind = "roles"
	MetadataChannels MetadataKind = "channels"
	MetadataEmojis   MetadataKind = "emojis"
	MetadataStickers MetadataKind = "stickers"
)

// AssetKind names the download tracker's `k` discriminant and the asset
// subdirectory it is written under.
type AssetKind string

const (
	AssetAvatar     AssetKind = "avatar"
	AssetEmoji      AssetKind = "emoji"
	AssetSticker    AssetKind = "sticker"
	AssetIcon       AssetKind = "icon"
	AssetBanner     AssetKind = "banner"
	AssetSplash     AssetKind = "splash"
	AssetAttachment AssetKind = "attachment"
)

// AssetRequest is emitted by the Normalizer alongside canonical events
// whenever a message or metadata event references binary content that
// must be fetched and archived.
type AssetRequest struct {
	Kind     AssetKind
	ID       string
	URL      string
	Folder   string
	Filename string
}
