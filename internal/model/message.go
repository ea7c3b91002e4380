// Package model defines the canonical, on-disk event and record shapes
// written by the Log Writer Pool. Every type here round-trips through
// goccy/go-json using the short field names mandated by the wire schema;
// fields absent from a payload are left as Go zero values and omitted on
// encode via `omitempty`, matching the "no synthesized defaults" rule for
// partial update events.
package model

// MessageTag discriminates the message event family via the `t` field.
type MessageTag string

const (
	TagCreate              MessageTag = "c"
	TagUpdate              MessageTag = "u"
	TagDelete              MessageTag = "d"
	TagBulkDelete          MessageTag = "bd"
	TagReactionAdd         MessageTag = "ra"
	TagReactionRemove      MessageTag = "rr"
	TagReactionRemoveAll   MessageTag = "rra"
	TagReactionRemoveEmoji MessageTag = "rre"
)

// Reaction is the minimal reaction object embedded in `r`, `ra`, `rr` and
// `rre` events. Exactly one of Custom or Unicode is set.
type Reaction struct {
	Custom  *uint64 `json:"c,omitempty"`
	Unicode *string `json:"u,omitempty"`
}

// ReactionCount pairs a reaction with the current tally shown in a
// message's `r` snapshot.
type ReactionCount struct {
	Reaction Reaction `json:"e"`
	Count    int      `json:"n"`
}

// MessageEvent is the canonical message-family event, one JSON object per
// NDJSON line under `messages/{channel_id}.ndjson`. Not every field is
// meaningful for every Tag; the `omitempty` tags drop the zero-valued
// fields a given Tag does not use, the way the original per-variant enum
// does structurally.
type MessageEvent struct {
	Tag MessageTag `json:"t"`

	// Create / Update / Delete share the id field.
	ID uint64 `json:"i,omitempty"`

	// Create / Update fields. omitempty means "absent field" per the
	// normalizer's no-synthesized-defaults rule.
	Content    string          `json:"ct,omitempty"`
	CreatedAt  uint64          `json:"ca,omitempty"`
	EditedAt   *uint64         `json:"ea,omitempty"`
	AuthorID   uint64          `json:"a,omitempty"`
	Embeds     []RawEmbed      `json:"e,omitempty"`
	Attachments []uint64       `json:"at,omitempty"`
	StickerIDs []uint64        `json:"s,omitempty"`
	Reactions  []ReactionCount `json:"r,omitempty"`
	ReplyTo    *uint64         `json:"ri,omitempty"`

	// BulkDelete.
	IDs []uint64 `json:"is,omitempty"`
}

// RawEmbed is an opaque pass-through of the platform's embed object; the
// Normalizer never interprets embed contents, only stores them verbatim.
type RawEmbed = map[string]any

// reactionWireEvent is the on-wire shape for ra/rr/rre, which use a bare
// `e` field for the reaction rather than the `r` snapshot array Create
// uses. Kept as a separate type instead of overloading MessageEvent's `e`
// field, since Create's `e` is the embed array.
type reactionWireEvent struct {
	Tag       MessageTag `json:"t"`
	MessageID uint64     `json:"i"`
	UserID    uint64     `json:"u,omitempty"`
	Emoji     *Reaction  `json:"e,omitempty"`
}

// EncodeCreate builds the wire object for a `c` event.
func EncodeCreate(msg StoredMessage) MessageEvent {
	msg.event.Tag = TagCreate
	return msg.event
}

// EncodeUpdate builds the wire object for a `u` event. Unlike Create,
// callers should leave zero-valued fields unset on StoredMessage to
// reflect only what the platform actually delivered.
func EncodeUpdate(msg StoredMessage) MessageEvent {
	msg.event.Tag = TagUpdate
	return msg.event
}

// EncodeDelete builds the wire object for a `d` event.
func EncodeDelete(id uint64) MessageEvent {
	return MessageEvent{Tag: TagDelete, ID: id}
}

// EncodeBulkDelete builds the wire object for a `bd` event.
func EncodeBulkDelete(ids []uint64) MessageEvent {
	return MessageEvent{Tag: TagBulkDelete, IDs: ids}
}

// StoredMessage is the mutable builder counterpart of MessageEvent used
// by the Normalizer; Event() returns the finished wire object.
type StoredMessage struct {
	event MessageEvent
}

// NewStoredMessage seeds a builder with the message's identifying fields.
func NewStoredMessage(id uint64) StoredMessage {
	return StoredMessage{event: MessageEvent{ID: id}}
}

func (m StoredMessage) WithContent(s string) StoredMessage      { m.event.Content = s; return m }
func (m StoredMessage) WithCreatedAt(ts uint64) StoredMessage   { m.event.CreatedAt = ts; return m }
func (m StoredMessage) WithEditedAt(ts uint64) StoredMessage    { m.event.EditedAt = &ts; return m }
func (m StoredMessage) WithAuthor(id uint64) StoredMessage      { m.event.AuthorID = id; return m }
func (m StoredMessage) WithEmbeds(e []RawEmbed) StoredMessage   { m.event.Embeds = e; return m }
func (m StoredMessage) WithAttachments(a []uint64) StoredMessage {
	m.event.Attachments = a
	return m
}
func (m StoredMessage) WithStickers(s []uint64) StoredMessage { m.event.StickerIDs = s; return m }
func (m StoredMessage) WithReactions(r []ReactionCount) StoredMessage {
	m.event.Reactions = r
	return m
}
func (m StoredMessage) WithReplyTo(id uint64) StoredMessage { m.event.ReplyTo = &id; return m }

// Event returns the finished wire object; Tag must be set by the caller
// via EncodeCreate or EncodeUpdate.
func (m StoredMessage) Event() MessageEvent { return m.event }

// ReactionAdd builds the wire object for an `ra` event.
func ReactionAdd(messageID, userID uint64, emoji Reaction) any {
	return reactionWireEvent{Tag: TagReactionAdd, MessageID: messageID, UserID: userID, Emoji: &emoji}
}

// ReactionRemove builds the wire object for an `rr` event.
func ReactionRemove(messageID, userID uint64, emoji Reaction) any {
	return reactionWireEvent{Tag: TagReactionRemove, MessageID: messageID, UserID: userID, Emoji: &emoji}
}

// ReactionRemoveAll builds the wire object for an `rra` event.
func ReactionRemoveAll(messageID uint64) any {
	return reactionWireEvent{Tag: TagReactionRemoveAll, MessageID: messageID}
}

// ReactionRemoveEmoji builds the wire object for an `rre` event.
func ReactionRemoveEmoji(messageID uint64, emoji Reaction) any {
	return reactionWireEvent{Tag: TagReactionRemoveEmoji, MessageID: messageID, Emoji: &emoji}
}

// ScanFrame is the minimal shape used by the catchup cursor scan: it
// decodes only the two fields needed to find the last `c` or `u` event's id,
// mirroring the original implementation's ScanFrame optimization.
type ScanFrame struct {
	Tag MessageTag `json:"t"`
	ID  uint64     `json:"i"`
}

// IsCreateTag reports whether a decoded ScanFrame is a message-create
// event. The cursor scan (streamlog.LastMessageID) accepts `u` events as
// candidates too.
func (f ScanFrame) IsCreateTag() bool { return f.Tag == TagCreate }
