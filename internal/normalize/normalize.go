// Package normalize implements component B: pure, idempotent translation
// of platform objects into the canonical tagged event schema plus any
// asset requests those objects reference. Grounded on the From<Message>
// / MemberEvent::from_add_or_update / RoleEvent::from_role family of
// conversions in the prior implementation.
package normalize

import (
	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
)

func reaction(r discord.Reaction) model.Reaction {
	out := model.Reaction{}
	if r.CustomEmojiID != nil {
		out.Custom = r.CustomEmojiID
	} else if r.UnicodeEmoji != nil {
		out.Unicode = r.UnicodeEmoji
	}
	return out
}

// Message converts a full message into a `c` (create) event plus asset
// requests for every attachment it carries. dataPath roots the asset
// requests' destination folders.
func Message(dataPath string, m discord.Message) (model.MessageEvent, []model.AssetRequest) {
	sm := model.NewStoredMessage(m.ID).
		WithContent(m.Content).
		WithCreatedAt(m.CreatedAt).
		WithAuthor(m.AuthorID)

	if m.EditedAt != nil {
		sm = sm.WithEditedAt(*m.EditedAt)
	}
	if len(m.Embeds) > 0 {
		sm = sm.WithEmbeds(m.Embeds)
	}
	if len(m.Attachments) > 0 {
		ids := make([]uint64, len(m.Attachments))
		for i, a := range m.Attachments {
			ids[i] = a.ID
		}
		sm = sm.WithAttachments(ids)
	}
	if len(m.StickerIDs) > 0 {
		sm = sm.WithStickers(m.StickerIDs)
	}
	if len(m.Reactions) > 0 {
		rs := make([]model.ReactionCount, len(m.Reactions))
		for i, r := range m.Reactions {
			rs[i] = model.ReactionCount{Reaction: reaction(discord.Reaction{CustomEmojiID: r.CustomEmojiID, UnicodeEmoji: r.UnicodeEmoji}), Count: r.Count}
		}
		sm = sm.WithReactions(rs)
	}
	if m.ReplyTo != nil {
		sm = sm.WithReplyTo(*m.ReplyTo)
	}

	assets := AttachmentRequests(dataPath, m.GuildID, m.ChannelID, m.Attachments)
	return model.EncodeCreate(sm), assets
}

// AttachmentRequests builds one AssetRequest per attachment, targeting
// the per-channel attachment directory per §6.
func AttachmentRequests(dataPath string, guildID, channelID uint64, atts []discord.Attachment) []model.AssetRequest {
	if len(atts) == 0 {
		return nil
	}
	reqs := make([]model.AssetRequest, len(atts))
	for i, a := range atts {
		reqs[i] = model.NewAttachmentRequest(dataPath, guildID, channelID, a.ID, a.Filename, a.URL)
	}
	return reqs
}

// MessageUpdate converts a partial message update into a `u` event.
// Fields absent from m (zero-valued) stay absent on the wire object per
// the "no synthesized defaults" rule; callers must only pass fields the
// platform actually delivered.
func MessageUpdate(m discord.Message) model.MessageEvent {
	sm := model.NewStoredMessage(m.ID)
	if m.Content != "" {
		sm = sm.WithContent(m.Content)
	}
	if m.EditedAt != nil {
		sm = sm.WithEditedAt(*m.EditedAt)
	}
	if len(m.Embeds) > 0 {
		sm = sm.WithEmbeds(m.Embeds)
	}
	if len(m.Attachments) > 0 {
		ids := make([]uint64, len(m.Attachments))
		for i, a := range m.Attachments {
			ids[i] = a.ID
		}
		sm = sm.WithAttachments(ids)
	}
	if len(m.StickerIDs) > 0 {
		sm = sm.WithStickers(m.StickerIDs)
	}
	return model.EncodeUpdate(sm)
}

// MessageDelete converts a delete notification into a `d` event.
func MessageDelete(id uint64) model.MessageEvent { return model.EncodeDelete(id) }

// MessageBulkDelete converts a bulk-delete notification into a `bd`
// event carrying the full id list as received.
func MessageBulkDelete(ids []uint64) model.MessageEvent { return model.EncodeBulkDelete(ids) }

// ReactionAdd converts a reaction-add notification into an `ra` event.
func ReactionAdd(messageID, userID uint64, r discord.Reaction) any {
	return model.ReactionAdd(messageID, userID, reaction(r))
}

// ReactionRemove converts a reaction-remove notification into an `rr`
// event.
func ReactionRemove(messageID, userID uint64, r discord.Reaction) any {
	return model.ReactionRemove(messageID, userID, reaction(r))
}

// ReactionRemoveAll converts a "remove all reactions" notification into
// an `rra` event.
func ReactionRemoveAll(messageID uint64) any { return model.ReactionRemoveAll(messageID) }

// ReactionRemoveEmoji converts a "remove one emoji's reactions"
// notification into an `rre` event.
func ReactionRemoveEmoji(messageID uint64, r discord.Reaction) any {
	return model.ReactionRemoveEmoji(messageID, reaction(r))
}

// Guild converts guild top-level metadata into a GuildEvent.
func Guild(g discord.Guild) model.GuildEvent {
	return model.GuildEvent{Name: g.Name, Icon: g.Icon, Banner: g.Banner, Description: g.Description, Splash: g.Splash}
}

// Member converts a member add/update into a MemberEvent.
func Member(m discord.Member) model.MemberEvent {
	return model.MemberEvent{
		UserID:     m.UserID,
		Username:   m.Username,
		GlobalName: m.GlobalName,
		Avatar:     m.Avatar,
		JoinedAt:   m.JoinedAt,
		Roles:      m.Roles,
		Nickname:   m.Nickname,
		Bot:        m.Bot,
	}
}

// MemberRemove builds the tombstone MemberEvent appended when a member
// leaves the guild, with the caller-supplied leftAtMillis as LeftAt.
func MemberRemove(userID uint64, leftAtMillis uint64) model.MemberEvent {
	return model.MemberEvent{UserID: userID, Username: "UNKNOWN", LeftAt: &leftAtMillis}
}

// Role converts a role update into a RoleEvent.
func Role(r discord.Role) model.RoleEvent {
	return model.RoleEvent{
		RoleID:      r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		Permissions: r.Permissions,
		Hoist:       r.Hoist,
		Mentionable: r.Mentionable,
	}
}

// Channel converts a channel update into a ChannelEvent.
func Channel(c discord.Channel) model.ChannelEvent {
	return model.ChannelEvent{
		ChannelID: c.ID,
		Name:      c.Name,
		Topic:     c.Topic,
		Kind:      uint8(c.Kind),
		Position:  c.Position,
		ParentID:  c.ParentID,
		NSFW:      c.NSFW,
	}
}

// Emoji converts a custom emoji into an EmojiEvent, plus the asset
// request for its image if this is the first time it's been seen
// (callers decide that; Emoji always returns the request, letting the
// tracker's own dedup-by-done handle repeats).
func Emoji(dataPath string, guildID uint64, e discord.Emoji) (model.EmojiEvent, model.AssetRequest) {
	req := model.NewEmojiRequest(dataPath, guildID, e.ID, e.Animated)
	return model.EmojiEvent{ID: e.ID, Name: e.Name, Animated: e.Animated}, req
}

// Sticker converts a guild sticker into a StickerEvent, plus its asset
// request.
func Sticker(dataPath string, guildID uint64, s discord.Sticker) (model.StickerEvent, model.AssetRequest) {
	var ext string
	switch s.Format {
	case discord.StickerFormatLottie:
		ext = ".json"
	case discord.StickerFormatGIF:
		ext = ".gif"
	case discord.StickerFormatPNG, discord.StickerFormatAPNG:
		ext = ".png"
	default:
		ext = ".bin"
	}
	req := model.NewStickerRequest(dataPath, guildID, s.ID, ext)
	return model.StickerEvent{ID: s.ID, Name: s.Name, FormatType: uint8(s.Format)}, req
}

// Avatar builds the asset request for a member or user avatar hash.
func Avatar(dataPath string, guildID, userID uint64, hash string, animated bool) model.AssetRequest {
	return model.NewAvatarRequest(dataPath, guildID, userID, hash, animated)
}

// GuildIcon, GuildBanner and GuildSplash build the asset request for a
// guild's respective image hash.
func GuildIcon(dataPath string, guildID uint64, hash string, animated bool) model.AssetRequest {
	return model.NewGuildImageRequest(dataPath, guildID, model.AssetIcon, hash, animated)
}
func GuildBanner(dataPath string, guildID uint64, hash string, animated bool) model.AssetRequest {
	return model.NewGuildImageRequest(dataPath, guildID, model.AssetBanner, hash, animated)
}
func GuildSplash(dataPath string, guildID uint64, hash string) model.AssetRequest {
	return model.NewGuildImageRequest(dataPath, guildID, model.AssetSplash, hash, false)
}
