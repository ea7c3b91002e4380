package model

import "strings"

const (
	cdnBase = "https://cdn.discordapp.com/"
	keySep  = "|"
)

// Every asset kind's tracker id is deliberately self-describing: it
// encodes everything AssetRequest needs to rebuild its destination
// folder and filename, so a pending record surviving a crash can be
// redriven by the Asset Downloader on startup without a side-channel,
// even though the persisted wire schema carries only {k, id, s, n}
// (§6). ReconstructRequest is the inverse of the builders below. Every
// id ends in a component carrying the file name (never containing keySep
// itself); for attachments it is "attachmentID.filename", which
// reconstruction splits back apart at the first '.'.

func joinKey(parts ...string) string { return strings.Join(parts, keySep) }

func splitKey(id string, n int) ([]string, bool) {
	parts := strings.Split(id, keySep)
	if len(parts) != n {
		return nil, false
	}
	return parts, true
}

func splitNameExt(nameExt string) (name, ext string, ok bool) {
	dot := strings.LastIndexByte(nameExt, '.')
	if dot < 0 {
		return "", "", false
	}
	return nameExt[:dot], nameExt[dot:], true
}

func extFor(animated bool) string {
	if animated {
		return ".gif"
	}
	return ".png"
}

func cdnURL(parts ...string) string {
	var b strings.Builder
	b.WriteString(cdnBase)
	for _, p := range parts {
		b.WriteString(p)
	}
	return b.String()
}

// NewAttachmentRequest builds the request for a message attachment.
// Attachment CDN URLs are signed and rotate, so url must be supplied
// fresh by the caller; it is not persisted or reconstructable.
func NewAttachmentRequest(dataPath string, guildID, channelID, attachmentID uint64, filename, url string) AssetRequest {
	id := joinKey(u64s(guildID), u64s(channelID), u64s(attachmentID)+"."+filename)
	return AssetRequest{
		Kind:     AssetAttachment,
		ID:       id,
		URL:      url,
		Folder:   MessageAttachmentDir(dataPath, guildID, channelID),
		Filename: u64s(attachmentID) + "_" + filename,
	}
}

func reconstructAttachment(dataPath, id string) (AssetRequest, bool) {
	parts, ok := splitKey(id, 3)
	if !ok {
		return AssetRequest{}, false
	}
	guildID, gErr := parseU64(parts[0])
	channelID, cErr := parseU64(parts[1])
	if gErr != nil || cErr != nil {
		return AssetRequest{}, false
	}
	dot := strings.IndexByte(parts[2], '.')
	if dot < 0 {
		return AssetRequest{}, false
	}
	attachmentID, filename := parts[2][:dot], parts[2][dot+1:]
	return AssetRequest{
		Kind:     AssetAttachment,
		ID:       id,
		Folder:   MessageAttachmentDir(dataPath, guildID, channelID),
		Filename: attachmentID + "_" + filename,
		// URL intentionally left empty: unrecoverable after a crash.
		// The downloader treats a reconstructed attachment request with
		// no URL as a no-op, relying on catchup to naturally re-derive
		// it with a fresh signed URL the next time it re-walks this
		// message.
	}, true
}

// NewAvatarRequest builds the request for a member or user avatar.
func NewAvatarRequest(dataPath string, guildID, userID uint64, hash string, animated bool) AssetRequest {
	nameExt := hash + extFor(animated)
	id := joinKey(u64s(guildID), u64s(userID), nameExt)
	return AssetRequest{
		Kind:     AssetAvatar,
		ID:       id,
		URL:      cdnURL("avatars/", u64s(userID), "/", nameExt),
		Folder:   AssetDir(dataPath, guildID, AssetAvatar),
		Filename: u64s(userID) + "_" + nameExt,
	}
}

// NewEmojiRequest builds the request for a custom emoji's image.
func NewEmojiRequest(dataPath string, guildID, emojiID uint64, animated bool) AssetRequest {
	nameExt := u64s(emojiID) + extFor(animated)
	id := joinKey(u64s(guildID), nameExt)
	return AssetRequest{
		Kind:     AssetEmoji,
		ID:       id,
		URL:      cdnURL("emojis/", nameExt),
		Folder:   AssetDir(dataPath, guildID, AssetEmoji),
		Filename: nameExt,
	}
}

// NewStickerRequest builds the request for a guild sticker's image. ext
// includes the leading dot and is derived from the sticker's format
// type by the caller (component B).
func NewStickerRequest(dataPath string, guildID, stickerID uint64, ext string) AssetRequest {
	nameExt := u64s(stickerID) + ext
	id := joinKey(u64s(guildID), nameExt)
	return AssetRequest{
		Kind:     AssetSticker,
		ID:       id,
		URL:      cdnURL("stickers/", nameExt),
		Folder:   AssetDir(dataPath, guildID, AssetSticker),
		Filename: nameExt,
	}
}

var guildImageCDNFolder = map[AssetKind]string{
	AssetIcon:   "icons/",
	AssetBanner: "banners/",
	AssetSplash: "splashes/",
}

// NewGuildImageRequest builds the request for a guild's icon, banner or
// splash image.
func NewGuildImageRequest(dataPath string, guildID uint64, kind AssetKind, hash string, animated bool) AssetRequest {
	nameExt := hash + extFor(animated)
	id := joinKey(u64s(guildID), nameExt)
	return AssetRequest{
		Kind:     kind,
		ID:       id,
		URL:      cdnURL(guildImageCDNFolder[kind], u64s(guildID), "/", nameExt),
		Folder:   AssetDir(dataPath, guildID, kind),
		Filename: nameExt,
	}
}

// ReconstructRequest rebuilds an AssetRequest from a tracker record's
// (kind, id) alone, used by the Asset Downloader to redrive entries left
// pending by a prior crash (§4.G step 3). Returns ok=false if id does
// not match the kind's expected encoding (a corrupt or foreign record,
// tolerated per §7 — the caller drops it rather than failing startup).
func ReconstructRequest(dataPath string, kind AssetKind, id string) (AssetRequest, bool) {
	switch kind {
	case AssetAttachment:
		return reconstructAttachment(dataPath, id)

	case AssetAvatar:
		parts, ok := splitKey(id, 3)
		if !ok {
			return AssetRequest{}, false
		}
		guildID, gErr := parseU64(parts[0])
		if gErr != nil {
			return AssetRequest{}, false
		}
		userID, nameExt := parts[1], parts[2]
		return AssetRequest{
			Kind:     kind,
			ID:       id,
			URL:      cdnURL("avatars/", userID, "/", nameExt),
			Folder:   AssetDir(dataPath, guildID, kind),
			Filename: userID + "_" + nameExt,
		}, true

	case AssetEmoji, AssetSticker:
		parts, ok := splitKey(id, 2)
		if !ok {
			return AssetRequest{}, false
		}
		guildID, err := parseU64(parts[0])
		if err != nil {
			return AssetRequest{}, false
		}
		nameExt := parts[1]
		cdnFolder := "emojis/"
		if kind == AssetSticker {
			cdnFolder = "stickers/"
		}
		return AssetRequest{
			Kind:     kind,
			ID:       id,
			URL:      cdnURL(cdnFolder, nameExt),
			Folder:   AssetDir(dataPath, guildID, kind),
			Filename: nameExt,
		}, true

	case AssetIcon, AssetBanner, AssetSplash:
		parts, ok := splitKey(id, 2)
		if !ok {
			return AssetRequest{}, false
		}
		guildID, err := parseU64(parts[0])
		if err != nil {
			return AssetRequest{}, false
		}
		nameExt := parts[1]
		return AssetRequest{
			Kind:     kind,
			ID:       id,
			URL:      cdnURL(guildImageCDNFolder[kind], parts[0], "/", nameExt),
			Folder:   AssetDir(dataPath, guildID, kind),
			Filename: nameExt,
		}, true

	default:
		return AssetRequest{}, false
	}
}
