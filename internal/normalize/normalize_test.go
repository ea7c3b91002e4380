package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
)

func TestMessageBuildsCreateEventWithAttachmentAsset(t *testing.T) {
	m := discord.Message{
		ID:        1, GuildID: 10, ChannelID: 20,
		Content:   "hi",
		AuthorID:  7,
		CreatedAt: 1000,
		Attachments: []discord.Attachment{
			{ID: 5, Filename: "cat.png", URL: "https://cdn.discordapp.com/attachments/20/5/cat.png"},
		},
	}

	ev, assets := Message("/data", m)
	require.Equal(t, model.TagCreate, ev.Tag)
	require.Equal(t, uint64(1), ev.ID)
	require.Len(t, assets, 1)
	require.Equal(t, model.AssetAttachment, assets[0].Kind)
	require.Equal(t, "/data/10/messages/20", assets[0].Folder)
	require.Equal(t, "5_cat.png", assets[0].Filename)
}

func TestMessageUpdateOmitsUntouchedFields(t *testing.T) {
	ev := MessageUpdate(discord.Message{ID: 2, Content: "edited"})
	require.Equal(t, model.TagUpdate, ev.Tag)
	require.Equal(t, "edited", ev.Content)
	require.Zero(t, ev.CreatedAt)
	require.Nil(t, ev.Attachments)
}

func TestEmojiRequestReconstructsIdentically(t *testing.T) {
	_, req := Emoji("/data", 10, discord.Emoji{ID: 99, Name: "pog", Animated: true})
	require.Equal(t, "https://cdn.discordapp.com/emojis/99.gif", req.URL)

	got, ok := model.ReconstructRequest("/data", model.AssetEmoji, req.ID)
	require.True(t, ok)
	require.Equal(t, req, got)
}

func TestAvatarRequestReconstructsIdentically(t *testing.T) {
	req := Avatar("/data", 10, 42, "abc123", false)
	got, ok := model.ReconstructRequest("/data", model.AssetAvatar, req.ID)
	require.True(t, ok)
	require.Equal(t, req, got)
}

func TestGuildIconRequestReconstructsIdentically(t *testing.T) {
	req := GuildIcon("/data", 10, "iconhash", false)
	got, ok := model.ReconstructRequest("/data", model.AssetIcon, req.ID)
	require.True(t, ok)
	require.Equal(t, req, got)
}

func TestAttachmentRequestIsNotFullyReconstructable(t *testing.T) {
	req := model.NewAttachmentRequest("/data", 10, 20, 5, "cat.png", "https://signed.example/cat.png")
	got, ok := model.ReconstructRequest("/data", model.AssetAttachment, req.ID)
	require.True(t, ok)
	require.Empty(t, got.URL) // signed URL cannot survive a crash
	require.Equal(t, req.Folder, got.Folder)
	require.Equal(t, req.Filename, got.Filename)
}
