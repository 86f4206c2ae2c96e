package commands

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/player"
)

func (c *Commands) handleNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return nothingPlayingResponse()
	}

	now, playing := session.NowPlaying()
	if !playing {
		return nothingPlayingResponse()
	}

	statusEmoji, statusText := "🟢", "Playing"
	if now.Status == player.StatusPaused {
		statusEmoji, statusText = "🟡", "Paused"
	}

	position := trackDuration(now.Track)
	if !now.Track.Info.IsStream {
		position = fmt.Sprintf("%s / %s", formatDuration(now.Position), trackDuration(now.Track))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: trackLink(now.Track),
		Color:       colorGreen,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Requested by",
				Value:  requesterName(now.Track),
				Inline: true,
			},
			{
				Name:   "Position",
				Value:  position,
				Inline: true,
			},
			{
				Name:   "Status",
				Value:  fmt.Sprintf("%s %s", statusEmoji, statusText),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Volume: %d%% | Loop: %s", now.Volume, now.Loop),
		},
	}
	if now.Track.Info.Author != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Artist",
			Value:  now.Track.Info.Author,
			Inline: true,
		})
	}
	if now.Track.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: now.Track.Info.ArtworkURL}
	}

	return &Response{Embed: embed}
}

func nothingPlayingResponse() *Response {
	return &Response{Embed: &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: "Nothing is currently playing",
		Color:       colorGray,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Use /play to start playing music",
		},
	}}
}
