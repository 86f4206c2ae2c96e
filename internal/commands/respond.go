package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/lyrics"
	"github.com/aventh/cadenza/pkg/player"
)

// Embed colors
const (
	colorGreen = 0x00ff00
	colorRed   = 0xff0000
	colorGray  = 0x808080
	colorBlue  = 0x7289DA // Discord blue
)

func embedResponse(title, description string, color int) *Response {
	return &Response{
		Embed: &discordgo.MessageEmbed{
			Title:       title,
			Description: description,
			Color:       color,
			Timestamp:   time.Now().Format(time.RFC3339),
		},
	}
}

func successResponse(title, description string) *Response {
	return embedResponse(title, description, colorGreen)
}

func errorResponse(title, description string) *Response {
	return embedResponse(title, description, colorRed)
}

func neutralResponse(title, description string) *Response {
	return embedResponse(title, description, colorGray)
}

func infoResponse(title, description string) *Response {
	return embedResponse(title, description, colorBlue)
}

// errorMessage translates engine errors into user-facing text. Anything not
// recognized gets a generic line so internals never leak into chat.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, lavalink.ErrNoActiveNode), errors.Is(err, lavalink.ErrAllNodesFailed):
		return "No audio node is available right now. Try again in a moment."
	case errors.Is(err, lavalink.ErrNodeRequest):
		return "The audio node rejected the request. Try again in a moment."
	case errors.Is(err, lavalink.ErrNoMatches):
		return "No results for that query."
	case errors.Is(err, lavalink.ErrLoadFailed):
		return "That track could not be loaded."
	case errors.Is(err, lavalink.ErrUnknownNode):
		return "No node with that identifier exists."
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, player.ErrAlreadyPaused):
		return "Playback is already paused."
	case errors.Is(err, player.ErrNotPaused):
		return "Playback is not paused."
	case errors.Is(err, player.ErrQueueEmpty):
		return "The queue is empty."
	case errors.Is(err, player.ErrIndexOutOfRange):
		return "That queue position does not exist."
	case errors.Is(err, player.ErrVolumeOutOfRange):
		return "Volume must be between 0 and 100."
	case errors.Is(err, player.ErrNotSeekable):
		return "This track cannot be seeked."
	case errors.Is(err, player.ErrUnknownLoopMode):
		return "Loop mode must be off, track or queue."
	case errors.Is(err, player.ErrSessionClosed):
		return "That session just ended. Run the command again."
	case errors.Is(err, lyrics.ErrNotFound):
		return "No lyrics found for that track."
	default:
		return "Something went wrong. Check the bot logs for details."
	}
}

// formatDuration renders a track length the way users expect to read it.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

func trackDuration(track lavalink.Track) string {
	if track.Info.IsStream {
		return "🔴 Live"
	}
	return formatDuration(track.Duration())
}

// trackLink renders a track as a markdown link when a URI is known.
func trackLink(track lavalink.Track) string {
	if track.Info.URI != "" {
		return fmt.Sprintf("[%s](%s)", track.Display(), track.Info.URI)
	}
	return fmt.Sprintf("**%s**", track.Display())
}

func requesterName(track lavalink.Track) string {
	if track.Requester == "" {
		return "unknown"
	}
	return track.Requester
}

// trackEmbed builds the standard single-track embed used by play and the
// now-playing announcements.
func trackEmbed(title string, track lavalink.Track, color int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: trackLink(track),
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Duration",
				Value:  trackDuration(track),
				Inline: true,
			},
		},
	}
	if track.Requester != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  track.Requester,
			Inline: true,
		})
	}
	if track.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.Info.ArtworkURL}
	}
	return embed
}
