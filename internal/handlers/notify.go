package handlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/lavalink"
)

// Notifier posts now-playing announcements. Guilds with no configured
// announce channel get the announcement in the channel their last command
// came from.
type Notifier struct {
	session *discordgo.Session
	logger  zerolog.Logger

	mu          sync.RWMutex
	lastChannel map[string]string
}

// NewNotifier builds a notifier over the discord session.
func NewNotifier(session *discordgo.Session, logger zerolog.Logger) *Notifier {
	return &Notifier{
		session:     session,
		logger:      logger.With().Str("component", "notifier").Logger(),
		lastChannel: make(map[string]string),
	}
}

// RecordChannel remembers the channel a guild last ran a command in.
func (n *Notifier) RecordChannel(guildID, channelID string) {
	n.mu.Lock()
	n.lastChannel[guildID] = channelID
	n.mu.Unlock()
}

// TrackStarted implements player.Notifier. An empty channelID means the
// guild wants announcements but never pinned them to a channel.
func (n *Notifier) TrackStarted(guildID, channelID string, track lavalink.Track) {
	if channelID == "" {
		n.mu.RLock()
		channelID = n.lastChannel[guildID]
		n.mu.RUnlock()
	}
	if channelID == "" {
		n.logger.Debug().Str("guild_id", guildID).Msg("no channel to announce in")
		return
	}

	embed := announceEmbed(track)
	if _, err := n.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		n.logger.Warn().Err(err).
			Str("guild_id", guildID).
			Str("channel_id", channelID).
			Msg("failed to send now-playing announcement")
	}
}

func announceEmbed(track lavalink.Track) *discordgo.MessageEmbed {
	description := fmt.Sprintf("**%s**", track.Display())
	if track.Info.URI != "" {
		description = fmt.Sprintf("[%s](%s)", track.Display(), track.Info.URI)
	}

	duration := formatTrackDuration(track)
	embed := &discordgo.MessageEmbed{
		Title:       "▶️ Now Playing",
		Description: description,
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Duration",
				Value:  duration,
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

func formatTrackDuration(track lavalink.Track) string {
	if track.Info.IsStream {
		return "🔴 Live"
	}
	d := track.Duration()
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", minutes/60, minutes%60, seconds)
}
