package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (c *Commands) handleLyrics(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	user := interactionUser(i)
	if !c.limiter.Allow(user.ID) {
		return errorResponse("🐢 Slow Down", "You are searching too fast. Try again in a minute.")
	}

	artist, title := splitLyricsQuery(optionString(i, "query"))
	if title == "" {
		// No query given, fall back to whatever is playing right now.
		session, ok := c.registry.Get(i.GuildID)
		if !ok {
			return neutralResponse("🎤 Lyrics", "Nothing is playing. Give me a song name to look up.")
		}
		now, playing := session.NowPlaying()
		if !playing {
			return neutralResponse("🎤 Lyrics", "Nothing is playing. Give me a song name to look up.")
		}
		artist, title = now.Track.Info.Author, now.Track.Info.Title
	}

	ctx, cancel := commandContext()
	defer cancel()

	result, err := c.lyrics.Search(ctx, artist, title)
	if err != nil {
		return errorResponse("❌ Lyrics Not Found", errorMessage(err))
	}

	heading := result.Title
	if result.Artist != "" {
		heading = fmt.Sprintf("%s - %s", result.Artist, result.Title)
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎤 %s", heading),
		Description: result.Lyrics,
		Color:       colorBlue,
		URL:         result.URL,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Source: %s", result.Source),
		},
	}
	return &Response{Embed: embed}
}

// splitLyricsQuery understands the conventional "artist - title" form and
// treats anything else as a bare title.
func splitLyricsQuery(query string) (artist, title string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ""
	}
	if idx := strings.Index(query, " - "); idx >= 0 {
		return strings.TrimSpace(query[:idx]), strings.TrimSpace(query[idx+3:])
	}
	return "", query
}
