package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/lavalink"
)

// handlePlay resolves the query on the active node, joins the caller's voice
// channel and enqueues the result. Resolution happens before the session is
// touched so a slow lookup never holds the guild's playback lock.
func (c *Commands) handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	user := interactionUser(i)
	if !c.limiter.Allow(user.ID) {
		return errorResponse("🐢 Slow Down", "You are searching too fast. Try again in a minute.")
	}

	query := strings.TrimSpace(optionString(i, "query"))
	if query == "" {
		return errorResponse("❌ Usage Error", "Please provide a link or search terms.")
	}

	channelID, inVoice := userVoiceChannel(s, i.GuildID, user.ID)
	if !inVoice {
		return errorResponse("❌ Not in Voice", "Join a voice channel first, then try again.")
	}

	node, err := c.nodes.Active()
	if err != nil {
		return errorResponse("❌ No Audio Node", errorMessage(err))
	}

	ctx, cancel := commandContext()
	defer cancel()

	identifier := lavalink.SearchQuery(query)
	tracks, err := node.LoadTracks(ctx, identifier)
	if err != nil {
		return errorResponse("❌ Lookup Failed", errorMessage(err))
	}

	// Searches resolve to their best match; URLs keep everything the node
	// loaded so playlists enqueue whole.
	if identifier != query && len(tracks) > 1 {
		tracks = tracks[:1]
	}
	for idx := range tracks {
		tracks[idx].Requester = user.Username
	}

	if err := c.voice.Join(i.GuildID, channelID); err != nil {
		c.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("voice join failed")
		return errorResponse("❌ Voice Error", "Could not join your voice channel.")
	}

	session := c.registry.GetOrCreate(i.GuildID)

	first := tracks[0]
	result, err := session.Enqueue(ctx, first)
	if err != nil {
		return errorResponse("❌ Playback Error", errorMessage(err))
	}

	queued := 1
	for _, track := range tracks[1:] {
		if _, err := session.Enqueue(ctx, track); err != nil {
			c.logger.Warn().Err(err).Str("guild_id", i.GuildID).Msg("stopped enqueueing playlist")
			break
		}
		queued++
	}

	if len(tracks) > 1 {
		return successResponse("🎵 Playlist Queued",
			fmt.Sprintf("Added **%d** tracks to the queue, starting with %s.", queued, trackLink(first)))
	}
	if result.Started {
		return &Response{Embed: trackEmbed("▶️ Now Playing", first, colorGreen)}
	}
	return &Response{Embed: trackEmbed(fmt.Sprintf("🎵 Queued at position %d", result.Position), first, colorBlue)}
}
