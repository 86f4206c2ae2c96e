package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (c *Commands) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	user := interactionUser(i)

	channelID, inVoice := userVoiceChannel(s, i.GuildID, user.ID)
	if !inVoice {
		return errorResponse("❌ Not in Voice", "Join a voice channel first, then try again.")
	}

	if err := c.voice.Join(i.GuildID, channelID); err != nil {
		c.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("voice join failed")
		return errorResponse("❌ Voice Error", "Could not join your voice channel.")
	}
	c.registry.GetOrCreate(i.GuildID)

	return successResponse("👋 Joined", fmt.Sprintf("Connected to <#%s>.", channelID))
}

func (c *Commands) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	if _, ok := c.registry.Get(i.GuildID); !ok {
		return neutralResponse("👋 Leave", "I am not in a voice channel.")
	}

	// Remove tears the session down, which stops playback, destroys the
	// node player and disconnects from voice.
	c.registry.Remove(i.GuildID)

	return successResponse("👋 Left", "Disconnected and cleared the queue.")
}
