package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/player"
)

func (c *Commands) handleVolume(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session := c.registry.GetOrCreate(i.GuildID)

	opts := optionMap(i)
	if _, set := opts["level"]; !set {
		return infoResponse("🔊 Volume",
			fmt.Sprintf("The volume is currently **%d%%**.", session.Settings().Volume))
	}

	level := optionInt(i, "level")

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.SetVolume(ctx, level); err != nil {
		return errorResponse("❌ Volume Failed", errorMessage(err))
	}
	return successResponse("🔊 Volume", fmt.Sprintf("Volume set to **%d%%**.", level))
}

func (c *Commands) handleLoop(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session := c.registry.GetOrCreate(i.GuildID)

	mode, err := player.ParseLoopMode(optionString(i, "mode"))
	if err != nil {
		return errorResponse("❌ Loop Failed", errorMessage(err))
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.SetLoopMode(ctx, mode); err != nil {
		return errorResponse("❌ Loop Failed", errorMessage(err))
	}

	switch mode {
	case player.LoopTrack:
		return successResponse("🔂 Loop", "Looping the **current track**.")
	case player.LoopQueue:
		return successResponse("🔁 Loop", "Looping the **whole queue**.")
	default:
		return successResponse("➡️ Loop", "Looping is **off**.")
	}
}

func (c *Commands) handleStay247(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session := c.registry.GetOrCreate(i.GuildID)

	enabled := optionBool(i, "enabled")

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.SetStay247(ctx, enabled); err != nil {
		return errorResponse("❌ 24/7 Failed", errorMessage(err))
	}
	if enabled {
		return successResponse("🌙 24/7 Mode", "I will stay in the voice channel even when idle.")
	}
	return successResponse("🌙 24/7 Mode", "24/7 mode is off. I will leave after the idle timeout.")
}

func (c *Commands) handleAnnounce(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session := c.registry.GetOrCreate(i.GuildID)

	enabled := optionBool(i, "enabled")
	channelID := optionChannelID(i, "channel")

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.SetAnnounce(ctx, enabled, channelID); err != nil {
		return errorResponse("❌ Announce Failed", errorMessage(err))
	}
	if !enabled {
		return successResponse("📣 Announcements", "Now-playing announcements are off.")
	}
	if channelID != "" {
		return successResponse("📣 Announcements",
			fmt.Sprintf("Announcing new tracks in <#%s>.", channelID))
	}
	return successResponse("📣 Announcements",
		"Announcing new tracks in the channel the play command came from.")
}
