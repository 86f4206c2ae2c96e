package commands

import (
	"github.com/bwmarrin/discordgo"
)

// Definitions returns every slash command the bot serves.
func Definitions() []*discordgo.ApplicationCommand {
	minIndex := float64(1)
	minVolume := float64(0)
	manageGuild := int64(discordgo.PermissionManageServer)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a track or add it to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "A link or search terms",
					Required:    true,
				},
			},
		},
		{
			Name:        "pause",
			Description: "Pause the current track",
		},
		{
			Name:        "resume",
			Description: "Resume paused playback",
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        "seek",
			Description: "Jump to a position in the current track",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "position",
					Description: "mm:ss, hh:mm:ss or plain seconds",
					Required:    true,
				},
			},
		},
		{
			Name:        "volume",
			Description: "Show or set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume from 0 to 100",
					MinValue:    &minVolume,
					MaxValue:    100,
				},
			},
		},
		{
			Name:        "loop",
			Description: "Set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "off, track or queue",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "off", Value: "off"},
						{Name: "track", Value: "track"},
						{Name: "queue", Value: "queue"},
					},
				},
			},
		},
		{
			Name:        "queue",
			Description: "Show the pending queue",
		},
		{
			Name:        "nowplaying",
			Description: "Show what's currently playing",
		},
		{
			Name:        "remove",
			Description: "Remove a queued track",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "index",
					Description: "Queue position to remove (1-based)",
					Required:    true,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "move",
			Description: "Move a queued track to another position",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "from",
					Description: "Current position (1-based)",
					Required:    true,
					MinValue:    &minIndex,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "to",
					Description: "Target position (1-based)",
					Required:    true,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "shuffle",
			Description: "Shuffle the pending queue",
		},
		{
			Name:        "clear",
			Description: "Clear the pending queue",
		},
		{
			Name:        "join",
			Description: "Summon the bot to your voice channel",
		},
		{
			Name:        "leave",
			Description: "Disconnect the bot from voice",
		},
		{
			Name:        "stay247",
			Description: "Keep the bot in the voice channel around the clock",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Whether 24/7 mode is on",
					Required:    true,
				},
			},
		},
		{
			Name:        "announce",
			Description: "Toggle now-playing announcements",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Whether announcements are on",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to announce in (defaults to where tracks are queued)",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:                     "node",
			Description:              "Inspect or switch the audio node",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the state of every configured node",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "switch",
					Description: "Switch playback to a specific node",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "id",
							Description: "Node identifier",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "lyrics",
			Description: "Look up lyrics for the current or a named track",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "artist - title (defaults to the current track)",
				},
			},
		},
	}
}

// Register pushes the command set to Discord. With a guild ID the commands
// show up instantly in that guild; global registration can take up to an
// hour to propagate.
func Register(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Definitions())
	return err
}
