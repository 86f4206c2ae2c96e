package commands

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/lyrics"
	"github.com/aventh/cadenza/pkg/player"
)

// commandTimeout bounds every node and database call made from a command.
const commandTimeout = 10 * time.Second

// VoiceConnector joins and leaves guild voice channels on behalf of the
// commands.
type VoiceConnector interface {
	Join(guildID, channelID string) error
	Leave(guildID string) error
}

// Response is what a command hands back to the interaction router.
type Response struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// Handler executes a single slash command.
type Handler func(s *discordgo.Session, i *discordgo.InteractionCreate) *Response

// Options wires the command set to the rest of the bot.
type Options struct {
	Registry *player.Registry
	Nodes    *lavalink.Manager
	Voice    VoiceConnector
	Lyrics   *lyrics.Client
	Logger   zerolog.Logger
}

// Commands is the slash command set.
type Commands struct {
	registry *player.Registry
	nodes    *lavalink.Manager
	voice    VoiceConnector
	lyrics   *lyrics.Client
	limiter  *userLimiter
	logger   zerolog.Logger
}

// New builds the command set.
func New(opts Options) *Commands {
	return &Commands{
		registry: opts.Registry,
		nodes:    opts.Nodes,
		voice:    opts.Voice,
		lyrics:   opts.Lyrics,
		limiter:  newUserLimiter(searchLimit, searchBurst),
		logger:   opts.Logger.With().Str("component", "commands").Logger(),
	}
}

// Handlers maps command names to their handlers.
func (c *Commands) Handlers() map[string]Handler {
	return map[string]Handler{
		"play":       c.handlePlay,
		"pause":      c.handlePause,
		"resume":     c.handleResume,
		"skip":       c.handleSkip,
		"stop":       c.handleStop,
		"seek":       c.handleSeek,
		"volume":     c.handleVolume,
		"loop":       c.handleLoop,
		"queue":      c.handleQueue,
		"nowplaying": c.handleNowPlaying,
		"remove":     c.handleRemove,
		"move":       c.handleMove,
		"shuffle":    c.handleShuffle,
		"clear":      c.handleClear,
		"join":       c.handleJoin,
		"leave":      c.handleLeave,
		"stay247":    c.handleStay247,
		"announce":   c.handleAnnounce,
		"node":       c.handleNode,
		"lyrics":     c.handleLyrics,
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// interactionUser returns the invoking user for guild and DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// userVoiceChannel looks the caller's voice channel up in session state.
func userVoiceChannel(s *discordgo.Session, guildID, userID string) (string, bool) {
	voiceState, err := s.State.VoiceState(guildID, userID)
	if err != nil || voiceState == nil || voiceState.ChannelID == "" {
		return "", false
	}
	return voiceState.ChannelID, true
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func optionString(i *discordgo.InteractionCreate, name string) string {
	if opt, ok := optionMap(i)[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func optionInt(i *discordgo.InteractionCreate, name string) int {
	if opt, ok := optionMap(i)[name]; ok {
		return int(opt.IntValue())
	}
	return 0
}

func optionBool(i *discordgo.InteractionCreate, name string) bool {
	if opt, ok := optionMap(i)[name]; ok {
		return opt.BoolValue()
	}
	return false
}

func optionChannelID(i *discordgo.InteractionCreate, name string) string {
	if opt, ok := optionMap(i)[name]; ok {
		if ch := opt.ChannelValue(nil); ch != nil {
			return ch.ID
		}
	}
	return ""
}
