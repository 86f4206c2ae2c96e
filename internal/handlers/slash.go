package handlers

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/internal/commands"
)

// Router dispatches slash command interactions to their handlers. Every
// command is acknowledged with a deferred response first so slow node or
// lyrics lookups never trip Discord's 3 second interaction deadline.
type Router struct {
	handlers map[string]commands.Handler
	notifier *Notifier
	logger   zerolog.Logger
}

// NewRouter builds a router over the command set. The notifier is optional;
// when present the router records each command's channel so announcements
// can fall back to wherever the guild last spoke to the bot.
func NewRouter(cmds *commands.Commands, notifier *Notifier, logger zerolog.Logger) *Router {
	return &Router{
		handlers: cmds.Handlers(),
		notifier: notifier,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// HandleInteraction is the discordgo InteractionCreate handler.
func (r *Router) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	user := interactionUser(i)
	if user == nil || user.Bot {
		return
	}

	data := i.ApplicationCommandData()
	log := r.logger.With().
		Str("command", data.Name).
		Str("guild_id", i.GuildID).
		Str("user_id", user.ID).
		Logger()

	handler, ok := r.handlers[data.Name]
	if !ok {
		log.Warn().Msg("no handler registered for command")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		log.Error().Err(err).Msg("failed to acknowledge interaction")
		return
	}

	if i.GuildID == "" {
		r.edit(s, i, &commands.Response{Content: "❌ This command only works in a server."}, log)
		return
	}

	if r.notifier != nil && i.ChannelID != "" {
		r.notifier.RecordChannel(i.GuildID, i.ChannelID)
	}

	resp := r.run(handler, s, i, log)
	if resp == nil {
		resp = &commands.Response{Content: "❌ Something went wrong. Check the bot logs for details."}
	}
	r.edit(s, i, resp, log)
}

// run executes the handler and converts a panic into an error response, so
// a bug in one command cannot leave the interaction stuck on "thinking".
func (r *Router) run(handler commands.Handler, s *discordgo.Session, i *discordgo.InteractionCreate, log zerolog.Logger) (resp *commands.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("command handler panicked")
			resp = nil
		}
	}()
	return handler(s, i)
}

func (r *Router) edit(s *discordgo.Session, i *discordgo.InteractionCreate, resp *commands.Response, log zerolog.Logger) {
	edit := &discordgo.WebhookEdit{}
	if resp.Content != "" {
		edit.Content = &resp.Content
	}
	if resp.Embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{resp.Embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		log.Error().Err(err).Msg("failed to edit interaction response")
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}
