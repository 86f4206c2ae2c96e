package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/player"
)

const voiceUpdateTimeout = 5 * time.Second

// pendingVoice accumulates the two halves of a guild voice handshake. The
// gateway sends the session id and the server credentials as separate
// events and the node needs all three values at once.
type pendingVoice struct {
	sessionID string
	token     string
	endpoint  string
}

func (p pendingVoice) complete() bool {
	return p.sessionID != "" && p.token != "" && p.endpoint != ""
}

// Voice owns the bot's guild voice channel membership and relays Discord
// voice credentials to the active audio node. It implements the command
// layer's VoiceConnector and the player's VoiceGateway.
type Voice struct {
	session  *discordgo.Session
	nodes    *lavalink.Manager
	registry *player.Registry
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingVoice
}

// NewVoice builds the voice layer. The registry may be set later with
// SetRegistry because the registry itself needs a VoiceGateway to exist
// first.
func NewVoice(session *discordgo.Session, nodes *lavalink.Manager, logger zerolog.Logger) *Voice {
	return &Voice{
		session: session,
		nodes:   nodes,
		logger:  logger.With().Str("component", "voice").Logger(),
		pending: make(map[string]*pendingVoice),
	}
}

// SetRegistry wires the session registry in after construction.
func (v *Voice) SetRegistry(registry *player.Registry) {
	v.registry = registry
}

// Join moves the bot into a guild voice channel. The gateway update is
// sent manually so discordgo never opens its own UDP voice connection;
// audio flows through the node instead.
func (v *Voice) Join(guildID, channelID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

// Leave detaches the bot from the guild's voice channel.
func (v *Voice) Leave(guildID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, "", false, true)
}

// Disconnect implements player.VoiceGateway.
func (v *Voice) Disconnect(guildID string) error {
	return v.Leave(guildID)
}

// HandleVoiceState is the discordgo VoiceStateUpdate handler. Updates for
// the bot itself carry the voice session id half of the node handshake;
// updates for everyone else drive the alone-in-channel check.
func (v *Voice) HandleVoiceState(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e == nil || e.VoiceState == nil {
		return
	}
	if s.State.User != nil && e.UserID == s.State.User.ID {
		v.handleOwnVoiceState(e)
		return
	}
	v.checkAlone(s, e)
}

func (v *Voice) handleOwnVoiceState(e *discordgo.VoiceStateUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if e.ChannelID == "" {
		delete(v.pending, e.GuildID)
		return
	}

	p := v.pending[e.GuildID]
	if p == nil {
		p = &pendingVoice{}
		v.pending[e.GuildID] = p
	}
	p.sessionID = e.SessionID
	v.pushLocked(e.GuildID, p)
}

// HandleVoiceServer is the discordgo VoiceServerUpdate handler carrying the
// token and endpoint half of the handshake.
func (v *Voice) HandleVoiceServer(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if e == nil || e.Endpoint == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.pending[e.GuildID]
	if p == nil {
		p = &pendingVoice{}
		v.pending[e.GuildID] = p
	}
	p.token = e.Token
	p.endpoint = strings.TrimSuffix(e.Endpoint, ":80")
	v.pushLocked(e.GuildID, p)
}

// pushLocked forwards a completed handshake to the active node. Called with
// v.mu held; the node call happens on its own goroutine so a slow node
// never blocks the gateway event loop.
func (v *Voice) pushLocked(guildID string, p *pendingVoice) {
	if !p.complete() {
		return
	}
	update := lavalink.VoiceUpdate{
		Token:     p.token,
		Endpoint:  p.endpoint,
		SessionID: p.sessionID,
	}
	go func() {
		node, err := v.nodes.Active()
		if err != nil {
			v.logger.Warn().Err(err).Str("guild_id", guildID).Msg("voice update with no active node")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), voiceUpdateTimeout)
		defer cancel()
		if err := node.UpdateVoice(ctx, guildID, update); err != nil {
			v.logger.Error().Err(err).Str("guild_id", guildID).Msg("failed to push voice update to node")
		}
	}()
}

// checkAlone tears the guild session down when the bot is the only one
// left in its voice channel, unless the guild runs in 24/7 mode.
func (v *Voice) checkAlone(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if v.registry == nil {
		return
	}
	session, ok := v.registry.Get(e.GuildID)
	if !ok {
		return
	}
	if session.Settings().Stay247 {
		return
	}

	botChannel := v.botChannelID(s, e.GuildID)
	if botChannel == "" {
		return
	}
	// Only channel membership changes matter, and only ones touching the
	// bot's channel.
	if e.ChannelID != botChannel && (e.BeforeUpdate == nil || e.BeforeUpdate.ChannelID != botChannel) {
		return
	}
	if v.listeners(s, e.GuildID, botChannel) > 0 {
		return
	}

	v.logger.Info().Str("guild_id", e.GuildID).Msg("voice channel is empty, leaving")
	v.registry.Remove(e.GuildID)
}

func (v *Voice) botChannelID(s *discordgo.Session, guildID string) string {
	if s.State.User == nil {
		return ""
	}
	vs, err := s.State.VoiceState(guildID, s.State.User.ID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// listeners counts non-bot users in the channel.
func (v *Voice) listeners(s *discordgo.Session, guildID, channelID string) int {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return 0
	}
	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if s.State.User != nil && vs.UserID == s.State.User.ID {
			continue
		}
		count++
	}
	return count
}
