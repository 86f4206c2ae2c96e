package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/player"
)

type fakeGateway struct {
	disconnects []string
}

func (f *fakeGateway) Disconnect(guildID string) error {
	f.disconnects = append(f.disconnects, guildID)
	return nil
}

func newTestDiscordSession(t *testing.T) *discordgo.Session {
	t.Helper()

	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.State.User = &discordgo.User{ID: "bot-1", Bot: true}
	return s
}

func newTestManager(t *testing.T) *lavalink.Manager {
	t.Helper()

	mgr, err := lavalink.NewManager([]lavalink.NodeDescriptor{
		{Identifier: "main", Host: "127.0.0.1", Port: 2333, Password: "pass"},
	}, lavalink.ManagerOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	return mgr
}

func ownVoiceState(guildID, channelID, sessionID string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID:   guildID,
			ChannelID: channelID,
			UserID:    "bot-1",
			SessionID: sessionID,
		},
	}
}

func TestVoiceHandshakeAccumulates(t *testing.T) {
	s := newTestDiscordSession(t)
	voice := NewVoice(s, newTestManager(t), zerolog.Nop())

	voice.HandleVoiceState(s, ownVoiceState("g1", "vc-1", "sess-abc"))

	voice.mu.Lock()
	p := voice.pending["g1"]
	voice.mu.Unlock()
	require.NotNil(t, p)
	assert.Equal(t, "sess-abc", p.sessionID)
	assert.False(t, p.complete())

	voice.HandleVoiceServer(s, &discordgo.VoiceServerUpdate{
		GuildID:  "g1",
		Token:    "tok",
		Endpoint: "us-east.discord.media:80",
	})

	voice.mu.Lock()
	p = voice.pending["g1"]
	voice.mu.Unlock()
	require.NotNil(t, p)
	assert.True(t, p.complete())
	assert.Equal(t, "tok", p.token)
	assert.Equal(t, "us-east.discord.media", p.endpoint, "the :80 suffix should be stripped")
}

func TestVoiceHandshakeClearsOnLeave(t *testing.T) {
	s := newTestDiscordSession(t)
	voice := NewVoice(s, newTestManager(t), zerolog.Nop())

	voice.HandleVoiceState(s, ownVoiceState("g1", "vc-1", "sess-abc"))
	voice.HandleVoiceState(s, ownVoiceState("g1", "", ""))

	voice.mu.Lock()
	_, ok := voice.pending["g1"]
	voice.mu.Unlock()
	assert.False(t, ok)
}

// aloneFixture puts the bot alone in vc-1 of g1 with a live session for the
// guild.
func aloneFixture(t *testing.T) (*Voice, *player.Registry, *discordgo.Session) {
	t.Helper()

	s := newTestDiscordSession(t)
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", ChannelID: "vc-1", UserID: "bot-1"},
		},
	}))

	registry := player.NewRegistry(player.RegistryOptions{
		Nodes: player.NodeProviderFunc(func() (player.AudioNode, error) {
			return nil, lavalink.ErrNoActiveNode
		}),
		Voice:       &fakeGateway{},
		Defaults:    player.Settings{Volume: 30},
		IdleTimeout: time.Minute,
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(registry.Close)
	registry.GetOrCreate("g1")

	voice := NewVoice(s, newTestManager(t), zerolog.Nop())
	voice.SetRegistry(registry)
	return voice, registry, s
}

func userLeft(guildID, fromChannel string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID: guildID,
			UserID:  "user-2",
		},
		BeforeUpdate: &discordgo.VoiceState{
			GuildID:   guildID,
			ChannelID: fromChannel,
			UserID:    "user-2",
		},
	}
}

func TestAloneInChannelEndsSession(t *testing.T) {
	voice, registry, s := aloneFixture(t)

	voice.HandleVoiceState(s, userLeft("g1", "vc-1"))

	_, ok := registry.Get("g1")
	assert.False(t, ok, "session should be torn down when the bot is alone")
}

func TestAloneInChannelRespectsStay247(t *testing.T) {
	voice, registry, s := aloneFixture(t)

	session, ok := registry.Get("g1")
	require.True(t, ok)
	require.NoError(t, session.SetStay247(context.Background(), true))

	voice.HandleVoiceState(s, userLeft("g1", "vc-1"))

	_, ok = registry.Get("g1")
	assert.True(t, ok, "24/7 mode must keep the session alive")
}

func TestAloneCheckIgnoresOtherChannels(t *testing.T) {
	voice, registry, s := aloneFixture(t)

	voice.HandleVoiceState(s, userLeft("g1", "vc-2"))

	_, ok := registry.Get("g1")
	assert.True(t, ok, "movement in unrelated channels must not end the session")
}

func TestAloneCheckCountsRemainingListeners(t *testing.T) {
	voice, registry, s := aloneFixture(t)
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", ChannelID: "vc-1", UserID: "bot-1"},
			{GuildID: "g1", ChannelID: "vc-1", UserID: "user-3"},
		},
	}))

	voice.HandleVoiceState(s, userLeft("g1", "vc-1"))

	_, ok := registry.Get("g1")
	assert.True(t, ok, "someone is still listening")
}
