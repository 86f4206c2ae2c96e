package commands

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/player"
)

type fakeVoice struct {
	joins  []string
	leaves []string
	err    error
}

func (f *fakeVoice) Join(guildID, channelID string) error {
	f.joins = append(f.joins, guildID+":"+channelID)
	return f.err
}

func (f *fakeVoice) Leave(guildID string) error {
	f.leaves = append(f.leaves, guildID)
	return f.err
}

// newTestCommands builds a command set backed by a real registry whose node
// provider always reports no node. Handlers that never reach a node run
// end to end against it.
func newTestCommands(t *testing.T) (*Commands, *player.Registry, *fakeVoice) {
	t.Helper()

	registry := player.NewRegistry(player.RegistryOptions{
		Nodes: player.NodeProviderFunc(func() (player.AudioNode, error) {
			return nil, lavalink.ErrNoActiveNode
		}),
		Defaults:    player.Settings{Volume: 30},
		IdleTimeout: time.Minute,
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(registry.Close)

	voice := &fakeVoice{}
	cmds := New(Options{
		Registry: registry,
		Voice:    voice,
		Logger:   zerolog.Nop(),
	})
	return cmds, registry, voice
}

func testInteraction(guildID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1", Username: "tester"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: opts,
			},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func boolOption(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionBoolean,
		Value: value,
	}
}

func channelOption(name, channelID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionChannel,
		Value: channelID,
	}
}

// stateWithVoice builds a discord session whose state places user-1 in the
// given voice channel.
func stateWithVoice(t *testing.T, guildID, channelID string) *discordgo.Session {
	t.Helper()

	state := discordgo.NewState()
	err := state.GuildAdd(&discordgo.Guild{
		ID: guildID,
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "user-1", ChannelID: channelID, GuildID: guildID},
		},
	})
	require.NoError(t, err)
	return &discordgo.Session{State: state}
}

func TestHandlersCoverDefinitions(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	handlers := cmds.Handlers()
	defs := Definitions()

	assert.Len(t, handlers, len(defs))
	for _, def := range defs {
		assert.Contains(t, handlers, def.Name, "no handler for /%s", def.Name)
	}
}

func TestDefinitionsShape(t *testing.T) {
	defs := Definitions()

	byName := make(map[string]*discordgo.ApplicationCommand, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	play, ok := byName["play"]
	require.True(t, ok)
	require.Len(t, play.Options, 1)
	assert.Equal(t, "query", play.Options[0].Name)
	assert.True(t, play.Options[0].Required)

	node, ok := byName["node"]
	require.True(t, ok)
	require.NotNil(t, node.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionManageServer), *node.DefaultMemberPermissions)

	volume, ok := byName["volume"]
	require.True(t, ok)
	require.Len(t, volume.Options, 1)
	assert.False(t, volume.Options[0].Required)
	require.NotNil(t, volume.Options[0].MinValue)
	assert.Equal(t, float64(0), *volume.Options[0].MinValue)
	assert.Equal(t, float64(100), volume.Options[0].MaxValue)

	loop, ok := byName["loop"]
	require.True(t, ok)
	require.Len(t, loop.Options, 1)
	assert.Len(t, loop.Options[0].Choices, 3)
}

func TestOptionHelpers(t *testing.T) {
	i := testInteraction("g1", "announce",
		boolOption("enabled", true),
		channelOption("channel", "chan-42"),
		stringOption("note", "hi"),
		intOption("level", 7),
	)

	assert.True(t, optionBool(i, "enabled"))
	assert.Equal(t, "chan-42", optionChannelID(i, "channel"))
	assert.Equal(t, "hi", optionString(i, "note"))
	assert.Equal(t, 7, optionInt(i, "level"))

	assert.False(t, optionBool(i, "missing"))
	assert.Equal(t, "", optionString(i, "missing"))
	assert.Equal(t, 0, optionInt(i, "missing"))
	assert.Equal(t, "", optionChannelID(i, "missing"))
}

func TestInteractionUser(t *testing.T) {
	member := testInteraction("g1", "play")
	assert.Equal(t, "user-1", interactionUser(member).ID)

	dm := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			User: &discordgo.User{ID: "dm-user"},
		},
	}
	assert.Equal(t, "dm-user", interactionUser(dm).ID)
}

func TestPlaybackCommandsWithoutSession(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	tests := []struct {
		name    string
		handler Handler
		title   string
	}{
		{"pause", cmds.handlePause, "⏸️ Nothing Playing"},
		{"resume", cmds.handleResume, "▶️ Nothing Paused"},
		{"skip", cmds.handleSkip, "⏭️ Nothing Playing"},
		{"stop", cmds.handleStop, "⏹️ Nothing Playing"},
		{"seek", cmds.handleSeek, "⏩ Nothing Playing"},
		{"queue", cmds.handleQueue, "📜 Queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.handler(nil, testInteraction("g1", tt.name))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Embed)
			assert.Equal(t, tt.title, resp.Embed.Title)
			assert.Equal(t, colorGray, resp.Embed.Color)
		})
	}
}

func TestHandleSkipIdleSession(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)
	registry.GetOrCreate("g1")

	resp := cmds.handleSkip(nil, testInteraction("g1", "skip"))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "❌ Skip Failed", resp.Embed.Title)
	assert.Equal(t, "Nothing is playing right now.", resp.Embed.Description)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"plain seconds", "90", 90 * time.Second, false},
		{"seconds suffix", "90s", 90 * time.Second, false},
		{"minutes and seconds", "1:23", 83 * time.Second, false},
		{"hours", "01:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"padded", " 0:30 ", 30 * time.Second, false},
		{"empty", "  ", 0, true},
		{"garbage", "soon", 0, true},
		{"negative", "-5", 0, true},
		{"too many parts", "1:2:3:4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleSeekRejectsBadPosition(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)
	registry.GetOrCreate("g1")

	resp := cmds.handleSeek(nil, testInteraction("g1", "seek", stringOption("position", "later")))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "❌ Seek Failed", resp.Embed.Title)

	resp = cmds.handleSeek(nil, testInteraction("g1", "seek", stringOption("position", "0:30")))
	assert.Equal(t, "Nothing is playing right now.", resp.Embed.Description)
}

func TestHandleVolumeShowsCurrent(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	resp := cmds.handleVolume(nil, testInteraction("g1", "volume"))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "🔊 Volume", resp.Embed.Title)
	assert.Contains(t, resp.Embed.Description, "30")
}

func TestHandleVolumeSetsLevel(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)

	resp := cmds.handleVolume(nil, testInteraction("g1", "volume", intOption("level", 55)))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, colorGreen, resp.Embed.Color)

	session, ok := registry.Get("g1")
	require.True(t, ok)
	assert.Equal(t, 55, session.Settings().Volume)
}

func TestHandleVolumeRejectsOutOfRange(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	resp := cmds.handleVolume(nil, testInteraction("g1", "volume", intOption("level", 150)))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "Volume must be between 0 and 100.", resp.Embed.Description)
}

func TestHandleLoopSetsMode(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)

	resp := cmds.handleLoop(nil, testInteraction("g1", "loop", stringOption("mode", "queue")))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, colorGreen, resp.Embed.Color)

	session, ok := registry.Get("g1")
	require.True(t, ok)
	assert.Equal(t, player.LoopQueue, session.Settings().LoopMode)
}

func TestHandleStay247Toggles(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)

	cmds.handleStay247(nil, testInteraction("g1", "stay247", boolOption("enabled", true)))
	session, ok := registry.Get("g1")
	require.True(t, ok)
	assert.True(t, session.Settings().Stay247)

	cmds.handleStay247(nil, testInteraction("g1", "stay247", boolOption("enabled", false)))
	assert.False(t, session.Settings().Stay247)
}

func TestHandleAnnounceStoresChannel(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)

	resp := cmds.handleAnnounce(nil, testInteraction("g1", "announce",
		boolOption("enabled", true),
		channelOption("channel", "chan-9"),
	))
	require.NotNil(t, resp.Embed)
	assert.Contains(t, resp.Embed.Description, "chan-9")

	session, ok := registry.Get("g1")
	require.True(t, ok)
	settings := session.Settings()
	assert.True(t, settings.AnnounceEnabled)
	assert.Equal(t, "chan-9", settings.AnnounceChannel)
}

func TestHandleRemoveOutOfRange(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)
	registry.GetOrCreate("g1")

	resp := cmds.handleRemove(nil, testInteraction("g1", "remove", intOption("index", 3)))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "That queue position does not exist.", resp.Embed.Description)
}

func TestHandleClearIdleQueue(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)
	registry.GetOrCreate("g1")

	resp := cmds.handleClear(nil, testInteraction("g1", "clear"))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "The queue is already empty.", resp.Embed.Description)
}

func TestHandleJoin(t *testing.T) {
	cmds, registry, voice := newTestCommands(t)
	s := stateWithVoice(t, "g1", "vc-1")

	resp := cmds.handleJoin(s, testInteraction("g1", "join"))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, colorGreen, resp.Embed.Color)
	assert.Contains(t, resp.Embed.Description, "vc-1")
	assert.Equal(t, []string{"g1:vc-1"}, voice.joins)

	_, ok := registry.Get("g1")
	assert.True(t, ok)
}

func TestHandleJoinRequiresVoiceChannel(t *testing.T) {
	cmds, _, voice := newTestCommands(t)
	s := stateWithVoice(t, "g1", "vc-1")

	i := testInteraction("g1", "join")
	i.Member.User.ID = "someone-else"

	resp := cmds.handleJoin(s, i)
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "❌ Not in Voice", resp.Embed.Title)
	assert.Empty(t, voice.joins)
}

func TestHandleLeave(t *testing.T) {
	cmds, registry, _ := newTestCommands(t)

	resp := cmds.handleLeave(nil, testInteraction("g1", "leave"))
	require.NotNil(t, resp.Embed)
	assert.Equal(t, "👋 Leave", resp.Embed.Title)

	registry.GetOrCreate("g1")
	resp = cmds.handleLeave(nil, testInteraction("g1", "leave"))
	assert.Equal(t, "👋 Left", resp.Embed.Title)

	_, ok := registry.Get("g1")
	assert.False(t, ok)
}
