package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/internal/commands"
	"github.com/aventh/cadenza/internal/config"
	"github.com/aventh/cadenza/internal/handlers"
	"github.com/aventh/cadenza/internal/logging"
	"github.com/aventh/cadenza/internal/presence"
	"github.com/aventh/cadenza/pkg/database"
	"github.com/aventh/cadenza/pkg/lavalink"
	"github.com/aventh/cadenza/pkg/lyrics"
	"github.com/aventh/cadenza/pkg/player"
)

const nodeConnectTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Dir:        cfg.LogDir,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the settings database and start the daily maintenance job
	dbConfig := database.DefaultConfig()
	dbConfig.DatabasePath = cfg.DBPath
	db, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid database configuration")
	}
	if err := db.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	settings, err := db.Settings()
	if err != nil {
		logger.Fatal().Err(err).Msg("settings repository unavailable")
	}
	maintenance := database.NewMaintenance(db, settings, logger)
	defer maintenance.Stop()

	// Create the Discord session and open the gateway. State.User is only
	// known after the session is open and the node handshake needs it.
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if err := dg.Open(); err != nil {
		logger.Fatal().Err(err).Msg("failed to open Discord session")
	}
	defer dg.Close()

	// Bring the audio nodes up. A failed connect is not fatal; sessions
	// report the missing node and the first reconnect picks it back up.
	nodes, err := lavalink.NewManager(cfg.Nodes(), lavalink.ManagerOptions{
		UserID:      dg.State.User.ID,
		ClientName:  "cadenza/1.0",
		RetryBudget: cfg.NodeRetryBudget,
		BackoffBase: cfg.NodeBackoff(),
		BackoffMax:  cfg.NodeBackoffMax(),
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid audio node configuration")
	}
	defer nodes.Close()

	connectCtx, cancel := context.WithTimeout(ctx, nodeConnectTimeout)
	if err := nodes.Connect(connectCtx); err != nil {
		logger.Error().Err(err).Msg("no audio node reachable at startup")
	}
	cancel()

	// Playback engine
	voice := handlers.NewVoice(dg, nodes, logger)
	notifier := handlers.NewNotifier(dg, logger)
	registry := player.NewRegistry(player.RegistryOptions{
		Nodes:    nodeProvider(nodes),
		Store:    settings,
		Voice:    voice,
		Notifier: notifier,
		Defaults: player.Settings{
			Volume:          cfg.DefaultVolume,
			AnnounceEnabled: cfg.AnnounceNowPlaying,
		},
		IdleTimeout: cfg.IdleTimeout(),
		Logger:      logger,
	})
	defer registry.Close()
	voice.SetRegistry(registry)

	presenceManager := presence.NewManager(dg, registry.ActiveCount, logger)
	defer presenceManager.Stop()

	go pumpEvents(ctx, nodes, registry, presenceManager)

	// Command layer
	cmds := commands.New(commands.Options{
		Registry: registry,
		Nodes:    nodes,
		Voice:    voice,
		Lyrics:   lyrics.NewClient(logger),
		Logger:   logger,
	})
	router := handlers.NewRouter(cmds, notifier, logger)

	dg.AddHandler(router.HandleInteraction)
	dg.AddHandler(voice.HandleVoiceState)
	dg.AddHandler(voice.HandleVoiceServer)

	if err := commands.Register(dg, cfg.GuildID); err != nil {
		logger.Fatal().Err(err).Msg("failed to register slash commands")
	}

	presenceManager.UpdateDefault()
	presenceManager.Start()

	logger.Info().
		Str("user", dg.State.User.Username).
		Int("nodes", len(cfg.Nodes())).
		Msg("bot is running, press CTRL-C to exit")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

// nodeProvider adapts the node manager to the player's provider interface.
func nodeProvider(nodes *lavalink.Manager) player.NodeProviderFunc {
	return func() (player.AudioNode, error) {
		node, err := nodes.Active()
		if err != nil {
			return nil, err
		}
		return node, nil
	}
}

// pumpEvents feeds node events into the session registry, updating the
// status line whenever a track starts anywhere.
func pumpEvents(ctx context.Context, nodes *lavalink.Manager, registry *player.Registry, pm *presence.Manager) {
	events := make(chan lavalink.Event, 64)
	go registry.Run(ctx, events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-nodes.Events():
			if !ok {
				return
			}
			if started, isStart := ev.(lavalink.TrackStartEvent); isStart {
				pm.UpdateTrack(started.Track.Display())
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
