package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/player"
)

// queuePageSize caps how many pending tracks a single /queue embed lists.
const queuePageSize = 10

func (c *Commands) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("📜 Queue", "The queue is empty and nothing is playing.")
	}

	now, playing := session.NowPlaying()
	tracks := session.Tracks()
	if !playing && len(tracks) == 0 {
		return neutralResponse("📜 Queue", "The queue is empty and nothing is playing.")
	}

	embed := &discordgo.MessageEmbed{
		Title:     "📜 Queue",
		Color:     colorBlue,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if playing {
		state := "▶️"
		if now.Status == player.StatusPaused {
			state = "⏸️"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%s Now Playing", state),
			Value: fmt.Sprintf("%s `[%s / %s]`",
				trackLink(now.Track), formatDuration(now.Position), trackDuration(now.Track)),
		})
	}

	if len(tracks) > 0 {
		var sb strings.Builder
		var total time.Duration
		for idx, track := range tracks {
			total += time.Duration(track.Info.Length) * time.Millisecond
			if idx < queuePageSize {
				fmt.Fprintf(&sb, "`%d.` %s `[%s]`\n", idx+1, trackLink(track), trackDuration(track))
			}
		}
		if len(tracks) > queuePageSize {
			fmt.Fprintf(&sb, "...and **%d** more", len(tracks)-queuePageSize)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Up Next (%d)", len(tracks)),
			Value: sb.String(),
		})
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Total queue time: %s", formatDuration(total)),
		}
	}

	settings := session.Settings()
	if settings.LoopMode != player.LoopOff {
		embed.Description = fmt.Sprintf("🔁 Loop: **%s**", settings.LoopMode)
	}

	return &Response{Embed: embed}
}

func (c *Commands) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("📜 Queue", "The queue is empty.")
	}

	index := optionInt(i, "index")

	ctx, cancel := commandContext()
	defer cancel()

	removed, err := session.Remove(ctx, index-1)
	if err != nil {
		return errorResponse("❌ Remove Failed", errorMessage(err))
	}
	return successResponse("🗑️ Removed",
		fmt.Sprintf("Removed %s from position %d.", trackLink(removed), index))
}

func (c *Commands) handleMove(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("📜 Queue", "The queue is empty.")
	}

	from := optionInt(i, "from")
	to := optionInt(i, "to")

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Move(ctx, from-1, to-1); err != nil {
		return errorResponse("❌ Move Failed", errorMessage(err))
	}
	return successResponse("↕️ Moved",
		fmt.Sprintf("Moved the track at position %d to position %d.", from, to))
}

func (c *Commands) handleShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("📜 Queue", "The queue is empty.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Shuffle(ctx); err != nil {
		return errorResponse("❌ Shuffle Failed", errorMessage(err))
	}
	return successResponse("🔀 Shuffled",
		fmt.Sprintf("Shuffled **%d** tracks.", session.QueueLength()))
}

func (c *Commands) handleClear(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("📜 Queue", "The queue is already empty.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	dropped, err := session.Clear(ctx)
	if err != nil {
		return errorResponse("❌ Clear Failed", errorMessage(err))
	}
	if dropped == 0 {
		return neutralResponse("📜 Queue", "The queue is already empty.")
	}
	return successResponse("🧹 Cleared",
		fmt.Sprintf("Dropped **%d** pending tracks. The current track keeps playing.", dropped))
}
