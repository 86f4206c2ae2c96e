package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (c *Commands) handlePause(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("⏸️ Nothing Playing", "There is nothing to pause.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Pause(ctx); err != nil {
		return errorResponse("❌ Pause Failed", errorMessage(err))
	}
	return successResponse("⏸️ Paused", "Playback paused. Use `/resume` to pick it back up.")
}

func (c *Commands) handleResume(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("▶️ Nothing Paused", "There is nothing to resume.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Resume(ctx); err != nil {
		return errorResponse("❌ Resume Failed", errorMessage(err))
	}
	return successResponse("▶️ Resumed", "Playback resumed.")
}

func (c *Commands) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("⏭️ Nothing Playing", "There is nothing to skip.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	result, err := session.Skip(ctx)
	if err != nil {
		return errorResponse("❌ Skip Failed", errorMessage(err))
	}
	if result.Next != nil {
		return successResponse("⏭️ Skipped",
			fmt.Sprintf("Skipped %s. Now playing %s.", trackLink(result.Skipped), trackLink(*result.Next)))
	}
	return successResponse("⏭️ Skipped",
		fmt.Sprintf("Skipped %s. The queue is empty.", trackLink(result.Skipped)))
}

func (c *Commands) handleSeek(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("⏩ Nothing Playing", "There is nothing to seek in.")
	}

	position, err := parseTimestamp(optionString(i, "position"))
	if err != nil {
		return errorResponse("❌ Seek Failed", "Use a position like `1:23`, `01:02:03` or `90`.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Seek(ctx, position); err != nil {
		return errorResponse("❌ Seek Failed", errorMessage(err))
	}
	return successResponse("⏩ Seeked", fmt.Sprintf("Jumped to **%s**.", formatDuration(position)))
}

// parseTimestamp reads "mm:ss", "hh:mm:ss" or plain seconds ("90", "90s").
func parseTimestamp(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty position")
	}
	if !strings.Contains(raw, ":") {
		secs, err := strconv.Atoi(strings.TrimSuffix(raw, "s"))
		if err != nil || secs < 0 {
			return 0, fmt.Errorf("invalid position %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid position %q", raw)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

func (c *Commands) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	session, ok := c.registry.Get(i.GuildID)
	if !ok {
		return neutralResponse("⏹️ Nothing Playing", "There is nothing to stop.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := session.Stop(ctx); err != nil {
		return errorResponse("❌ Stop Failed", errorMessage(err))
	}
	return successResponse("⏹️ Stopped", "Playback stopped and the queue was cleared.")
}
