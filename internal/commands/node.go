package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aventh/cadenza/pkg/lavalink"
)

func (c *Commands) handleNode(s *discordgo.Session, i *discordgo.InteractionCreate) *Response {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return c.nodeStatus()
	}

	sub := options[0]
	switch sub.Name {
	case "status":
		return c.nodeStatus()
	case "switch":
		var id string
		for _, opt := range sub.Options {
			if opt.Name == "id" {
				id = opt.StringValue()
			}
		}
		return c.nodeSwitch(id)
	default:
		return c.nodeStatus()
	}
}

func (c *Commands) nodeStatus() *Response {
	nodes := c.nodes.Nodes()

	var activeID string
	if active, err := c.nodes.Active(); err == nil {
		activeID = active.ID()
	}

	var sb strings.Builder
	for _, node := range nodes {
		marker := "▫️"
		if node.ID() == activeID {
			marker = "🔊"
		}
		line := fmt.Sprintf("%s `%s` %s %s", marker, node.ID(), statusEmoji(node.Status()), node.Status())
		if err := node.LastError(); err != nil && node.Status() != lavalink.StatusConnected {
			line += fmt.Sprintf(" (%v)", err)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🖥️ Audio Nodes",
		Description: sb.String(),
		Color:       colorBlue,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Node generation: %d", c.nodes.ActiveVersion()),
		},
	}
	return &Response{Embed: embed}
}

func (c *Commands) nodeSwitch(id string) *Response {
	if id == "" {
		return errorResponse("❌ Usage Error", "Provide the identifier of the node to switch to.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := c.nodes.SwitchTo(ctx, id); err != nil {
		return errorResponse("❌ Switch Failed", errorMessage(err))
	}
	return successResponse("🖥️ Node Switched",
		fmt.Sprintf("Now using node `%s`. Active sessions will resume there.", id))
}

func statusEmoji(status lavalink.Status) string {
	switch status {
	case lavalink.StatusConnected:
		return "🟢"
	case lavalink.StatusConnecting:
		return "🟡"
	case lavalink.StatusFailed:
		return "🔴"
	default:
		return "⚪"
	}
}
