package server

import (
	"fmt"
	"time"

	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/discord"
)

const defaultNotifyColor = 0x3498db

// Notifier sends API-triggered messages through the gateway
type Notifier struct {
	cfg       *config.Config
	transport discord.Transport
}

func NewNotifier(cfg *config.Config, transport discord.Transport) *Notifier {
	return &Notifier{cfg: cfg, transport: transport}
}

// SendNotification posts an embed to the given channel, falling back to
// the default notification channel.
func (n *Notifier) SendNotification(message, title string, color int, channelID string) error {
	if channelID == "" {
		channelID = n.cfg.DiscordChannelID
	}
	if channelID == "" {
		return fmt.Errorf("no notification channel configured")
	}
	if color == 0 {
		color = defaultNotifyColor
	}
	if title == "" {
		title = "🔔 Notification"
	}

	_, err := n.transport.Channel(channelID).SendEmbed(&discord.Embed{
		Title:       title,
		Description: message,
		Color:       color,
	}, nil)
	return err
}

// PostLounge forwards a lounge message to the coordination channel
func (n *Notifier) PostLounge(label, message string) error {
	if n.cfg.CoordinationChannel == "" {
		return fmt.Errorf("no coordination channel configured")
	}
	text := fmt.Sprintf("**[%s]** %s *(%s)*", label, message, time.Now().Format("15:04"))
	_, err := n.transport.Channel(n.cfg.CoordinationChannel).Send(text)
	return err
}
