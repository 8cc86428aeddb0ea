package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"botwatch/clients/notifier"
	"botwatch/config"
)

// DiscordClient sends connection alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// SendMessage sends a plain text message.
func (dc *DiscordClient) SendMessage(message string) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping message")
		return
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, message)
	if err != nil {
		dc.logger.Error("failed to send discord message", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord message")
}

// SendConnectionAlert sends a rich embedded connection alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendConnectionAlert(alert notifier.ConnectionAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildAlertEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord connection alert",
		zap.String("kind", string(alert.Kind)),
	)
}

func (dc *DiscordClient) buildAlertEmbed(alert notifier.ConnectionAlert) *discordgo.MessageEmbed {
	color := 0x2ECC71 // Green for connected
	switch alert.Kind {
	case notifier.AlertKindDisconnected, notifier.AlertKindBotOffline:
		color = 0xF39C12 // Orange for transient trouble
	case notifier.AlertKindGaveUp, notifier.AlertKindError:
		color = 0xE74C3C // Red
	}

	var fields []*discordgo.MessageEmbedField

	if alert.CloseCode != 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Close Code",
			Value:  fmt.Sprintf("%d", alert.CloseCode),
			Inline: true,
		})
	}
	if alert.RetryIn > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Reconnecting In",
			Value:  alert.RetryIn.String(),
			Inline: true,
		})
	}
	if alert.Attempt > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Attempt",
			Value:  fmt.Sprintf("%d", alert.Attempt),
			Inline: true,
		})
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &discordgo.MessageEmbed{
		Title:       buildAlertTitle(alert.Kind),
		Description: alert.Message,
		Color:       color,
		Fields:      fields,
		Timestamp:   ts.Format(time.RFC3339),
	}
}

func buildAlertTitle(kind notifier.AlertKind) string {
	switch kind {
	case notifier.AlertKindConnected:
		return "🟢 Bot Stream Connected"
	case notifier.AlertKindDisconnected:
		return "🟠 Bot Stream Disconnected"
	case notifier.AlertKindGaveUp:
		return "🔴 Bot Stream Closed"
	case notifier.AlertKindBotOffline:
		return "🟠 Bot Offline"
	case notifier.AlertKindError:
		return "🔴 Bot Error"
	}
	return "Bot Alert"
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session == nil {
		return nil
	}
	return dc.session.Close()
}
