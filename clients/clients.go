package clients

import (
	"go.uber.org/zap"

	"botwatch/clients/botapi"
	"botwatch/clients/botstream"
	"botwatch/clients/discord"
	"botwatch/clients/notifier"
	"botwatch/clients/telegram"
	"botwatch/config"
)

type Clients struct {
	Logger *zap.Logger

	Discord  *discord.DiscordClient
	Telegram *telegram.TelegramClient
	Notifier notifier.Notifier // Combined notifier for all channels
	BotAPI   *botapi.Client
	Stream   *botstream.Client
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Create combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	return &Clients{
		Logger:   logger,
		Discord:  discordClient,
		Telegram: telegramClient,
		Notifier: multiNotifier,
		BotAPI:   botapi.NewClient(logger, cfg),
		Stream:   botstream.NewClient(logger, cfg.Stream, cfg.Backend.BaseURL),
	}
}
