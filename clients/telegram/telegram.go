package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"botwatch/clients/notifier"
	"botwatch/config"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// TelegramClient sends connection alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
			isProd: cfg.IsProd,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendConnectionAlert sends a connection alert notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendConnectionAlert(alert notifier.ConnectionAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := buildAlertMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram connection alert",
		zap.String("kind", string(alert.Kind)),
	)
}

func buildAlertMessage(alert notifier.ConnectionAlert) string {
	var sb strings.Builder

	switch alert.Kind {
	case notifier.AlertKindConnected:
		sb.WriteString("🟢 *Bot stream connected*")
	case notifier.AlertKindDisconnected:
		sb.WriteString("🟠 *Bot stream disconnected*")
	case notifier.AlertKindGaveUp:
		sb.WriteString("🔴 *Bot stream closed*")
	case notifier.AlertKindBotOffline:
		sb.WriteString("🟠 *Bot offline*")
	case notifier.AlertKindError:
		sb.WriteString("🔴 *Bot error*")
	default:
		sb.WriteString("*Bot alert*")
	}

	if alert.Message != "" {
		sb.WriteString("\n")
		sb.WriteString(escapeMarkdown(alert.Message))
	}
	if alert.CloseCode != 0 {
		fmt.Fprintf(&sb, "\nclose code: %d", alert.CloseCode)
	}
	if alert.RetryIn > 0 {
		fmt.Fprintf(&sb, "\nreconnecting in %s (attempt %d)", alert.RetryIn, alert.Attempt)
	}

	return sb.String()
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf(telegramAPIURL, tc.botToken, "sendMessage")

	payload := map[string]any{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}
	return nil
}

// escapeMarkdown escapes characters Telegram's Markdown parser trips on.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(s)
}

// Close implements notifier.Notifier. Nothing to clean up.
func (tc *TelegramClient) Close() error {
	return nil
}
