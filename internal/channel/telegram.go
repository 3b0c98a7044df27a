package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"leasebot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxSendRetries = 3

// Telegram implements domain.Channel for a Telegram bot. It is the
// operator-facing side door: the same pipeline, a different transport.
type Telegram struct {
	token  string
	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramChannelConfig struct {
	Token  string
	Logger *slog.Logger
}

func NewTelegram(cfg TelegramChannelConfig) *Telegram {
	return &Telegram{
		token:  cfg.Token,
		logger: cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until the context is
// cancelled.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		chatID, err := strconv.ParseInt(msg.To, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat id for telegram outbound", "to", msg.To, "err", err)
			return
		}
		for _, segment := range msg.Segments {
			t.sendChunk(chatID, segment)
		}
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: the bot stops when Start's context is cancelled.
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) Send(ctx context.Context, to string, segments []string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id: %w", err)
	}
	for _, segment := range segments {
		t.sendChunk(chatID, segment)
	}
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	if update.Message.IsCommand() {
		t.handleCommand(chatID, update.Message)
		return
	}

	t.logger.Info("telegram message received",
		"chat_id", chatID, "text_len", len(text))

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	t.bus.Publish(domain.InboundMessage{
		Channel:    "telegram",
		SenderID:   strconv.FormatInt(chatID, 10),
		Body:       text,
		ReceivedAt: time.Unix(int64(update.Message.Date), 0),
	})
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		t.sendChunk(chatID, "👋 Hi! I can answer questions about your rental agreement and take maintenance requests.\n\nJust describe the problem, ask a question, or text 'status #MAINT-...' to check on a ticket.")
	default:
		t.sendChunk(chatID, "Unknown command. Send /help for what I can do.")
	}
}

// sendChunk sends one segment with retry and rate-limit handling.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", telegramMaxSendRetries+1)
	}
}
