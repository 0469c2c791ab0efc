// Package telegram provides the thin adapter around the go-telegram/bot
// client: construction, handler registration, and outbound sends.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"qnabot/internal/bot/handlers"
)

// NewTelegramBot creates the Telegram bot client with the given options.
func NewTelegramBot(token string, log *slog.Logger, opts ...tgbot.Option) (*tgbot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	b, err := tgbot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot client created")
	return b, nil
}

// RegisterHandlers attaches all command handlers to the bot.
func RegisterHandlers(b *tgbot.Bot, log *slog.Logger, cmdHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("telegram bot is nil")
	}

	for name, h := range cmdHandlers {
		handler := h.Handler
		for i := len(h.Middleware) - 1; i >= 0; i-- {
			handler = h.Middleware[i](handler)
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, handler)
		log.Debug("Registered telegram handler", "name", name, "pattern", h.Pattern)
	}

	log.Info("Telegram handlers registered", "count", len(cmdHandlers))
	return nil
}

// Sender sends answers back to the originating chat as threaded replies.
// It implements the ChatSender interface consumed by the delivery task.
type Sender struct {
	bot *tgbot.Bot
}

// NewSender creates a Sender on top of an existing bot client.
func NewSender(b *tgbot.Bot) *Sender {
	return &Sender{bot: b}
}

// SendReply sends text to the chat as a reply to the original message.
func (s *Sender) SendReply(ctx context.Context, chatID int64, text string, replyToMessageID int64) error {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if replyToMessageID != 0 {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID: int(replyToMessageID),
			ChatID:    chatID,
		}
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send reply to chat %d: %w", chatID, err)
	}
	return nil
}
