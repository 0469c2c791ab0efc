package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"qnabot/internal/router"
)

// questionHandler routes every plain text message through the intake router.
type questionHandler struct {
	deps HandlerDeps
}

// NewQuestionHandler creates the default handler that feeds inbound messages
// to the intake router and replies immediately on a confident FAQ hit.
func NewQuestionHandler(deps HandlerDeps) bot.HandlerFunc {
	return questionHandler{deps}.Handle
}

func (h questionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "question")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		log.DebugContext(ctx, "Ignoring update with nil message, empty text, or nil sender", "update_id", update.ID)
		return
	}
	// Commands are handled by their registered handlers.
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	inbound := router.InboundMessage{
		Text:       msg.Text,
		ChatID:     msg.Chat.ID,
		MessageID:  int64(msg.ID),
		SenderName: senderName(msg.From),
	}

	// Bound the routing call so a slow matcher dependency cannot stall intake.
	routeCtx, cancel := context.WithTimeout(ctx, deps.Config.Bot.RouteTimeout)
	decision, err := deps.Router.Route(routeCtx, inbound)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to route inbound message",
			"chat_id", inbound.ChatID, "message_id", inbound.MessageID, "error", err)
		return
	}

	if decision.Kind != router.DecisionAnswered {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, deps.Config.Bot.SendTimeout)
	defer cancel()

	_, err = b.SendMessage(sendCtx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   decision.Answer,
		ReplyParameters: &models.ReplyParameters{
			MessageID: msg.ID,
			ChatID:    msg.Chat.ID,
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send FAQ answer", "error", err, "chat_id", msg.Chat.ID)
		return
	}

	log.DebugContext(ctx, "Sent FAQ answer", "chat_id", msg.Chat.ID, "message_id", msg.ID)
}

// senderName builds a best-effort display name; may be empty.
func senderName(from *models.User) string {
	name := from.FirstName
	if from.LastName != "" {
		if name != "" {
			name += " "
		}
		name += from.LastName
	}
	return strings.TrimSpace(name)
}
