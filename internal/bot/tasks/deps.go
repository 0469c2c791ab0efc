// Package tasks implements the bot's scheduled background tasks, most
// importantly the answer delivery loop.
package tasks

import (
	"context"
	"log/slog"

	"qnabot/internal/config"
	"qnabot/internal/database"
)

// ChatSender delivers an answer to the originating chat as a threaded reply.
// Sends are at-least-once from the delivery loop's perspective; a duplicate
// send is preferred over a lost answer.
type ChatSender interface {
	SendReply(ctx context.Context, chatID int64, text string, replyToMessageID int64) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Sender ChatSender
	Config *config.Config
}
