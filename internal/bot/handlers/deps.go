// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic.
package handlers

import (
	"log/slog"

	"qnabot/internal/config"
	"qnabot/internal/router"
)

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Router *router.Router
}
