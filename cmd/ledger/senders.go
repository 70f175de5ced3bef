package main

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"
)

// logSender writes notifications to the log when no bot is configured
type logSender struct {
	log *slog.Logger
}

func (s logSender) SendNotification(_ context.Context, chatID int64, text string, _ *models.InlineKeyboardMarkup) error {
	s.log.Info("notification", "chat_id", chatID, "text", text)
	return nil
}
