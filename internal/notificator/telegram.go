package notificator

import (
	"context"

	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	db models.Repository
}

func NewTelegramNotificator(logger *logger.Logger, token string, db models.Repository) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		db:     db,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	go b.Start(context.Background())
	provider.bot = b

	return provider, nil
}

func (t *TelegramNotificator) SendNotification(chatId, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatId,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send notification: ", err)
	}
}

// handler binds the chat ID to the stored telegram username when the user
// opens the bot with /start.
func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil {
		return
	}
	user := update.Message.From
	if user == nil {
		t.logger.Error("User is nil")
		return
	}
	t.logger.Debug("Telegram update: ", user.Username, " ", update.Message.Text)
	if update.Message.Text == "/start" {
		if err := t.db.AddTelegramProviderChatID(user.Username, fmt.Sprint(update.Message.Chat.ID)); err != nil {
			t.logger.Error("Failed to add telegram provider chat ID: ", err)
			return
		}
		t.logger.Info("Telegram provider chat ID added successfully")
		t.SendNotification(fmt.Sprint(update.Message.Chat.ID), "You have successfully subscribed to notifications.")
	}
}
