package notificator

import (
	"runtime/debug"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

// Notificator fans a user notice out to every provider the user configured.
// Delivery is best effort; a failing provider is logged and never reaches the
// simulation core.
type Notificator struct {
	logger *logger.Logger
	db     models.Repository

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, db models.Repository, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, db: db, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Notify implements models.NotificationService.
func (n *Notificator) Notify(userID, message string) {
	notificationProvider, err := n.db.GetNotificationProvider(userID)
	if err != nil {
		n.logger.Debug("No notification provider: ", err)
		return
	}
	if notificationProvider == nil {
		return
	}

	if n.TelegramNotificator != nil && notificationProvider.TelegramProvider.ChatID != "" {
		chatID := notificationProvider.TelegramProvider.ChatID
		n.safeCall(func() { n.TelegramNotificator.SendNotification(chatID, message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil && notificationProvider.EmailProvider.Email != "" {
		email := notificationProvider.EmailProvider.Email
		n.safeCall(func() { n.EmailNotificator.SendNotification(email, message) }, "emailNotification")
	}
}
