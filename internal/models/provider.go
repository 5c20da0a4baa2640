package models

// NotificationProvider holds the notification targets configured for a user.
type NotificationProvider struct {
	// ID is the unique identifier for the notification provider.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the user the provider belongs to.
	UserID string `json:"user_id" gorm:"column:user_id;unique;not null"`
	// TelegramProvider is the telegram target associated with the provider.
	TelegramProvider TelegramProvider `json:"telegram_provider" gorm:"foreignKey:NotificationProviderID;constraint:OnDelete:CASCADE"`
	// EmailProvider is the email target associated with the provider.
	EmailProvider EmailProvider `json:"email_provider" gorm:"foreignKey:NotificationProviderID;constraint:OnDelete:CASCADE"`
}

type TelegramProvider struct {
	// ID is the unique identifier for the telegram provider.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// NotificationProviderID is the foreign key to the NotificationProvider.
	NotificationProviderID int64 `json:"notification_provider_id" gorm:"column:notification_provider_id"`
	// Username is the username in the telegram.
	Username string `json:"username" gorm:"column:username;unique"`
	// ChatID is the chat ID in the telegram, filled once the user opens the bot.
	ChatID string `json:"chat_id" gorm:"column:chat_id"`
}

type EmailProvider struct {
	// ID is the unique identifier for the email provider.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// NotificationProviderID is the foreign key to the NotificationProvider.
	NotificationProviderID int64 `json:"notification_provider_id" gorm:"column:notification_provider_id"`
	// Email is the email address of the user.
	Email string `json:"email" gorm:"column:email"`
}

// NotificationService delivers user-visible notices (limit reached, withdrawal
// processed, terminal failures). Delivery is best effort and must never
// propagate an error back into the simulation core.
type NotificationService interface {
	Notify(userID, message string)
}
