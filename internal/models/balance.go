package models

// UserBalanceRecord is the remote row for a user's balance, one per user.
// It is mutated only by the reconciliation write path, on session completion
// or withdrawal.
type UserBalanceRecord struct {
	// UserID is the unique identifier of the user (UUID from the auth collaborator).
	UserID string `json:"user_id" gorm:"column:user_id;primaryKey"`
	// Balance is the current balance in EUR. Never negative.
	Balance float64 `json:"balance" gorm:"column:balance;not null;default:0"`
	// Subscription is the paid tier of the user (freemium, starter, pro, ...).
	Subscription string `json:"subscription" gorm:"column:subscription;not null;default:freemium"`
	// DailySessionCount is the number of bot sessions started today.
	DailySessionCount int `json:"daily_session_count" gorm:"column:daily_session_count;not null;default:0"`
	// UpdatedAt is the Unix timestamp of the last write.
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at;index"`
}

// TableName specifies the table name for GORM
func (UserBalanceRecord) TableName() string {
	return "user_balances"
}

// Transaction is one append-only earning or withdrawal event.
// Rows are never updated after insert; summing today's positive gains from this
// log is the authoritative recomputation of daily gains, independent of any
// cached scalar.
type Transaction struct {
	// ID is the unique identifier for the transaction.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the owner of the transaction.
	UserID string `json:"user_id" gorm:"column:user_id;index;not null"`
	// Date is the Unix timestamp when the event happened.
	Date int64 `json:"date" gorm:"column:date;index"`
	// Gain is the signed amount in EUR: positive for earnings, negative for withdrawals.
	Gain float64 `json:"gain" gorm:"column:gain;not null"`
	// Report is a short human-readable description of the event.
	Report string `json:"report" gorm:"column:report"`
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}
