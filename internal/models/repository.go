package models

import "time"

type Repository interface {
	// GetUserBalance reads the remote row for a user, nil when absent.
	GetUserBalance(userID string) (*UserBalanceRecord, error)
	// EnsureUserBalance creates the row with a zero balance when missing.
	EnsureUserBalance(userID string, subscription Subscription) error
	// SaveUserBalanceIfHigher writes balance only when it exceeds the stored
	// value, guarding the max-merge rule on the SQL side. It reports whether
	// the write was applied.
	SaveUserBalanceIfHigher(userID string, balance float64) (bool, error)
	// ResetUserBalance zeroes the stored balance. The one legitimate downward
	// write, used on withdrawal so reconciliation cannot resurrect paid-out
	// funds.
	ResetUserBalance(userID string) error
	// SetSubscription updates the stored tier for a user.
	SetSubscription(userID string, subscription Subscription) error
	// IncrementSessionCount bumps daily_session_count when it is still below
	// quota, in one conditional write so concurrent sessions cannot both slip
	// under the cap. It returns the count after the call and whether the
	// increment was applied.
	IncrementSessionCount(userID string, quota int) (int, bool, error)
	// ResetDailySessionCounts zeroes daily_session_count for every user.
	ResetDailySessionCounts() error

	// AppendTransaction inserts one append-only earning/withdrawal row.
	AppendTransaction(tx *Transaction) error
	// TransactionsBetween returns a user's transactions in [from, to).
	TransactionsBetween(userID string, from, to time.Time) ([]*Transaction, error)
	// SumGainsBetween sums the positive gains of a user in [from, to).
	SumGainsBetween(userID string, from, to time.Time) (float64, error)

	// GetNotificationProvider returns the notification targets of a user.
	GetNotificationProvider(userID string) (*NotificationProvider, error)
	// AddTelegramProviderChatID binds a telegram chat to a username.
	AddTelegramProviderChatID(username, chatID string) error

	Close() error
}

// KeyValueStore is the thin wrapper over browser-storage-like persistence.
// The file-backed implementation survives restarts (durable); the in-memory
// one survives only the process (volatile). Writes are best effort: failures
// are logged by the implementation and never returned to display paths.
type KeyValueStore interface {
	// Get returns the raw value for a key and whether it was present.
	Get(key string) (string, bool)
	// GetFloat parses the value as a float, returning 0 on absence or garbage.
	GetFloat(key string) float64
	// Set stores a value.
	Set(key, value string)
	// SetFloat stores a float value.
	SetFloat(key string, value float64)
	// Delete removes a key.
	Delete(key string)
	// Keys returns every stored key, in no particular order.
	Keys() []string
}
