package models

// Topic is the name of a broadcast event. The names are the boundary contract
// between the simulation core and any presentation layer; they are the only
// inputs the core accepts from the outside and the only outputs it emits.
type Topic string

const (
	TopicBalanceUpdate      Topic = "balance:update"
	TopicBalanceForceUpdate Topic = "balance:force-update"
	TopicBalanceForceSync   Topic = "balance:force-sync"
	TopicLimitReached       Topic = "daily-limit:reached"
	TopicLimitApproaching   Topic = "daily-limit:approaching"
	TopicBotStatusChange    Topic = "bot:status-change"
	TopicBotExternalStatus  Topic = "bot:external-status-change"
	TopicBotForceStatus     Topic = "bot:force-status"
	TopicDailyGainsUpdated  Topic = "dailyGains:updated"
	TopicDailyGainsReset    Topic = "dailyGains:reset"
)

// Event is the detail payload carried by a broadcast. Only primitive fields,
// mirroring the CustomEvent detail of the original contract; unused fields are
// left at their zero value.
type Event struct {
	// UserID is the user the event concerns, empty for global events.
	UserID string `json:"user_id,omitempty"`
	// Amount is a monetary figure (new balance, gain, withdrawal amount).
	Amount float64 `json:"amount,omitempty"`
	// DailyGains is the gains figure at emission time.
	DailyGains float64 `json:"daily_gains,omitempty"`
	// Percentage is the limit percentage at emission time.
	Percentage float64 `json:"percentage,omitempty"`
	// Reached reports a crossed daily limit.
	Reached bool `json:"reached,omitempty"`
	// Status is a bot status value for bot:* topics.
	Status string `json:"status,omitempty"`
	// Reason qualifies a status change (manual, limit).
	Reason string `json:"reason,omitempty"`
	// Timestamp is the Unix timestamp of emission.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// EventBus is the process-wide broadcast seam. Delivery is fire-and-forget
// with no ordering or delivery guarantee; publishers must never block.
type EventBus interface {
	// Publish broadcasts an event to every current subscriber of the topic.
	Publish(topic Topic, event Event)
	// Subscribe registers a callback for a topic and returns an unsubscribe
	// function. Callbacks must not block.
	Subscribe(topic Topic, fn func(Event)) (unsubscribe func())
}
