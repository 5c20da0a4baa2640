package events

import (
	"testing"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(logger.NewNop())

	var got []models.Event
	bus.Subscribe(models.TopicBalanceUpdate, func(e models.Event) { got = append(got, e) })

	bus.Publish(models.TopicBalanceUpdate, models.Event{Amount: 1.5})
	bus.Publish(models.TopicDailyGainsReset, models.Event{})

	if len(got) != 1 || got[0].Amount != 1.5 {
		t.Errorf("subscriber saw %v, want one event with amount 1.5", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(logger.NewNop())

	calls := 0
	unsub := bus.Subscribe(models.TopicBotStatusChange, func(models.Event) { calls++ })

	bus.Publish(models.TopicBotStatusChange, models.Event{})
	unsub()
	unsub() // twice is a no-op
	bus.Publish(models.TopicBotStatusChange, models.Event{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus(logger.NewNop())

	bus.Subscribe(models.TopicLimitReached, func(models.Event) { panic("boom") })
	survived := false
	bus.Subscribe(models.TopicLimitReached, func(models.Event) { survived = true })

	bus.Publish(models.TopicLimitReached, models.Event{Reached: true})

	if !survived {
		t.Error("second subscriber never ran after the first panicked")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(logger.NewNop())
	// Must not panic or block.
	bus.Publish(models.TopicBalanceForceSync, models.Event{Amount: 3})
}
