package events

import (
	"runtime/debug"
	"sync"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

// Bus is the in-process broadcast seam between the simulation core and any
// presentation layer. Publish never blocks and never fails: a panicking
// subscriber is logged and the remaining subscribers still run. No ordering
// or delivery guarantee is offered, matching the DOM CustomEvent contract it
// replaces.
type Bus struct {
	logger *logger.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[models.Topic]map[int]func(models.Event)
}

var _ models.EventBus = (*Bus)(nil)

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		logger: log,
		subs:   make(map[models.Topic]map[int]func(models.Event)),
	}
}

// Subscribe registers a callback for a topic and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(topic models.Topic, fn func(models.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(models.Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish broadcasts an event to every current subscriber of the topic.
func (b *Bus) Publish(topic models.Topic, event models.Event) {
	b.mu.RLock()
	callbacks := make([]func(models.Event), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		callbacks = append(callbacks, fn)
	}
	b.mu.RUnlock()

	for _, fn := range callbacks {
		b.safeCall(fn, topic, event)
	}
}

func (b *Bus) safeCall(fn func(models.Event), topic models.Topic, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked ",
				"topic ", topic,
				"panic ", r,
				"stack ", string(debug.Stack()))
		}
	}()
	fn(event)
}
