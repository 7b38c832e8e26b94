// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// Topic names a stream of events, e.g. "sale.claimed".
type Topic string

// Event is the envelope delivered to handlers.
type Event struct {
	ID      string
	Topic   Topic
	At      time.Time
	Payload any
}

// HandlerID identifies a registered handler for Unsubscribe.
type HandlerID uint64

type Handler func(Event)

// Bus is a concurrency-safe publish/subscribe bus. Handlers run
// synchronously on the publishing goroutine after the bus lock is released,
// so a handler may subscribe or unsubscribe.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[HandlerID]Handler
	all      map[HandlerID]Handler
	nextID   HandlerID
	now      func() time.Time
}

func New() *Bus {
	return &Bus{
		handlers: make(map[Topic]map[HandlerID]Handler),
		all:      make(map[HandlerID]Handler),
		now:      time.Now,
	}
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[HandlerID]Handler)
	}
	b.handlers[topic][id] = handler

	return id
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.all[b.nextID] = handler
	return b.nextID
}

// Unsubscribe removes id from topic, or from the catch-all set when topic
// is empty.
func (b *Bus) Unsubscribe(topic Topic, id HandlerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topic == "" {
		delete(b.all, id)
		return
	}

	if listeners, ok := b.handlers[topic]; ok {
		delete(listeners, id)
		if len(listeners) == 0 {
			delete(b.handlers, topic)
		}
	}
}

// Publish wraps payload in an Event and delivers it to topic handlers and
// catch-all handlers. A nil bus drops the event.
func (b *Bus) Publish(topic Topic, payload any) Event {
	ev := Event{ID: xid.New().String(), Topic: topic, Payload: payload}
	if b == nil {
		ev.At = time.Now()
		return ev
	}

	b.mu.RLock()
	ev.At = b.now()
	snapshot := make([]Handler, 0, len(b.handlers[topic])+len(b.all))
	for _, h := range b.handlers[topic] {
		snapshot = append(snapshot, h)
	}
	for _, h := range b.all {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(ev)
	}
	return ev
}

// Topics returns the topics with at least one subscriber.
func (b *Bus) Topics() []Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]Topic, 0, len(b.handlers))
	for t := range b.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
