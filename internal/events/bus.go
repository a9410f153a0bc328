// Package events carries change notifications about chats between the store,
// the server and any open history list.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSubscriptionID = errors.New("subscription ID must not be empty")
	ErrNilHandler            = errors.New("handler must not be nil")
	ErrSubscriptionExists    = errors.New("subscription already exists")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
)

// Type identifies what happened to the chats of a user.
type Type string

const (
	// TypeChatsInvalidated asks every open list of the user to reload.
	TypeChatsInvalidated Type = "chats.invalidated"
	TypeChatCreated      Type = "chat.created"
	TypeChatDeleted      Type = "chat.deleted"
	TypeChatRenamed      Type = "chat.renamed"
)

// Event is a notification about one user's chats.
type Event struct {
	Type      Type
	UserID    string
	ChatIDs   []string
	Timestamp time.Time
}

// NewEvent creates an event stamped with the current time
func NewEvent(typ Type, userID string, chatIDs ...string) *Event {
	return &Event{
		Type:      typ,
		UserID:    userID,
		ChatIDs:   chatIDs,
		Timestamp: time.Now().UTC(),
	}
}

// Handler is invoked for every event matching a subscription.
type Handler func(event *Event)

// Filter selects events (zero value = everything).
type Filter struct {
	Types  []Type
	UserID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *Event) bool {
	if event == nil {
		return false
	}

	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.UserID != "" && event.UserID != f.UserID {
		return false
	}

	return true
}

// Bus defines event publishing and subscription.
type Bus interface {
	Publish(ctx context.Context, event *Event)
	Subscribe(id string, filter Filter, handler Handler) error
	Unsubscribe(id string) error
}

type subscription struct {
	filter  Filter
	handler Handler
}

// InMemoryBus implements Bus with in-process pub/sub.
type InMemoryBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewInMemoryBus creates an empty bus
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subscriptions: make(map[string]*subscription)}
}

// Publish delivers event synchronously to every matching subscriber.
// Handlers run outside the lock, so they may subscribe or unsubscribe.
func (b *InMemoryBus) Publish(_ context.Context, event *Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	var handlers []Handler
	for _, sub := range b.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers handler under id.
func (b *InMemoryBus) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	b.subscriptions[id] = &subscription{filter: filter, handler: handler}
	return nil
}

// SubscribeFunc registers handler under a generated ID and returns it.
func (b *InMemoryBus) SubscribeFunc(filter Filter, handler Handler) (string, error) {
	id := uuid.NewString()
	if err := b.Subscribe(id, filter, handler); err != nil {
		return "", err
	}
	return id, nil
}

// Unsubscribe removes a subscription by ID.
func (b *InMemoryBus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(b.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (b *InMemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Invalidate publishes TypeChatsInvalidated for userID.
func Invalidate(ctx context.Context, bus Bus, userID string) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, NewEvent(TypeChatsInvalidated, userID))
}
