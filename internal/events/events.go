// Package events publishes domain events after successful ledger writes.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mmynk/groupsplit/internal/models"
)

// Type names an event. It doubles as the AMQP routing key.
type Type string

const (
	ExpenseRecorded Type = "expense.recorded"
	ExpenseDeleted  Type = "expense.deleted"
	GroupDeleted    Type = "group.deleted"
)

// Event is the JSON body of every published message.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id"`
	GroupID    string    `json:"group_id"`
	ExpenseID  string    `json:"expense_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	PaidBy     string    `json:"paid_by,omitempty"`
	SplitAmong []string  `json:"split_among,omitempty"`
}

// ToJSON converts the event to JSON bytes.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewExpenseEvent describes an expense that was recorded or deleted.
func NewExpenseEvent(t Type, actorID string, e *models.Expense) *Event {
	split := make([]string, len(e.SplitAmong))
	for i, u := range e.SplitAmong {
		split[i] = u.Username
	}
	return &Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		GroupID:    e.GroupID,
		ExpenseID:  e.ID,
		Amount:     e.Amount.StringFixed(2),
		PaidBy:     e.PaidBy.Username,
		SplitAmong: split,
	}
}

// NewGroupDeleted describes a deleted group.
func NewGroupDeleted(actorID, groupID string) *Event {
	return &Event{
		Type:       GroupDeleted,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		GroupID:    groupID,
	}
}

// Publisher delivers events somewhere. Callers log failures; a failed
// publish never undoes the write it describes.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }
func (NopPublisher) Close() error                          { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *Recorder) Publish(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}
