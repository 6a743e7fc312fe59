package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event
	AggregateID() uuid.UUID
	// AggregateType returns the type of aggregate that produced this event
	AggregateType() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateUUID uuid.UUID `json:"aggregate_id"`
	AggregateName string    `json:"aggregate_type"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, aggregateType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		AggregateUUID: aggregateID,
		AggregateName: aggregateType,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() uuid.UUID { return e.AggregateUUID }
func (e BaseEvent) AggregateType() string  { return e.AggregateName }

// EventPublisher delivers events after the unit of work that produced them committed
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(ctx context.Context, event Event)

// EventDispatcher manages in-process event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Dispatch delivers an event to all registered handlers
func (d *EventDispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Call type-specific handlers
	if handlers, ok := d.handlers[event.EventType()]; ok {
		for _, h := range handlers {
			h(ctx, event)
		}
	}

	// Call all-event handlers
	for _, h := range d.allHandlers {
		h(ctx, event)
	}
}

// Publish dispatches events synchronously. It never fails.
func (d *EventDispatcher) Publish(ctx context.Context, events ...Event) error {
	for _, event := range events {
		d.Dispatch(ctx, event)
	}
	return nil
}

var _ EventPublisher = (*EventDispatcher)(nil)

// -----------------------------------------------------------------------------
// Scoring Events
// -----------------------------------------------------------------------------

const (
	EventChallengeSolved = "challenge.solved"
	EventHintUnlocked    = "hint.unlocked"
	EventRankChanged     = "rank.changed"

	aggregateAccount = "Account"
)

// ScoreEvent is implemented by events that carry an account's new standing
type ScoreEvent interface {
	Event
	Standing() Standing
}

// ChallengeSolvedEvent is published when a user solves a challenge for the first time
type ChallengeSolvedEvent struct {
	BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Guild       string    `json:"guild,omitempty"`
	ChallengeID int64     `json:"challenge_id"`
	Points      int       `json:"points"`
	Score       int       `json:"score"`
	Rank        Rank      `json:"rank"`
	LedgerSeq   int64     `json:"ledger_seq,omitempty"`
}

// NewChallengeSolvedEvent creates a new challenge solved event
func NewChallengeSolvedEvent(account *Account, challengeID int64, points int) ChallengeSolvedEvent {
	return ChallengeSolvedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeSolved, aggregateAccount, account.ID),
		UserID:      account.ID,
		Username:    account.Username,
		Guild:       account.Guild,
		ChallengeID: challengeID,
		Points:      points,
		Score:       account.Score,
		Rank:        account.Rank,
	}
}

// Standing returns the account standing after the solve
func (e ChallengeSolvedEvent) Standing() Standing {
	return Standing{UserID: e.UserID, Username: e.Username, Guild: e.Guild, Score: e.Score, Rank: e.Rank, Seq: e.LedgerSeq}
}

// HintUnlockedEvent is published when a user pays for a hint
type HintUnlockedEvent struct {
	BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Guild       string    `json:"guild,omitempty"`
	ChallengeID int64     `json:"challenge_id"`
	Cost        int       `json:"cost"`
	Score       int       `json:"score"`
	Rank        Rank      `json:"rank"`
	LedgerSeq   int64     `json:"ledger_seq,omitempty"`
}

// NewHintUnlockedEvent creates a new hint unlocked event
func NewHintUnlockedEvent(account *Account, challengeID int64, cost int) HintUnlockedEvent {
	return HintUnlockedEvent{
		BaseEvent:   NewBaseEvent(EventHintUnlocked, aggregateAccount, account.ID),
		UserID:      account.ID,
		Username:    account.Username,
		Guild:       account.Guild,
		ChallengeID: challengeID,
		Cost:        cost,
		Score:       account.Score,
		Rank:        account.Rank,
	}
}

// Standing returns the account standing after the unlock
func (e HintUnlockedEvent) Standing() Standing {
	return Standing{UserID: e.UserID, Username: e.Username, Guild: e.Guild, Score: e.Score, Rank: e.Rank, Seq: e.LedgerSeq}
}

// RankChangedEvent is published when a score change moves an account to another tier
type RankChangedEvent struct {
	BaseEvent
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	From     Rank      `json:"from"`
	To       Rank      `json:"to"`
	Score    int       `json:"score"`
}

// NewRankChangedEvent creates a new rank changed event
func NewRankChangedEvent(account *Account, from Rank) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent: NewBaseEvent(EventRankChanged, aggregateAccount, account.ID),
		UserID:    account.ID,
		Username:  account.Username,
		From:      from,
		To:        account.Rank,
		Score:     account.Score,
	}
}

// Promoted reports whether the change was an upgrade
func (e RankChangedEvent) Promoted() bool {
	return e.From.Less(e.To)
}
