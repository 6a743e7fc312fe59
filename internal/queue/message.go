package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// EventMessage is the wire form of a scoring event. It satisfies
// domain.ScoreEvent, so consumers can feed it to the same handlers as
// in-process events.
type EventMessage struct {
	ID           uuid.UUID   `json:"id"`
	Type         string      `json:"type"`
	UserID       uuid.UUID   `json:"user_id"`
	Username     string      `json:"username"`
	Guild        string      `json:"guild,omitempty"`
	ChallengeID  int64       `json:"challenge_id,omitempty"`
	Delta        int         `json:"delta"`
	Score        int         `json:"score"`
	Rank         domain.Rank `json:"rank"`
	PreviousRank domain.Rank `json:"previous_rank,omitempty"`
	LedgerSeq    int64       `json:"ledger_seq,omitempty"`
	Timestamp    time.Time   `json:"occurred_at"`
}

// NewEventMessage converts a scoring event for publishing
func NewEventMessage(event domain.Event) (*EventMessage, error) {
	m := &EventMessage{
		ID:        event.EventID(),
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
	}

	switch e := event.(type) {
	case domain.ChallengeSolvedEvent:
		m.UserID, m.Username = e.UserID, e.Username
		m.ChallengeID = e.ChallengeID
		m.Delta = e.Points
		m.Score, m.Rank = e.Score, e.Rank
		m.Guild, m.LedgerSeq = e.Guild, e.LedgerSeq
	case domain.HintUnlockedEvent:
		m.UserID, m.Username = e.UserID, e.Username
		m.ChallengeID = e.ChallengeID
		m.Delta = -e.Cost
		m.Score, m.Rank = e.Score, e.Rank
		m.Guild, m.LedgerSeq = e.Guild, e.LedgerSeq
	case domain.RankChangedEvent:
		m.UserID, m.Username = e.UserID, e.Username
		m.Score, m.Rank = e.Score, e.To
		m.PreviousRank = e.From
	default:
		return nil, fmt.Errorf("unsupported event type %q", event.EventType())
	}
	return m, nil
}

func (m *EventMessage) EventID() uuid.UUID     { return m.ID }
func (m *EventMessage) EventType() string      { return m.Type }
func (m *EventMessage) OccurredAt() time.Time  { return m.Timestamp }
func (m *EventMessage) AggregateID() uuid.UUID { return m.UserID }
func (m *EventMessage) AggregateType() string  { return "Account" }

// Standing returns the account standing carried by the message
func (m *EventMessage) Standing() domain.Standing {
	return domain.Standing{
		UserID:   m.UserID,
		Username: m.Username,
		Guild:    m.Guild,
		Score:    m.Score,
		Rank:     m.Rank,
		Seq:      m.LedgerSeq,
	}
}

var _ domain.ScoreEvent = (*EventMessage)(nil)
