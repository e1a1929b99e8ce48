package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultOutboxMaxAttempts = 5
	DefaultOutboxBackoff     = time.Second
)

// ErrOutboxTransition is returned for a status change the entry does not allow
var ErrOutboxTransition = errors.New("invalid outbox status transition")

// OutboxEntry is a domain event written in the same transaction as the
// state change that raised it, waiting to be relayed to subscribers.
type OutboxEntry struct {
	ID            uuid.UUID
	OrgID         uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextAttemptAt *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		OrgID:         event.OrgID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxAttempts:   DefaultOutboxMaxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkProcessing claims a pending or failed entry
func (e *OutboxEntry) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return ErrOutboxTransition
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkSent records a successful relay
func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.Status = OutboxStatusSent
	e.SentAt = &now
	e.NextAttemptAt = nil
	e.UpdatedAt = now
}

// MarkFailed records a failed relay. The entry is retried with exponential
// backoff until MaxAttempts is reached, after which it is dead.
func (e *OutboxEntry) MarkFailed(reason string) {
	now := time.Now()
	e.Attempts++
	e.LastError = reason
	e.UpdatedAt = now

	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxStatusDead
		e.NextAttemptAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(DefaultOutboxBackoff << uint(e.Attempts-1))
	e.NextAttemptAt = &next
}

// IsDead returns true once the entry has exhausted its attempts
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// ResetForRetry puts a dead entry back in the queue with a fresh attempt budget
func (e *OutboxEntry) ResetForRetry() error {
	if e.Status != OutboxStatusDead {
		return ErrOutboxTransition
	}
	e.Status = OutboxStatusPending
	e.Attempts = 0
	e.NextAttemptAt = nil
	e.UpdatedAt = time.Now()
	return nil
}

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindDue returns pending entries and failed entries whose next attempt is due
	FindDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	// Claim marks the given entries PROCESSING and returns those it claimed
	Claim(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// FindDead lists entries that exhausted their attempts, oldest first
	FindDead(ctx context.Context, filter Filter) ([]*OutboxEntry, int64, error)
	// DeleteSentBefore removes delivered entries older than the cutoff
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
