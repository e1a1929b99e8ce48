package leasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
)

// Activity is one entry of a lease's activity log, built from a delivered
// domain event. EventID is unique so a redelivered event is stored once.
type Activity struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	LeaseID    uuid.UUID
	EventID    uuid.UUID
	EventType  string
	SubjectID  uuid.UUID
	Summary    string
	OccurredAt time.Time
	CreatedAt  time.Time
}

// NewActivity creates a log entry for event
func NewActivity(leaseID uuid.UUID, event shared.DomainEvent, summary string) *Activity {
	return &Activity{
		ID:         uuid.New(),
		OrgID:      event.OrgID(),
		LeaseID:    leaseID,
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		SubjectID:  event.AggregateID(),
		Summary:    summary,
		OccurredAt: event.OccurredAt(),
		CreatedAt:  time.Now(),
	}
}

// ActivityRepository stores the activity log
type ActivityRepository interface {
	// Append stores an entry; an entry for an already logged event is ignored
	Append(ctx context.Context, activity *Activity) error
	// ListByLease returns entries newest first
	ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) ([]*Activity, int64, error)
}
