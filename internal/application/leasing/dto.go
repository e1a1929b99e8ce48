package leasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
)

// CreateLeaseInput creates a lease for a property
type CreateLeaseInput struct {
	PropertyID uuid.UUID   `json:"property_id" binding:"required"`
	Name       string      `json:"name" binding:"required,max=200"`
	StartDate  time.Time   `json:"start_date" binding:"required"`
	TenantIDs  []uuid.UUID `json:"tenant_ids" binding:"required,min=1,dive,required"`
}

// LeaseResponse is a lease with its tenants
type LeaseResponse struct {
	ID         uuid.UUID   `json:"id"`
	PropertyID uuid.UUID   `json:"property_id"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    *time.Time  `json:"end_date,omitempty"`
	TenantIDs  []uuid.UUID `json:"tenant_ids"`
	HasPolicy  bool        `json:"has_policy_override"`
	Version    int         `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ToLeaseResponse converts a domain lease
func ToLeaseResponse(l *leasing.Lease) LeaseResponse {
	return LeaseResponse{
		ID:         l.ID,
		PropertyID: l.PropertyID,
		Name:       l.Name,
		Status:     l.Status.String(),
		StartDate:  l.StartDate,
		EndDate:    l.EndDate,
		TenantIDs:  l.TenantIDs,
		HasPolicy:  !l.PolicyOverride.IsEmpty(),
		Version:    l.Version,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

// ActivityResponse is one activity log entry
type ActivityResponse struct {
	ID         uuid.UUID `json:"id"`
	EventType  string    `json:"event_type"`
	SubjectID  uuid.UUID `json:"subject_id"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToActivityResponses converts activity log entries
func ToActivityResponses(entries []*leasing.Activity) []ActivityResponse {
	out := make([]ActivityResponse, len(entries))
	for i, a := range entries {
		out[i] = ActivityResponse{
			ID:         a.ID,
			EventType:  a.EventType,
			SubjectID:  a.SubjectID,
			Summary:    a.Summary,
			OccurredAt: a.OccurredAt,
		}
	}
	return out
}
