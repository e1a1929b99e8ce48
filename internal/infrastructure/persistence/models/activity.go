package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
)

// LeaseActivityModel is a row of the lease activity log
type LeaseActivityModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrgID      uuid.UUID `gorm:"type:uuid;not null;index"`
	LeaseID    uuid.UUID `gorm:"type:uuid;not null;index:idx_lease_activities_lease_occurred,priority:1"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EventType  string    `gorm:"type:varchar(100);not null"`
	SubjectID  uuid.UUID `gorm:"type:uuid;not null"`
	Summary    string    `gorm:"type:varchar(500);not null"`
	OccurredAt time.Time `gorm:"not null;index:idx_lease_activities_lease_occurred,priority:2"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LeaseActivityModel) TableName() string {
	return "lease_activities"
}

// ToDomain converts the model to a domain Activity
func (m *LeaseActivityModel) ToDomain() *leasing.Activity {
	return &leasing.Activity{
		ID:         m.ID,
		OrgID:      m.OrgID,
		LeaseID:    m.LeaseID,
		EventID:    m.EventID,
		EventType:  m.EventType,
		SubjectID:  m.SubjectID,
		Summary:    m.Summary,
		OccurredAt: m.OccurredAt,
		CreatedAt:  m.CreatedAt,
	}
}

// LeaseActivityModelFromDomain creates a model from a domain Activity
func LeaseActivityModelFromDomain(a *leasing.Activity) *LeaseActivityModel {
	return &LeaseActivityModel{
		ID:         a.ID,
		OrgID:      a.OrgID,
		LeaseID:    a.LeaseID,
		EventID:    a.EventID,
		EventType:  a.EventType,
		SubjectID:  a.SubjectID,
		Summary:    a.Summary,
		OccurredAt: a.OccurredAt,
		CreatedAt:  a.CreatedAt,
	}
}
