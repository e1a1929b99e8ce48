package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
)

// OutboxEventModel is a row of the transactional outbox
type OutboxEventModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	OrgID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(100);not null"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null"`
	AggregateType string              `gorm:"type:varchar(50);not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_events_status_created,priority:1"`
	Attempts      int                 `gorm:"not null;default:0"`
	MaxAttempts   int                 `gorm:"not null;default:5"`
	LastError     string              `gorm:"type:text"`
	NextAttemptAt *time.Time          `gorm:"index"`
	SentAt        *time.Time
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_events_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxEventModel) TableName() string {
	return "outbox_events"
}

// ToDomain converts the model to a domain OutboxEntry
func (m *OutboxEventModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            m.ID,
		OrgID:         m.OrgID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		Payload:       m.Payload,
		Status:        m.Status,
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt,
		SentAt:        m.SentAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OutboxEventModelFromDomain creates a row from a domain OutboxEntry
func OutboxEventModelFromDomain(e *shared.OutboxEntry) *OutboxEventModel {
	return &OutboxEventModel{
		ID:            e.ID,
		OrgID:         e.OrgID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Payload:       e.Payload,
		Status:        e.Status,
		Attempts:      e.Attempts,
		MaxAttempts:   e.MaxAttempts,
		LastError:     e.LastError,
		NextAttemptAt: e.NextAttemptAt,
		SentAt:        e.SentAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
