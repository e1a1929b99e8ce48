package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements shared.OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GormOutboxRepository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save inserts outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEventModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEventModelFromDomain(e)
	}
	return TranslateError("save outbox entries", r.db.WithContext(ctx).Create(rows).Error)
}

// FindDue returns pending entries and failed entries whose retry time has come, oldest first
func (r *GormOutboxRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEventModel
	if err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_attempt_at <= ?)",
			shared.OutboxStatusPending, shared.OutboxStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, TranslateError("find due outbox entries", err)
	}
	return toOutboxEntries(rows), nil
}

// Claim locks the entries still claimable, skipping rows another relay
// holds, and marks them PROCESSING
func (r *GormOutboxRepository) Claim(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.OutboxEventModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids,
				[]shared.OutboxStatus{shared.OutboxStatusPending, shared.OutboxStatusFailed}).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		claimed := make([]uuid.UUID, len(rows))
		for i := range rows {
			claimed[i] = rows[i].ID
		}
		now := time.Now()
		if err := tx.Model(&models.OutboxEventModel{}).
			Where("id IN ?", claimed).
			Updates(map[string]interface{}{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Status = shared.OutboxStatusProcessing
			rows[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, TranslateError("claim outbox entries", err)
	}
	return toOutboxEntries(rows), nil
}

// Update writes the delivery state of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return TranslateError("update outbox entry", r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":          entry.Status,
			"attempts":        entry.Attempts,
			"last_error":      entry.LastError,
			"next_attempt_at": entry.NextAttemptAt,
			"sent_at":         entry.SentAt,
			"updated_at":      entry.UpdatedAt,
		}).Error)
}

// FindByID returns one entry
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, TranslateError("find outbox entry", err)
	}
	return row.ToDomain(), nil
}

// FindDead lists dead entries, oldest first
func (r *GormOutboxRepository) FindDead(ctx context.Context, filter shared.Filter) ([]*shared.OutboxEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxEventModel{}).
		Where("status = ?", shared.OutboxStatusDead)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count dead outbox entries", err)
	}

	query = query.Order("created_at ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.OutboxEventModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("find dead outbox entries", err)
	}
	return toOutboxEntries(rows), total, nil
}

// DeleteSentBefore removes delivered entries sent before the cutoff
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", shared.OutboxStatusSent, cutoff).
		Delete(&models.OutboxEventModel{})
	if result.Error != nil {
		return 0, TranslateError("delete outbox entries", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus returns the number of entries per status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var results []struct {
		Status shared.OutboxStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, TranslateError("count outbox entries", err)
	}
	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

func toOutboxEntries(rows []models.OutboxEventModel) []*shared.OutboxEntry {
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)

// EventEncoder turns a domain event into an outbox payload
type EventEncoder interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
}

// outboxPublisher writes events to the outbox of the transaction it was built on
type outboxPublisher struct {
	repo    *GormOutboxRepository
	encoder EventEncoder
}

// Publish implements shared.EventPublisher
func (p *outboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		payload, err := p.encoder.Serialize(ev)
		if err != nil {
			return shared.NewPersistenceError("encode event "+ev.EventType(), err)
		}
		entries = append(entries, shared.NewOutboxEntry(ev, payload))
	}
	return p.repo.Save(ctx, entries...)
}

var _ shared.EventPublisher = (*outboxPublisher)(nil)
