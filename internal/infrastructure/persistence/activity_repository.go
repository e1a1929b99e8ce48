package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormActivityRepository implements leasing.ActivityRepository using GORM
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// Append inserts the entry unless its event was already logged
func (r *GormActivityRepository) Append(ctx context.Context, activity *leasing.Activity) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(models.LeaseActivityModelFromDomain(activity)).Error
	return TranslateError("append lease activity", err)
}

// ListByLease pages through a lease's log, newest first
func (r *GormActivityRepository) ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) ([]*leasing.Activity, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LeaseActivityModel{}).
		Where("org_id = ? AND lease_id = ?", orgID, leaseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count lease activity", err)
	}

	query = query.Order("occurred_at DESC, id DESC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.LeaseActivityModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list lease activity", err)
	}

	activities := make([]*leasing.Activity, len(rows))
	for i := range rows {
		activities[i] = rows[i].ToDomain()
	}
	return activities, total, nil
}

var _ leasing.ActivityRepository = (*GormActivityRepository)(nil)
