package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLeaseRepository implements leasing.LeaseRepository using GORM
type GormLeaseRepository struct {
	db *gorm.DB
}

// NewGormLeaseRepository creates a new GormLeaseRepository
func NewGormLeaseRepository(db *gorm.DB) *GormLeaseRepository {
	return &GormLeaseRepository{db: db}
}

// FindByID finds a lease by ID within an organization
func (r *GormLeaseRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*leasing.Lease, error) {
	return r.find(ctx, orgID, id, false)
}

// FindByIDForUpdate finds a lease and locks its row for the rest of the transaction
func (r *GormLeaseRepository) FindByIDForUpdate(ctx context.Context, orgID, id uuid.UUID) (*leasing.Lease, error) {
	return r.find(ctx, orgID, id, true)
}

func (r *GormLeaseRepository) find(ctx context.Context, orgID, id uuid.UUID, forUpdate bool) (*leasing.Lease, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.LeaseModel
	if err := query.Where("org_id = ? AND id = ?", orgID, id).First(&model).Error; err != nil {
		return nil, TranslateError("load lease", err)
	}
	if err := r.db.WithContext(ctx).
		Where("lease_id = ?", id).
		Order("position ASC").
		Find(&model.Tenants).Error; err != nil {
		return nil, TranslateError("load lease tenants", err)
	}
	return model.ToDomain(), nil
}

// Save inserts or fully replaces a lease and its tenant list
func (r *GormLeaseRepository) Save(ctx context.Context, lease *leasing.Lease) error {
	model := models.LeaseModelFromDomain(lease)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tenants").Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("lease_id = ?", lease.ID).Delete(&models.LeaseTenantModel{}).Error; err != nil {
			return err
		}
		if len(model.Tenants) == 0 {
			return nil
		}
		return tx.Create(&model.Tenants).Error
	})
	return TranslateError("save lease", err)
}

// SaveWithLock updates the lease if the stored version is one behind
func (r *GormLeaseRepository) SaveWithLock(ctx context.Context, lease *leasing.Lease) error {
	result := r.db.WithContext(ctx).
		Model(&models.LeaseModel{}).
		Where("org_id = ? AND id = ? AND version = ?", lease.OrgID, lease.ID, lease.Version-1).
		Updates(map[string]interface{}{
			"name":            lease.Name,
			"status":          lease.Status,
			"end_date":        lease.EndDate,
			"allow_partial":   lease.PolicyOverride.AllowPartial,
			"allow_split":     lease.PolicyOverride.AllowSplit,
			"min_partial_usd": lease.PolicyOverride.MinPartialUSD,
			"version":         lease.Version,
			"updated_at":      lease.UpdatedAt,
		})
	if result.Error != nil {
		return TranslateError("update lease", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("lease")
	}
	return nil
}

var _ leasing.LeaseRepository = (*GormLeaseRepository)(nil)
