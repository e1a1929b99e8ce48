package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPolicyRepository implements policy.PolicyRepository using GORM
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindGlobal returns the organization-wide policy row
func (r *GormPolicyRepository) FindGlobal(ctx context.Context, orgID uuid.UUID) (*policy.PaymentPolicy, error) {
	var model models.PaymentPolicyModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND scope = ?", orgID, policy.ScopeGlobal).
		First(&model).Error; err != nil {
		return nil, TranslateError("load global policy", err)
	}
	return model.ToDomain(), nil
}

// FindByProperty returns the policy row of one property
func (r *GormPolicyRepository) FindByProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*policy.PaymentPolicy, error) {
	var model models.PaymentPolicyModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND scope = ? AND property_id = ?", orgID, policy.ScopeProperty, propertyID).
		First(&model).Error; err != nil {
		return nil, TranslateError("load property policy", err)
	}
	return model.ToDomain(), nil
}

// Save inserts a new row or updates an existing one. Updates are guarded
// by the row version.
func (r *GormPolicyRepository) Save(ctx context.Context, p *policy.PaymentPolicy) error {
	model := models.PaymentPolicyModelFromDomain(p)
	if p.Version <= 1 {
		return TranslateError("create policy", r.db.WithContext(ctx).Create(model).Error)
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentPolicyModel{}).
		Where("org_id = ? AND id = ? AND version = ?", p.OrgID, p.ID, p.Version-1).
		Updates(map[string]interface{}{
			"allow_partial":   p.Settings.AllowPartial,
			"allow_split":     p.Settings.AllowSplit,
			"min_partial_usd": p.Settings.MinPartialUSD,
			"version":         p.Version,
			"updated_at":      p.UpdatedAt,
		})
	if result.Error != nil {
		return TranslateError("update policy", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("payment policy")
	}
	return nil
}

var _ policy.PolicyRepository = (*GormPolicyRepository)(nil)
