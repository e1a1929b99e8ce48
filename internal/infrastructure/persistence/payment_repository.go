package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements payment.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment with its allocations
func (r *GormPaymentRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*payment.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id))
}

// FindByIdempotencyKey finds the payment recorded under a client key
func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (*payment.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("org_id = ? AND idempotency_key = ?", orgID, key))
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query *gorm.DB) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		return nil, TranslateError("load payment", err)
	}
	p := model.ToDomain()

	var allocs []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", p.ID).
		Order("created_at ASC, id ASC").
		Find(&allocs).Error; err != nil {
		return nil, TranslateError("load payment allocations", err)
	}
	for i := range allocs {
		p.Allocations = append(p.Allocations, allocs[i].ToDomain())
	}
	return p, nil
}

// Create inserts a payment. A reused idempotency key yields ALREADY_EXISTS.
func (r *GormPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := models.PaymentModelFromDomain(p)
	return TranslateError("create payment", r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock writes the allocation outcome if the stored version is one behind
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("org_id = ? AND id = ? AND version = ?", p.OrgID, p.ID, p.Version-1).
		Updates(map[string]interface{}{
			"status":             p.Status,
			"allocated_amount":   p.AllocatedAmount,
			"unallocated_amount": p.UnallocatedAmount,
			"version":            p.Version,
			"updated_at":         p.UpdatedAt,
		})
	if result.Error != nil {
		return TranslateError("update payment", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("payment")
	}
	return nil
}

var _ payment.PaymentRepository = (*GormPaymentRepository)(nil)

// GormAllocationRepository implements payment.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// CreateBatch appends allocations to the ledger
func (r *GormAllocationRepository) CreateBatch(ctx context.Context, allocs []payment.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	rows := make([]models.PaymentAllocationModel, len(allocs))
	for i, a := range allocs {
		rows[i] = models.PaymentAllocationModelFromDomain(a)
	}
	return TranslateError("create allocations", r.db.WithContext(ctx).CreateInBatches(rows, 100).Error)
}

// FindByPayment returns the allocations of a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, orgID, paymentID uuid.UUID) ([]payment.Allocation, error) {
	return r.find(ctx, "org_id = ? AND payment_id = ?", orgID, paymentID)
}

// FindByInvoice returns the allocations recorded against an invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) ([]payment.Allocation, error) {
	return r.find(ctx, "org_id = ? AND invoice_id = ?", orgID, invoiceID)
}

func (r *GormAllocationRepository) find(ctx context.Context, where string, args ...interface{}) ([]payment.Allocation, error) {
	var rows []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where(where, args...).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, TranslateError("load allocations", err)
	}
	allocs := make([]payment.Allocation, len(rows))
	for i := range rows {
		allocs[i] = rows[i].ToDomain()
	}
	return allocs, nil
}

var _ payment.AllocationRepository = (*GormAllocationRepository)(nil)
