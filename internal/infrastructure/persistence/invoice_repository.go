package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allocationOrder is the order in which a lease's invoices receive money
const allocationOrder = "due_date ASC, created_at ASC, id ASC"

// GormInvoiceRepository implements payment.InvoiceRepository using GORM.
// Every read hydrates the invoice lines and the allocation ledger.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID within an organization
func (r *GormInvoiceRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*payment.Invoice, error) {
	return r.findOne(ctx, r.db.WithContext(ctx), orgID, id)
}

// FindByIDForUpdate finds an invoice and locks its row
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, orgID, id uuid.UUID) (*payment.Invoice, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orgID, id)
}

func (r *GormInvoiceRepository) findOne(ctx context.Context, query *gorm.DB, orgID, id uuid.UUID) (*payment.Invoice, error) {
	var model models.InvoiceModel
	if err := query.Where("org_id = ? AND id = ?", orgID, id).First(&model).Error; err != nil {
		return nil, TranslateError("load invoice", err)
	}
	invoices, err := r.hydrate(ctx, []models.InvoiceModel{model})
	if err != nil {
		return nil, err
	}
	return invoices[0], nil
}

// FindOutstandingByLeaseForUpdate returns the lease's OPEN and
// PARTIALLY_PAID invoices in allocation order, row locked
func (r *GormInvoiceRepository) FindOutstandingByLeaseForUpdate(ctx context.Context, orgID, leaseID uuid.UUID) ([]*payment.Invoice, error) {
	return r.findOutstanding(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orgID, leaseID)
}

// FindOutstandingByLease returns the lease's outstanding invoices without locking
func (r *GormInvoiceRepository) FindOutstandingByLease(ctx context.Context, orgID, leaseID uuid.UUID) ([]*payment.Invoice, error) {
	return r.findOutstanding(ctx, r.db.WithContext(ctx), orgID, leaseID)
}

func (r *GormInvoiceRepository) findOutstanding(ctx context.Context, query *gorm.DB, orgID, leaseID uuid.UUID) ([]*payment.Invoice, error) {
	var rows []models.InvoiceModel
	if err := query.
		Where("org_id = ? AND lease_id = ? AND status IN ?", orgID, leaseID, payment.OutstandingInvoiceStatuses()).
		Order(allocationOrder).
		Find(&rows).Error; err != nil {
		return nil, TranslateError("load outstanding invoices", err)
	}
	return r.hydrate(ctx, rows)
}

// FindByLease lists a lease's invoices with pagination
func (r *GormInvoiceRepository) FindByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter payment.InvoiceFilter) ([]*payment.Invoice, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("org_id = ? AND lease_id = ?", orgID, leaseID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count invoices", err)
	}

	query = query.Order(invoiceListOrder(filter))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.InvoiceModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list invoices", err)
	}

	invoices, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// Create inserts a new invoice and its lines
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *payment.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return TranslateError("create invoice", r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock writes the derived balance and status if the stored version is one behind
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *payment.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("org_id = ? AND id = ? AND version = ?", inv.OrgID, inv.ID, inv.Version-1).
		Updates(map[string]interface{}{
			"balance_due": inv.BalanceDue,
			"status":      inv.Status,
			"version":     inv.Version,
			"updated_at":  inv.UpdatedAt,
		})
	if result.Error != nil {
		return TranslateError("update invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("invoice")
	}
	return nil
}

// hydrate loads lines and allocations for the rows, keeping row order
func (r *GormInvoiceRepository) hydrate(ctx context.Context, rows []models.InvoiceModel) ([]*payment.Invoice, error) {
	if len(rows) == 0 {
		return []*payment.Invoice{}, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	var lines []models.InvoiceLineModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("invoice_id, position ASC").
		Find(&lines).Error; err != nil {
		return nil, TranslateError("load invoice lines", err)
	}
	linesByInvoice := make(map[uuid.UUID][]models.InvoiceLineModel, len(rows))
	for _, l := range lines {
		linesByInvoice[l.InvoiceID] = append(linesByInvoice[l.InvoiceID], l)
	}

	var allocs []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&allocs).Error; err != nil {
		return nil, TranslateError("load invoice allocations", err)
	}
	allocsByInvoice := make(map[uuid.UUID][]payment.Allocation, len(rows))
	for i := range allocs {
		allocsByInvoice[allocs[i].InvoiceID] = append(allocsByInvoice[allocs[i].InvoiceID], allocs[i].ToDomain())
	}

	invoices := make([]*payment.Invoice, len(rows))
	for i := range rows {
		rows[i].Lines = linesByInvoice[rows[i].ID]
		inv := rows[i].ToDomain()
		inv.ApplyAllocations(allocsByInvoice[rows[i].ID]...)
		invoices[i] = inv
	}
	return invoices, nil
}

var _ payment.InvoiceRepository = (*GormInvoiceRepository)(nil)
