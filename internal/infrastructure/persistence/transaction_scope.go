package persistence

import (
	"context"

	apppayment "github.com/leasepay/backend/internal/application/payment"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements apppayment.TransactionScope using GORM transactions
type GormTransactionScope struct {
	db      *gorm.DB
	encoder EventEncoder
}

// NewGormTransactionScope creates a new GormTransactionScope. Events
// published inside a scope are encoded with encoder into the outbox.
func NewGormTransactionScope(db *gorm.DB, encoder EventEncoder) *GormTransactionScope {
	return &GormTransactionScope{db: db, encoder: encoder}
}

// Execute runs fn in a database transaction. An error from fn, or a panic,
// rolls the transaction back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apppayment.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, encoder: s.encoder})
	})
	if err == nil {
		return nil
	}
	return TranslateError("commit transaction", err)
}

type gormTransactionalRepositories struct {
	tx      *gorm.DB
	encoder EventEncoder
}

func (r *gormTransactionalRepositories) LeaseRepo() leasing.LeaseRepository {
	return NewGormLeaseRepository(r.tx)
}

func (r *gormTransactionalRepositories) PolicyRepo() policy.PolicyRepository {
	return NewGormPolicyRepository(r.tx)
}

func (r *gormTransactionalRepositories) InvoiceRepo() payment.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() payment.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) AllocationRepo() payment.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() shared.EventPublisher {
	return &outboxPublisher{repo: NewGormOutboxRepository(r.tx), encoder: r.encoder}
}

var (
	_ apppayment.TransactionScope          = (*GormTransactionScope)(nil)
	_ apppayment.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
