package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
)

// TransactionScope runs a function inside one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are the repositories of one allocation pass.
// All of them share the surrounding transaction.
type TransactionalRepositories interface {
	LeaseRepo() leasing.LeaseRepository
	PolicyRepo() policy.PolicyRepository
	InvoiceRepo() payment.InvoiceRepository
	PaymentRepo() payment.PaymentRepository
	AllocationRepo() payment.AllocationRepository
	// Events writes domain events to the transactional outbox
	Events() shared.EventPublisher
}

// LeaseLocker serializes allocation passes for one lease across processes
type LeaseLocker interface {
	// Acquire blocks up to wait for the lease lock. It returns
	// shared.ErrLeaseBusy if the lock is still held by someone else after wait.
	Acquire(ctx context.Context, orgID, leaseID uuid.UUID, ttl, wait time.Duration) (release func(), err error)
}

// NoOpTransactionScope runs fn against plain repositories without a
// transaction. Writes are not rolled back when fn fails.
type NoOpTransactionScope struct {
	leaseRepo      leasing.LeaseRepository
	policyRepo     policy.PolicyRepository
	invoiceRepo    payment.InvoiceRepository
	paymentRepo    payment.PaymentRepository
	allocationRepo payment.AllocationRepository
	events         shared.EventPublisher
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	leaseRepo leasing.LeaseRepository,
	policyRepo policy.PolicyRepository,
	invoiceRepo payment.InvoiceRepository,
	paymentRepo payment.PaymentRepository,
	allocationRepo payment.AllocationRepository,
	events shared.EventPublisher,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		leaseRepo:      leaseRepo,
		policyRepo:     policyRepo,
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
		events:         events,
	}
}

// Execute calls fn with the scope itself as the repository set
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) LeaseRepo() leasing.LeaseRepository           { return s.leaseRepo }
func (s *NoOpTransactionScope) PolicyRepo() policy.PolicyRepository          { return s.policyRepo }
func (s *NoOpTransactionScope) InvoiceRepo() payment.InvoiceRepository       { return s.invoiceRepo }
func (s *NoOpTransactionScope) PaymentRepo() payment.PaymentRepository       { return s.paymentRepo }
func (s *NoOpTransactionScope) AllocationRepo() payment.AllocationRepository { return s.allocationRepo }
func (s *NoOpTransactionScope) Events() shared.EventPublisher                { return s.events }
