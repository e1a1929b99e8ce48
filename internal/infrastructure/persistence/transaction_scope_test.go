package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	apppayment "github.com/leasepay/backend/internal/application/payment"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/event"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_CommitsPaymentWithOutbox(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db, event.NewPaymentEventSerializer())
	ctx := context.Background()
	f := newFixture(t, db)

	p := newTestPayment(t, f, "100.00", "tx-key")
	err := scope.Execute(ctx, func(repos apppayment.TransactionalRepositories) error {
		lease, err := repos.LeaseRepo().FindByIDForUpdate(ctx, f.orgID, f.lease.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, f.lease.ID, lease.ID)
		if err := repos.PaymentRepo().Create(ctx, p); err != nil {
			return err
		}
		return repos.Events().Publish(ctx, p.GetDomainEvents()...)
	})
	require.NoError(t, err)

	found, err := NewGormPaymentRepository(db).FindByIdempotencyKey(ctx, f.orgID, "tx-key")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	var entries []models.OutboxEventModel
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, payment.EventTypePaymentRecorded, entries[0].EventType)
	assert.Equal(t, p.ID, entries[0].AggregateID)
	assert.Equal(t, shared.OutboxStatusPending, entries[0].Status)
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db, event.NewPaymentEventSerializer())
	ctx := context.Background()
	f := newFixture(t, db)
	inv := f.invoice(t, db, day(5), "100.00")

	p := newTestPayment(t, f, "100.00", "rollback-key")
	boom := shared.NewPolicyViolationError("rejected after writes")
	err := scope.Execute(ctx, func(repos apppayment.TransactionalRepositories) error {
		if err := repos.PaymentRepo().Create(ctx, p); err != nil {
			return err
		}
		invoices, err := repos.InvoiceRepo().FindOutstandingByLeaseForUpdate(ctx, f.orgID, f.lease.ID)
		if err != nil {
			return err
		}
		result, err := payment.NewAllocator().Allocate(payment.AllocationRequest{
			OrgID: f.orgID, PaymentID: p.ID, PayerTenantID: p.TenantID, Amount: p.Amount, AllowSplit: true,
		}, invoices)
		if err != nil {
			return err
		}
		if err := repos.AllocationRepo().CreateBatch(ctx, result.Allocations); err != nil {
			return err
		}
		if err := repos.Events().Publish(ctx, p.GetDomainEvents()...); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, shared.ErrPolicyViolation)

	_, err = NewGormPaymentRepository(db).FindByIdempotencyKey(ctx, f.orgID, "rollback-key")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	allocs, err := NewGormAllocationRepository(db).FindByInvoice(ctx, f.orgID, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, allocs)

	var outbox int64
	require.NoError(t, db.Model(&models.OutboxEventModel{}).Count(&outbox).Error)
	assert.Zero(t, outbox)
}

func TestGormTransactionScope_WrapsUnknownErrors(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db, event.NewPaymentEventSerializer())

	err := scope.Execute(context.Background(), func(apppayment.TransactionalRepositories) error {
		return errors.New("disk on fire")
	})
	assert.ErrorIs(t, err, shared.ErrPersistenceFailure)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestGormTransactionScope_LocksRowsAndRollsBack(t *testing.T) {
	gormDB, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	scope := NewGormTransactionScope(gormDB, event.NewPaymentEventSerializer())
	orgID := uuid.New()
	leaseID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "leases" WHERE .* FOR UPDATE`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := scope.Execute(context.Background(), func(repos apppayment.TransactionalRepositories) error {
		_, err := repos.LeaseRepo().FindByIDForUpdate(context.Background(), orgID, leaseID)
		return err
	})
	assert.ErrorIs(t, err, shared.ErrPersistenceFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_OutstandingQueryLocksRows(t *testing.T) {
	gormDB, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	repo := NewGormInvoiceRepository(gormDB)
	orgID := uuid.New()
	leaseID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "invoices" WHERE org_id = $1 AND lease_id = $2 AND status IN ($3,$4) ORDER BY due_date ASC, created_at ASC, id ASC FOR UPDATE`)).
		WithArgs(orgID.String(), leaseID.String(), "OPEN", "PARTIALLY_PAID").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	invoices, err := repo.FindOutstandingByLeaseForUpdate(context.Background(), orgID, leaseID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_SaveWithLockConflict(t *testing.T) {
	gormDB, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	repo := NewGormInvoiceRepository(gormDB)
	inv := &payment.Invoice{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(uuid.New()),
		BalanceDue:       dec("10.00"),
		Status:           payment.InvoiceStatusPartiallyPaid,
	}
	inv.IncrementVersion()

	mock.ExpectExec(`UPDATE "invoices" SET .* WHERE org_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithLock(context.Background(), inv)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
