package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory SQLite database with the payment schema.
// The pool is pinned to one connection so every query sees the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.LeaseModel{},
		&models.LeaseTenantModel{},
		&models.PaymentPolicyModel{},
		&models.InvoiceModel{},
		&models.InvoiceLineModel{},
		&models.PaymentModel{},
		&models.PaymentAllocationModel{},
		&models.OutboxEventModel{},
		&models.LeaseActivityModel{},
	)
	require.NoError(t, err)

	// Constraints AutoMigrate cannot express; the SQL migrations carry the same ones.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX idx_payments_org_idempotency_key ON payments(org_id, idempotency_key)`,
		`CREATE UNIQUE INDEX idx_payment_policies_global ON payment_policies(org_id) WHERE scope = 'GLOBAL'`,
		`CREATE UNIQUE INDEX idx_payment_policies_property ON payment_policies(org_id, property_id) WHERE scope = 'PROPERTY'`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

// setupMockDB returns a GORM handle on the postgres dialect backed by sqlmock
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC)
}

// fixture creates a lease with two tenants for an organization
type fixture struct {
	orgID      uuid.UUID
	propertyID uuid.UUID
	tenantA    uuid.UUID
	tenantB    uuid.UUID
	lease      *leasing.Lease
}

func newFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		orgID:      uuid.New(),
		propertyID: uuid.New(),
		tenantA:    uuid.New(),
		tenantB:    uuid.New(),
	}
	lease, err := leasing.NewLease(f.orgID, f.propertyID, "Unit 4B", day(1), []uuid.UUID{f.tenantA, f.tenantB})
	require.NoError(t, err)
	require.NoError(t, NewGormLeaseRepository(db).Save(t.Context(), lease))
	f.lease = lease
	return f
}

func (f fixture) invoice(t *testing.T, db *gorm.DB, due time.Time, total string, lines ...payment.NewLineInput) *payment.Invoice {
	t.Helper()
	inv, err := payment.NewInvoice(f.orgID, f.lease.ID, f.propertyID, due, dec(total), "rent", lines)
	require.NoError(t, err)
	require.NoError(t, NewGormInvoiceRepository(db).Create(t.Context(), inv))
	return inv
}
