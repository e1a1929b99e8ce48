package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInvoiceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("issues an open invoice with billed lines", func(t *testing.T) {
		f := newFixture(t)
		svc := NewInvoiceService(memLeases{f.store}, memInvoices{f.store}, zap.NewNop())

		resp, err := svc.Create(ctx, f.orgID, CreateInvoiceInput{
			LeaseID:     f.lease.ID,
			DueDate:     time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
			TotalAmount: dec("1000"),
			Lines: []CreateInvoiceLineInput{
				{Description: "Share A", Amount: dec("600"), BillToTenantID: &f.tenantA},
				{Description: "Utilities", Amount: dec("150")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "OPEN", resp.Status)
		assert.True(t, resp.BalanceDue.Equal(dec("1000")))
		assert.Equal(t, f.lease.PropertyID, resp.PropertyID)
		require.Len(t, resp.Lines, 2)
		assert.Nil(t, resp.Lines[1].BillToTenantID)
		assert.Len(t, f.store.invoices, 1)
	})

	t.Run("billed lines above the total", func(t *testing.T) {
		f := newFixture(t)
		svc := NewInvoiceService(memLeases{f.store}, memInvoices{f.store}, zap.NewNop())

		_, err := svc.Create(ctx, f.orgID, CreateInvoiceInput{
			LeaseID:     f.lease.ID,
			DueDate:     time.Now(),
			TotalAmount: dec("500"),
			Lines: []CreateInvoiceLineInput{
				{Description: "Share A", Amount: dec("300"), BillToTenantID: &f.tenantA},
				{Description: "Share B", Amount: dec("300"), BillToTenantID: &f.tenantB},
			},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Empty(t, f.store.invoices)
	})

	t.Run("line billed to a stranger", func(t *testing.T) {
		f := newFixture(t)
		svc := NewInvoiceService(memLeases{f.store}, memInvoices{f.store}, zap.NewNop())
		stranger := uuid.New()

		_, err := svc.Create(ctx, f.orgID, CreateInvoiceInput{
			LeaseID:     f.lease.ID,
			DueDate:     time.Now(),
			TotalAmount: dec("500"),
			Lines:       []CreateInvoiceLineInput{{Description: "Share", Amount: dec("100"), BillToTenantID: &stranger}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown lease", func(t *testing.T) {
		f := newFixture(t)
		svc := NewInvoiceService(memLeases{f.store}, memInvoices{f.store}, zap.NewNop())

		_, err := svc.Create(ctx, f.orgID, CreateInvoiceInput{LeaseID: uuid.New(), DueDate: time.Now(), TotalAmount: dec("10")})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestInvoiceService_ListByLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addInvoice(t, time.Now(), "100")
	f.addInvoice(t, time.Now().AddDate(0, 1, 0), "200")
	svc := NewInvoiceService(memLeases{f.store}, memInvoices{f.store}, zap.NewNop())

	page, err := svc.ListByLease(ctx, f.orgID, f.lease.ID, payment.InvoiceFilter{Filter: shared.DefaultFilter()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)

	_, err = svc.ListByLease(ctx, f.orgID, f.lease.ID, payment.InvoiceFilter{
		Filter:   shared.DefaultFilter(),
		Statuses: []payment.InvoiceStatus{"VOID"},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
