package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoice(t *testing.T) {
	tenantA := uuid.New()

	t.Run("creates open invoice with ordered lines", func(t *testing.T) {
		inv := newTestInvoice(t, "1000", jan1,
			billed("Rent A", "600", tenantA),
			general("Water", "50"),
		)
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assertDecimal(t, "1000", inv.BalanceDue)
		require.Len(t, inv.Lines, 2)
		assert.Equal(t, 0, inv.Lines[0].Position)
		assert.Equal(t, 1, inv.Lines[1].Position)
		assert.Equal(t, inv.ID, inv.Lines[1].InvoiceID)
		assert.True(t, inv.Lines[0].IsBilled())
		assert.False(t, inv.Lines[1].IsBilled())
	})

	tests := []struct {
		name  string
		total string
		due   time.Time
		lines []NewLineInput
	}{
		{"zero total", "0", jan1, nil},
		{"sub-cent total", "10.001", jan1, nil},
		{"missing due date", "100", time.Time{}, nil},
		{"negative line", "100", jan1, []NewLineInput{general("Credit", "-5")}},
		{"empty description", "100", jan1, []NewLineInput{{Description: " ", Amount: d("5")}}},
		{"billed lines exceed total", "100", jan1, []NewLineInput{billed("A", "60", tenantA), billed("B", "60", uuid.New())}},
		{"nil tenant", "100", jan1, []NewLineInput{billed("A", "60", uuid.Nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInvoice(orgID, leaseID, propertyID, tt.due, d(tt.total), "", tt.lines)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	t.Run("requires lease and property", func(t *testing.T) {
		_, err := NewInvoice(orgID, uuid.Nil, propertyID, jan1, d("10"), "", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = NewInvoice(orgID, leaseID, uuid.Nil, jan1, d("10"), "", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestDeriveInvoiceStatus(t *testing.T) {
	assert.Equal(t, InvoiceStatusOpen, DeriveInvoiceStatus(d("100"), d("100")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, DeriveInvoiceStatus(d("100"), d("0.01")))
	assert.Equal(t, InvoiceStatusPaid, DeriveInvoiceStatus(d("100"), decimal.Zero))
	assert.Equal(t, InvoiceStatusPaid, DeriveInvoiceStatus(d("100"), d("-1")))
}

func TestInvoiceStatus(t *testing.T) {
	assert.True(t, InvoiceStatusOpen.IsOutstanding())
	assert.True(t, InvoiceStatusPartiallyPaid.IsOutstanding())
	assert.False(t, InvoiceStatusPaid.IsOutstanding())
	assert.False(t, InvoiceStatus("VOID").IsValid())
	assert.ElementsMatch(t, []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusPartiallyPaid}, OutstandingInvoiceStatuses())
}

func TestInvoice_PayerDue(t *testing.T) {
	tenantA, tenantB, stranger := uuid.New(), uuid.New(), uuid.New()
	inv := newTestInvoice(t, "1000", jan1,
		billed("Rent A", "600", tenantA),
		billed("Rent B", "300", tenantB),
		general("Fees", "100"),
	)

	assertDecimal(t, "600", inv.PayerDue(tenantA))
	assertDecimal(t, "300", inv.PayerDue(tenantB))
	assertDecimal(t, "1000", inv.PayerDue(stranger))

	inv.ApplyAllocations(Allocation{ID: uuid.New(), InvoiceID: inv.ID, TenantID: tenantPtr(tenantA), Amount: d("250")})
	assertDecimal(t, "350", inv.PayerDue(tenantA))
	assertDecimal(t, "750", inv.PayerDue(stranger))
	assertDecimal(t, "750", inv.Outstanding())
}

func TestInvoice_RecomputeBalanceNoChange(t *testing.T) {
	inv := newTestInvoice(t, "100", jan1)
	assert.False(t, inv.RecomputeBalance())
	assert.Equal(t, 1, inv.GetVersion())
	assert.Empty(t, inv.GetDomainEvents())
}

func TestSelectTargets(t *testing.T) {
	paidUp := newTestInvoice(t, "100", jan1)
	paidUp.ApplyAllocations(Allocation{ID: uuid.New(), InvoiceID: paidUp.ID, Amount: d("100")})
	feb := newTestInvoice(t, "100", jan1.AddDate(0, 1, 0))
	mar := newTestInvoice(t, "100", jan1.AddDate(0, 2, 0))

	all := SelectTargets([]*Invoice{mar, feb, paidUp}, true)
	assert.Equal(t, []*Invoice{paidUp, feb, mar}, all)

	single := SelectTargets([]*Invoice{mar, feb, paidUp}, false)
	assert.Equal(t, []*Invoice{feb}, single)

	assert.Empty(t, SelectTargets(nil, false))
}

func TestPayerDueAcross(t *testing.T) {
	payer := uuid.New()
	a := newTestInvoice(t, "100", jan1)
	b := newTestInvoice(t, "250.50", jan1.AddDate(0, 1, 0))
	assertDecimal(t, "350.50", PayerDueAcross([]*Invoice{a, b}, payer))
}
