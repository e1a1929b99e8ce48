package leasing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Append(ctx context.Context, a *leasing.Activity) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockActivityRepository) ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) ([]*leasing.Activity, int64, error) {
	args := m.Called(ctx, orgID, leaseID, filter)
	entries, _ := args.Get(0).([]*leasing.Activity)
	return entries, args.Get(1).(int64), args.Error(2)
}

type otherEvent struct{ shared.BaseDomainEvent }

func TestActivityLogHandler_Handle(t *testing.T) {
	ctx := context.Background()
	orgID, leaseID, tenantID := uuid.New(), uuid.New(), uuid.New()

	p, err := payment.NewPayment(orgID, leaseID, uuid.New(), tenantID,
		decimal.RequireFromString("1250.50"), payment.GatewayACH, "", "", time.Now())
	require.NoError(t, err)
	recorded := p.GetDomainEvents()[0]

	t.Run("payment recorded", func(t *testing.T) {
		repo := new(MockActivityRepository)
		repo.On("Append", ctx, mock.MatchedBy(func(a *leasing.Activity) bool {
			return a.LeaseID == leaseID &&
				a.OrgID == orgID &&
				a.EventID == recorded.EventID() &&
				a.SubjectID == p.ID &&
				a.Summary == "Payment of $1,250.50 recorded via ACH"
		})).Return(nil)

		h := NewActivityLogHandler(repo, zap.NewNop())
		require.NoError(t, h.Handle(ctx, recorded))
		repo.AssertExpectations(t)
	})

	t.Run("allocation with a remainder", func(t *testing.T) {
		ev := payment.NewPaymentAllocatedEvent(p, &payment.AllocationResult{
			AllocatedAmount:      decimal.NewFromInt(1000),
			UnallocatedRemainder: decimal.RequireFromString("250.50"),
			UpdatedInvoices:      []payment.InvoiceUpdate{{InvoiceID: uuid.New()}},
		})
		repo := new(MockActivityRepository)
		repo.On("Append", ctx, mock.MatchedBy(func(a *leasing.Activity) bool {
			return a.Summary == "Payment allocated $1,000.00 across 1 invoice(s), $250.50 left unallocated"
		})).Return(nil)

		require.NoError(t, NewActivityLogHandler(repo, zap.NewNop()).Handle(ctx, ev))
		repo.AssertExpectations(t)
	})

	t.Run("invoice status change", func(t *testing.T) {
		inv, err := payment.NewInvoice(orgID, leaseID, uuid.New(), time.Now(), decimal.NewFromInt(500), "", nil)
		require.NoError(t, err)
		inv.Status = payment.InvoiceStatusPaid
		inv.BalanceDue = decimal.Zero
		ev := payment.NewInvoiceStatusChangedEvent(inv, payment.InvoiceStatusOpen)

		repo := new(MockActivityRepository)
		repo.On("Append", ctx, mock.MatchedBy(func(a *leasing.Activity) bool {
			return a.SubjectID == inv.ID && a.Summary == "Invoice moved from OPEN to PAID, balance due $0.00"
		})).Return(nil)

		require.NoError(t, NewActivityLogHandler(repo, zap.NewNop()).Handle(ctx, ev))
		repo.AssertExpectations(t)
	})

	t.Run("store failure is returned for redelivery", func(t *testing.T) {
		repo := new(MockActivityRepository)
		repo.On("Append", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := NewActivityLogHandler(repo, zap.NewNop()).Handle(ctx, recorded)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("unknown event", func(t *testing.T) {
		repo := new(MockActivityRepository)
		ev := &otherEvent{shared.NewBaseDomainEvent("lease.renamed", "Lease", leaseID, orgID)}

		err := NewActivityLogHandler(repo, zap.NewNop()).Handle(ctx, ev)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}
