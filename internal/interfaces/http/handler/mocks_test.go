package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/application/event"
	leasingapp "github.com/leasepay/backend/internal/application/leasing"
	paymentapp "github.com/leasepay/backend/internal/application/payment"
	policyapp "github.com/leasepay/backend/internal/application/policy"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) RecordPayment(ctx context.Context, in paymentapp.RecordPaymentInput) (*paymentapp.RecordPaymentResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.RecordPaymentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentService) PreviewAllocation(ctx context.Context, in paymentapp.RecordPaymentInput) (*paymentapp.PreviewResponse, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.PreviewResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentService) GetPayment(ctx context.Context, orgID, paymentID uuid.UUID) (*paymentapp.PaymentResponse, error) {
	args := m.Called(ctx, orgID, paymentID)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.PaymentResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentService) GetPayerBalance(ctx context.Context, orgID, leaseID, tenantID uuid.UUID) (*paymentapp.PayerBalanceResponse, error) {
	args := m.Called(ctx, orgID, leaseID, tenantID)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.PayerBalanceResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLeaseService struct {
	mock.Mock
}

func (m *mockLeaseService) Get(ctx context.Context, orgID, leaseID uuid.UUID) (*leasingapp.LeaseResponse, error) {
	args := m.Called(ctx, orgID, leaseID)
	if r := args.Get(0); r != nil {
		return r.(*leasingapp.LeaseResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLeaseService) Create(ctx context.Context, orgID uuid.UUID, in leasingapp.CreateLeaseInput) (*leasingapp.LeaseResponse, error) {
	args := m.Called(ctx, orgID, in)
	if r := args.Get(0); r != nil {
		return r.(*leasingapp.LeaseResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLeaseService) End(ctx context.Context, orgID, leaseID uuid.UUID, at time.Time) (*leasingapp.LeaseResponse, error) {
	args := m.Called(ctx, orgID, leaseID, at)
	if r := args.Get(0); r != nil {
		return r.(*leasingapp.LeaseResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLeaseService) ListActivity(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) (*shared.Paginated[leasingapp.ActivityResponse], error) {
	args := m.Called(ctx, orgID, leaseID, filter)
	if r := args.Get(0); r != nil {
		return r.(*shared.Paginated[leasingapp.ActivityResponse]), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInvoiceService struct {
	mock.Mock
}

func (m *mockInvoiceService) Create(ctx context.Context, orgID uuid.UUID, in paymentapp.CreateInvoiceInput) (*paymentapp.InvoiceResponse, error) {
	args := m.Called(ctx, orgID, in)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.InvoiceResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvoiceService) Get(ctx context.Context, orgID, invoiceID uuid.UUID) (*paymentapp.InvoiceResponse, error) {
	args := m.Called(ctx, orgID, invoiceID)
	if r := args.Get(0); r != nil {
		return r.(*paymentapp.InvoiceResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvoiceService) ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter payment.InvoiceFilter) (*shared.Paginated[paymentapp.InvoiceResponse], error) {
	args := m.Called(ctx, orgID, leaseID, filter)
	if r := args.Get(0); r != nil {
		return r.(*shared.Paginated[paymentapp.InvoiceResponse]), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPolicyService struct {
	mock.Mock
}

func (m *mockPolicyService) policy(args mock.Arguments) (*policyapp.PolicyResponse, error) {
	if r := args.Get(0); r != nil {
		return r.(*policyapp.PolicyResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPolicyService) leasePolicy(args mock.Arguments) (*policyapp.LeasePolicyResponse, error) {
	if r := args.Get(0); r != nil {
		return r.(*policyapp.LeasePolicyResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPolicyService) GetGlobal(ctx context.Context, orgID uuid.UUID) (*policyapp.PolicyResponse, error) {
	return m.policy(m.Called(ctx, orgID))
}

func (m *mockPolicyService) UpsertGlobal(ctx context.Context, orgID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.PolicyResponse, error) {
	return m.policy(m.Called(ctx, orgID, req))
}

func (m *mockPolicyService) GetProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*policyapp.PolicyResponse, error) {
	return m.policy(m.Called(ctx, orgID, propertyID))
}

func (m *mockPolicyService) UpsertProperty(ctx context.Context, orgID, propertyID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.PolicyResponse, error) {
	return m.policy(m.Called(ctx, orgID, propertyID, req))
}

func (m *mockPolicyService) GetLeasePolicy(ctx context.Context, orgID, leaseID uuid.UUID) (*policyapp.LeasePolicyResponse, error) {
	return m.leasePolicy(m.Called(ctx, orgID, leaseID))
}

func (m *mockPolicyService) SetLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.LeasePolicyResponse, error) {
	return m.leasePolicy(m.Called(ctx, orgID, leaseID, req))
}

func (m *mockPolicyService) ClearLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID) (*policyapp.LeasePolicyResponse, error) {
	return m.leasePolicy(m.Called(ctx, orgID, leaseID))
}

type mockOutboxService struct {
	mock.Mock
}

func (m *mockOutboxService) GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (*shared.Paginated[event.OutboxEntryDTO], error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.(*shared.Paginated[event.OutboxEntryDTO]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxEntryDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxEntryDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxService) GetStats(ctx context.Context) (*event.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxStatsDTO), args.Error(1)
	}
	return nil, args.Error(1)
}
