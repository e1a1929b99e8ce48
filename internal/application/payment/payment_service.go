// Package payment records rent payments and runs their allocation pass.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	policyapp "github.com/leasepay/backend/internal/application/policy"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/domain/shared/valueobject"
	"github.com/leasepay/backend/internal/infrastructure/logger"
	"github.com/leasepay/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Lock defaults used when SetLeaseLocker is given zero durations
const (
	DefaultLeaseLockTTL  = 30 * time.Second
	DefaultLeaseLockWait = 5 * time.Second
)

// errIdempotencyRace marks a pass that lost to a concurrent request with the
// same idempotency key, seen either under the lease lock or at insert
var errIdempotencyRace = errors.New("idempotency key claimed concurrently")

// PaymentService records payments and allocates them to lease invoices
type PaymentService struct {
	txScope     TransactionScope
	leaseRepo   leasing.LeaseRepository
	policyRepo  policy.PolicyRepository
	invoiceRepo payment.InvoiceRepository
	paymentRepo payment.PaymentRepository
	allocator   *payment.Allocator
	logger      *zap.Logger

	locker   LeaseLocker
	lockTTL  time.Duration
	lockWait time.Duration
	metrics  *telemetry.BusinessMetrics
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. The repositories are
// used for lock-free reads; writes go through txScope.
func NewPaymentService(
	txScope TransactionScope,
	leaseRepo leasing.LeaseRepository,
	policyRepo policy.PolicyRepository,
	invoiceRepo payment.InvoiceRepository,
	paymentRepo payment.PaymentRepository,
	allocator *payment.Allocator,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		txScope:     txScope,
		leaseRepo:   leaseRepo,
		policyRepo:  policyRepo,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		allocator:   allocator,
		logger:      logger,
		now:         time.Now,
	}
}

// SetLeaseLocker serializes allocation passes per lease across processes.
// Without a locker the row locks of the transaction serialize them.
func (s *PaymentService) SetLeaseLocker(locker LeaseLocker, ttl, wait time.Duration) {
	if ttl <= 0 {
		ttl = DefaultLeaseLockTTL
	}
	if wait <= 0 {
		wait = DefaultLeaseLockWait
	}
	s.locker = locker
	s.lockTTL = ttl
	s.lockWait = wait
}

// SetMetrics sets the business metrics recorder (optional)
func (s *PaymentService) SetMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// RecordPayment records a captured payment and allocates it in one
// transaction. A payment carrying an idempotency key that was already used
// returns the stored payment with Replayed set.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, in.OrgID.String(),
		telemetry.SpanAttrLeaseID, in.LeaseID.String(),
		telemetry.SpanAttrTenantID, in.PayerTenantID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
		telemetry.SpanAttrGateway, in.Gateway,
	)

	start := s.now()
	var result *RecordPaymentResult
	var opErr error
	labels := telemetry.OperationLabels("record_payment", in.OrgID.String(), map[string]string{
		telemetry.ProfilingLabelGateway: in.Gateway,
	})
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		result, opErr = s.recordPayment(c, in)
	})

	s.metrics.RecordPayment(ctx, in.OrgID, in.Gateway, outcomeOf(result, opErr))
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, result.Payment.ID.String(),
		telemetry.SpanAttrReplayed, result.Replayed,
	)
	if !result.Replayed {
		s.metrics.RecordAllocation(ctx, in.OrgID, s.allocator.RoundingMode().String(),
			result.Payment.AllocatedAmount, result.Payment.UnallocatedAmount, s.now().Sub(start))
		for _, u := range result.UpdatedInvoices {
			if u.Status != u.PreviousStatus {
				s.metrics.RecordInvoiceStatusChange(ctx, in.OrgID, u.Status)
			}
		}
	}
	telemetry.SetOK(span)
	return result, nil
}

func outcomeOf(result *RecordPaymentResult, err error) string {
	switch {
	case err == nil && result.Replayed:
		return telemetry.OutcomeReplayed
	case err == nil:
		return telemetry.OutcomeAllocated
	case errors.Is(err, shared.ErrPolicyViolation):
		return telemetry.OutcomePolicyViolation
	case errors.Is(err, shared.ErrLeaseBusy):
		return telemetry.OutcomeLeaseBusy
	}
	return telemetry.OutcomeFailed
}

func (s *PaymentService) recordPayment(ctx context.Context, in RecordPaymentInput) (*RecordPaymentResult, error) {
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("lease_id", in.LeaseID.String()),
		zap.String("tenant_id", in.PayerTenantID.String()),
	)

	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := in.validate(); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		existing, err := s.paymentRepo.FindByIdempotencyKey(ctx, in.OrgID, in.IdempotencyKey)
		switch {
		case err == nil:
			return s.replay(log, existing, in)
		case !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, in.OrgID, in.LeaseID, s.lockTTL, s.lockWait)
		if err != nil {
			log.Warn("Lease lock not acquired", zap.Error(err))
			return nil, err
		}
		defer release()
	}

	var (
		recorded *payment.Payment
		outcome  *payment.AllocationResult
		eff      policy.EffectivePolicy
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		recorded, outcome, eff, err = s.allocateInTx(ctx, repos, in)
		return err
	})
	if errors.Is(err, errIdempotencyRace) {
		existing, findErr := s.paymentRepo.FindByIdempotencyKey(ctx, in.OrgID, in.IdempotencyKey)
		if findErr != nil {
			return nil, findErr
		}
		return s.replay(log, existing, in)
	}
	if err != nil {
		if errors.Is(err, shared.ErrPolicyViolation) {
			log.Info("Payment rejected by policy", zap.String("amount", in.Amount.String()), zap.Error(err))
		}
		return nil, err
	}

	fields := []zap.Field{
		zap.String("payment_id", recorded.ID.String()),
		zap.String("amount", recorded.Amount.String()),
		zap.String("allocated", recorded.AllocatedAmount.String()),
		zap.Int("allocations", len(outcome.Allocations)),
	}
	if outcome.IsOverpayment() {
		log.Warn("Payment exceeds the amount due, remainder left unallocated",
			append(fields, zap.String("unallocated", outcome.UnallocatedRemainder.String()))...)
	} else {
		log.Info("Payment recorded and allocated", fields...)
	}

	effResp := policyapp.ToEffectivePolicyResponse(eff)
	return &RecordPaymentResult{
		Payment:         ToPaymentResponse(recorded),
		UpdatedInvoices: ToInvoiceUpdateResponses(outcome.UpdatedInvoices),
		Policy:          &effResp,
	}, nil
}

// allocateInTx is one allocation pass. Every read that feeds the pass holds
// a row lock, so two passes on one lease never interleave. The idempotency
// key is checked again once the lease row is locked.
func (s *PaymentService) allocateInTx(
	ctx context.Context,
	repos TransactionalRepositories,
	in RecordPaymentInput,
) (*payment.Payment, *payment.AllocationResult, policy.EffectivePolicy, error) {
	var eff policy.EffectivePolicy

	lease, err := repos.LeaseRepo().FindByIDForUpdate(ctx, in.OrgID, in.LeaseID)
	if err != nil {
		return nil, nil, eff, err
	}
	if in.IdempotencyKey != "" {
		_, err := repos.PaymentRepo().FindByIdempotencyKey(ctx, in.OrgID, in.IdempotencyKey)
		switch {
		case err == nil:
			return nil, nil, eff, errIdempotencyRace
		case !errors.Is(err, shared.ErrNotFound):
			return nil, nil, eff, err
		}
	}
	if !lease.HasTenant(in.PayerTenantID) {
		return nil, nil, eff, shared.NewInvalidInputError("payer is not a tenant of this lease")
	}

	eff, err = policyapp.ResolveForLease(ctx, repos.PolicyRepo(), lease)
	if err != nil {
		return nil, nil, eff, err
	}

	invoices, err := s.loadTargets(ctx, repos.InvoiceRepo(), lease, in.InvoiceID, true)
	if err != nil {
		return nil, nil, eff, err
	}
	payerDue := payment.PayerDueAcross(payment.SelectTargets(invoices, eff.AllowSplit), in.PayerTenantID)
	if err := payment.CheckPolicy(in.Amount, payerDue, eff); err != nil {
		return nil, nil, eff, err
	}

	receivedAt := s.now()
	if in.ReceivedAt != nil {
		receivedAt = *in.ReceivedAt
	}
	p, err := payment.NewPayment(in.OrgID, lease.ID, lease.PropertyID, in.PayerTenantID,
		in.Amount, payment.Gateway(in.Gateway), in.IdempotencyKey, in.Reference, receivedAt)
	if err != nil {
		return nil, nil, eff, err
	}
	if err := repos.PaymentRepo().Create(ctx, p); err != nil {
		if p.IdempotencyKey != nil && errors.Is(err, shared.ErrAlreadyExists) {
			return nil, nil, eff, errIdempotencyRace
		}
		return nil, nil, eff, err
	}

	result, err := s.allocator.Allocate(payment.AllocationRequest{
		OrgID:         in.OrgID,
		PaymentID:     p.ID,
		PayerTenantID: in.PayerTenantID,
		Amount:        in.Amount,
		AllowSplit:    eff.AllowSplit,
	}, invoices)
	if err != nil {
		return nil, nil, eff, err
	}

	if len(result.Allocations) > 0 {
		if err := repos.AllocationRepo().CreateBatch(ctx, result.Allocations); err != nil {
			return nil, nil, eff, err
		}
	}

	byID := make(map[uuid.UUID]*payment.Invoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}
	events := make([]shared.DomainEvent, 0, len(result.UpdatedInvoices)+2)
	for _, u := range result.UpdatedInvoices {
		inv := byID[u.InvoiceID]
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return nil, nil, eff, err
		}
		events = append(events, inv.GetDomainEvents()...)
		inv.ClearDomainEvents()
	}

	if err := p.CompleteAllocation(result); err != nil {
		return nil, nil, eff, err
	}
	if err := repos.PaymentRepo().SaveWithLock(ctx, p); err != nil {
		return nil, nil, eff, err
	}
	events = append(p.GetDomainEvents(), events...)
	p.ClearDomainEvents()

	if err := repos.Events().Publish(ctx, events...); err != nil {
		return nil, nil, eff, err
	}
	return p, result, eff, nil
}

// loadTargets returns the candidate invoices of a pass: the lease's
// outstanding invoices, or the one requested invoice
func (s *PaymentService) loadTargets(
	ctx context.Context,
	repo payment.InvoiceRepository,
	lease *leasing.Lease,
	invoiceID *uuid.UUID,
	forUpdate bool,
) ([]*payment.Invoice, error) {
	if invoiceID == nil {
		if forUpdate {
			return repo.FindOutstandingByLeaseForUpdate(ctx, lease.OrgID, lease.ID)
		}
		return repo.FindOutstandingByLease(ctx, lease.OrgID, lease.ID)
	}

	find := repo.FindByID
	if forUpdate {
		find = repo.FindByIDForUpdate
	}
	inv, err := find(ctx, lease.OrgID, *invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.LeaseID != lease.ID {
		return nil, shared.ErrNotFound
	}
	if !inv.Status.IsOutstanding() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "invoice is already paid")
	}
	return []*payment.Invoice{inv}, nil
}

// replay returns a stored payment for a reused idempotency key. A key
// reused for a different lease, payer or amount is rejected.
func (s *PaymentService) replay(log *logger.ContextLogger, existing *payment.Payment, in RecordPaymentInput) (*RecordPaymentResult, error) {
	if existing.LeaseID != in.LeaseID || existing.TenantID != in.PayerTenantID || !existing.Amount.Equal(in.Amount) {
		log.Warn("Idempotency key reused for a different payment",
			zap.String("payment_id", existing.ID.String()))
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			"idempotency key was already used for a different payment")
	}
	log.Info("Idempotent replay of payment", zap.String("payment_id", existing.ID.String()))
	return &RecordPaymentResult{
		Payment:         ToPaymentResponse(existing),
		UpdatedInvoices: []InvoiceUpdateResponse{},
		Replayed:        true,
	}, nil
}

// PreviewAllocation computes what RecordPayment would do for the input
// without locking or writing anything
func (s *PaymentService) PreviewAllocation(ctx context.Context, in RecordPaymentInput) (*PreviewResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "preview")
	defer span.End()

	if err := in.validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lease, err := s.leaseRepo.FindByID(ctx, in.OrgID, in.LeaseID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !lease.HasTenant(in.PayerTenantID) {
		return nil, shared.NewInvalidInputError("payer is not a tenant of this lease")
	}
	eff, err := policyapp.ResolveForLease(ctx, s.policyRepo, lease)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoices, err := s.loadTargets(ctx, s.invoiceRepo, lease, in.InvoiceID, false)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payerDue := payment.PayerDueAcross(payment.SelectTargets(invoices, eff.AllowSplit), in.PayerTenantID)
	if err := payment.CheckPolicy(in.Amount, payerDue, eff); err != nil {
		return nil, err
	}

	result, err := s.allocator.Allocate(payment.AllocationRequest{
		OrgID:         in.OrgID,
		PaymentID:     uuid.New(),
		PayerTenantID: in.PayerTenantID,
		Amount:        in.Amount,
		AllowSplit:    eff.AllowSplit,
	}, invoices)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	return &PreviewResponse{
		LeaseID:              lease.ID,
		TenantID:             in.PayerTenantID,
		Amount:               in.Amount,
		PayerDue:             payerDue,
		Allocations:          ToAllocationResponses(result.Allocations),
		UpdatedInvoices:      ToInvoiceUpdateResponses(result.UpdatedInvoices),
		AllocatedAmount:      result.AllocatedAmount,
		UnallocatedRemainder: result.UnallocatedRemainder,
		RoundingMode:         result.RoundingMode.String(),
		Policy:               policyapp.ToEffectivePolicyResponse(eff),
	}, nil
}

// GetPayment returns a payment with its allocations
func (s *PaymentService) GetPayment(ctx context.Context, orgID, paymentID uuid.UUID) (*PaymentResponse, error) {
	p, err := s.paymentRepo.FindByID(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// GetPayerBalance returns what a tenant currently owes on a lease: per
// invoice, their billed-line dues if they have billed lines on it, the
// invoice balance otherwise
func (s *PaymentService) GetPayerBalance(ctx context.Context, orgID, leaseID, tenantID uuid.UUID) (*PayerBalanceResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	if !lease.HasTenant(tenantID) {
		return nil, shared.ErrNotFound
	}
	invoices, err := s.invoiceRepo.FindOutstandingByLease(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}

	ordered := payment.OrderForAllocation(invoices)
	resp := &PayerBalanceResponse{
		LeaseID:  leaseID,
		TenantID: tenantID,
		PayerDue: payment.PayerDueAcross(ordered, tenantID),
		Invoices: make([]InvoiceDueResponse, len(ordered)),
	}
	resp.Formatted = valueobject.FormatUSD(resp.PayerDue)
	for i, inv := range ordered {
		resp.Invoices[i] = InvoiceDueResponse{
			InvoiceID:  inv.ID,
			DueDate:    inv.DueDate,
			Status:     inv.Status.String(),
			BalanceDue: inv.BalanceDue,
			PayerDue:   inv.PayerDue(tenantID),
			HasLines:   inv.HasLinesFor(tenantID),
		}
	}
	return resp, nil
}
