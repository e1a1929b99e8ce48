package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned by NewBusinessMetrics without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Payment outcomes used as the outcome attribute
const (
	OutcomeAllocated       = "allocated"
	OutcomeReplayed        = "replayed"
	OutcomePolicyViolation = "policy_violation"
	OutcomeLeaseBusy       = "lease_busy"
	OutcomeFailed          = "failed"
)

// OutboxStatsProvider reports outbox backlog per status
type OutboxStatsProvider interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// BusinessMetrics records the payment activity of the service. A nil
// *BusinessMetrics records nothing.
type BusinessMetrics struct {
	logger *zap.Logger

	paymentsTotal        *Counter
	allocatedCents       *Counter
	unallocatedCents     *Counter
	overpaymentsTotal    *Counter
	policyViolations     *Counter
	invoiceStatusChanges *Counter
	allocationDuration   *Histogram
	outboxBacklog        *Gauge

	outboxStats OutboxStatsProvider
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// BusinessMetricsConfig configures BusinessMetrics
type BusinessMetricsConfig struct {
	Meter       metric.Meter
	Logger      *zap.Logger
	OutboxStats OutboxStatsProvider
}

// NewBusinessMetrics creates the payment instruments on the meter
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		logger:      logger,
		outboxStats: cfg.OutboxStats,
		stopChan:    make(chan struct{}),
	}

	counters := []struct {
		dst               **Counter
		name, desc, units string
	}{
		{&bm.paymentsTotal, "leasepay_payments_total", "Payments submitted, by outcome", "{payments}"},
		{&bm.allocatedCents, "leasepay_allocated_amount_cents_total", "Amount allocated to invoices", "{cents}"},
		{&bm.unallocatedCents, "leasepay_unallocated_amount_cents_total", "Amount left unallocated by overpayments", "{cents}"},
		{&bm.overpaymentsTotal, "leasepay_overpayments_total", "Payments with an unallocated remainder", "{payments}"},
		{&bm.policyViolations, "leasepay_policy_violations_total", "Payments rejected by the payment policy", "{payments}"},
		{&bm.invoiceStatusChanges, "leasepay_invoice_status_changes_total", "Invoice status transitions caused by allocations", "{invoices}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.units)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	bm.allocationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "leasepay_allocation_duration_seconds",
		Description: "Time to record and allocate one payment, lock wait included",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	bm.outboxBacklog, err = NewGauge(cfg.Meter, "leasepay_outbox_entries", "Outbox entries by status", "{entries}")
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// toCents converts a USD amount to whole cents
func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// RecordPayment counts one submitted payment by outcome
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, orgID uuid.UUID, gateway, outcome string) {
	if bm == nil {
		return
	}
	bm.paymentsTotal.Inc(ctx,
		AttrOrgID.String(orgID.String()),
		AttrGateway.String(gateway),
		AttrOutcome.String(outcome),
	)
	if outcome == OutcomePolicyViolation {
		bm.policyViolations.Inc(ctx, AttrOrgID.String(orgID.String()))
	}
}

// RecordAllocation records the amounts of one completed allocation pass
func (bm *BusinessMetrics) RecordAllocation(ctx context.Context, orgID uuid.UUID, roundingMode string, allocated, remainder decimal.Decimal, duration time.Duration) {
	if bm == nil {
		return
	}
	org := AttrOrgID.String(orgID.String())
	bm.allocatedCents.Add(ctx, toCents(allocated), org)
	bm.allocationDuration.RecordDuration(ctx, duration, AttrRoundingMode.String(roundingMode))
	if remainder.IsPositive() {
		bm.overpaymentsTotal.Inc(ctx, org)
		bm.unallocatedCents.Add(ctx, toCents(remainder), org)
	}
}

// RecordInvoiceStatusChange counts an invoice moving to status
func (bm *BusinessMetrics) RecordInvoiceStatusChange(ctx context.Context, orgID uuid.UUID, status string) {
	if bm == nil {
		return
	}
	bm.invoiceStatusChanges.Inc(ctx,
		AttrOrgID.String(orgID.String()),
		AttrInvoiceStatus.String(status),
	)
}

// StartPeriodicCollection samples the outbox backlog every interval until
// Stop is called or ctx ends. It does nothing without an OutboxStatsProvider.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if bm == nil || bm.outboxStats == nil {
		return
	}
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectOutboxBacklog(ctx)
	for {
		select {
		case <-bm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectOutboxBacklog(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectOutboxBacklog(ctx context.Context) {
	counts, err := bm.outboxStats.CountByStatus(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count outbox entries", zap.Error(err))
		return
	}
	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		bm.outboxBacklog.Record(ctx, counts[status], AttrOutboxStatus.String(string(status)))
	}
}

// Stop ends periodic collection
func (bm *BusinessMetrics) Stop() {
	if bm == nil {
		return
	}
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}
