package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newRecordingMetrics(t *testing.T, outbox telemetry.OutboxStatsProvider) (*telemetry.BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:       provider.Meter("test"),
		Logger:      zap.NewNop(),
		OutboxStats: outbox,
	})
	require.NoError(t, err)
	return bm, reader
}

// sums collects every int64 sum and gauge, added up across attribute sets
func sums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, bm)
}

func TestNewBusinessMetrics_NoopMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		bm.RecordPayment(context.Background(), uuid.New(), "ACH", telemetry.OutcomeAllocated)
	})
}

func TestBusinessMetrics_NilReceiverIsNoop(t *testing.T) {
	var bm *telemetry.BusinessMetrics
	assert.NotPanics(t, func() {
		bm.RecordPayment(context.Background(), uuid.New(), "ACH", telemetry.OutcomeAllocated)
		bm.RecordAllocation(context.Background(), uuid.New(), "final", decimal.NewFromInt(1), decimal.Zero, time.Millisecond)
		bm.RecordInvoiceStatusChange(context.Background(), uuid.New(), "PAID")
		bm.StartPeriodicCollection(context.Background(), time.Second)
		bm.Stop()
	})
}

func TestBusinessMetrics_RecordPayment(t *testing.T) {
	bm, reader := newRecordingMetrics(t, nil)
	ctx := context.Background()
	org := uuid.New()

	bm.RecordPayment(ctx, org, "ACH", telemetry.OutcomeAllocated)
	bm.RecordPayment(ctx, org, "ACH", telemetry.OutcomeReplayed)
	bm.RecordPayment(ctx, org, "CARD", telemetry.OutcomePolicyViolation)

	got := sums(t, reader)
	assert.Equal(t, int64(3), got["leasepay_payments_total"])
	assert.Equal(t, int64(1), got["leasepay_policy_violations_total"])
}

func TestBusinessMetrics_RecordAllocation(t *testing.T) {
	bm, reader := newRecordingMetrics(t, nil)
	ctx := context.Background()
	org := uuid.New()

	bm.RecordAllocation(ctx, org, "per_allocation", decimal.RequireFromString("100.25"), decimal.Zero, 20*time.Millisecond)
	bm.RecordAllocation(ctx, org, "final", decimal.RequireFromString("50"), decimal.RequireFromString("12.34"), 5*time.Millisecond)

	got := sums(t, reader)
	assert.Equal(t, int64(15025), got["leasepay_allocated_amount_cents_total"])
	assert.Equal(t, int64(1234), got["leasepay_unallocated_amount_cents_total"])
	assert.Equal(t, int64(1), got["leasepay_overpayments_total"])
	assert.Equal(t, int64(2), got["leasepay_allocation_duration_seconds"])
}

func TestBusinessMetrics_RecordInvoiceStatusChange(t *testing.T) {
	bm, reader := newRecordingMetrics(t, nil)
	bm.RecordInvoiceStatusChange(context.Background(), uuid.New(), "PAID")
	bm.RecordInvoiceStatusChange(context.Background(), uuid.New(), "PARTIALLY_PAID")

	assert.Equal(t, int64(2), sums(t, reader)["leasepay_invoice_status_changes_total"])
}

type stubOutboxStats struct {
	calls  atomic.Int32
	counts map[shared.OutboxStatus]int64
	err    error
}

func (s *stubOutboxStats) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	s.calls.Add(1)
	return s.counts, s.err
}

func TestBusinessMetrics_PeriodicOutboxCollection(t *testing.T) {
	stats := &stubOutboxStats{counts: map[shared.OutboxStatus]int64{
		shared.OutboxStatusPending: 4,
		shared.OutboxStatusFailed:  1,
		shared.OutboxStatusSent:    100,
	}}
	bm, reader := newRecordingMetrics(t, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return stats.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	bm.Stop()
	bm.Stop()

	assert.Equal(t, int64(5), sums(t, reader)["leasepay_outbox_entries"])
}

func TestBusinessMetrics_PeriodicCollectionSurvivesErrors(t *testing.T) {
	stats := &stubOutboxStats{err: errors.New("db down")}
	bm, _ := newRecordingMetrics(t, stats)

	ctx, cancel := context.WithCancel(context.Background())
	bm.StartPeriodicCollection(ctx, 5*time.Millisecond)
	require.Eventually(t, func() bool { return stats.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}
