package telemetry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/leasepay/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "leasepay-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_EnabledWithoutCollector(t *testing.T) {
	ctx := context.Background()
	// the gRPC exporter connects lazily, so construction succeeds
	for _, ratio := range []float64{0, 0.25, 1} {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
			Enabled:           true,
			CollectorEndpoint: "localhost:14317",
			SamplingRatio:     ratio,
			ServiceName:       "leasepay-test",
			Insecure:          true,
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.True(t, tp.IsEnabled())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_ = tp.Shutdown(cancelled)
	}
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op when tracing is disabled", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "leasepay-test"}, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, tp.EnableSpanProfiles())
		assert.False(t, tp.IsSpanProfilesEnabled())
	})

	t.Run("idempotent and safe for concurrent use", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
			Enabled:           true,
			CollectorEndpoint: "localhost:14317",
			SamplingRatio:     1,
			ServiceName:       "leasepay-test",
			Insecure:          true,
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_ = tp.Shutdown(cancelled)
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, tp.EnableSpanProfiles())
				_ = tp.IsSpanProfilesEnabled()
			}()
		}
		wg.Wait()
		assert.True(t, tp.IsSpanProfilesEnabled())
	})
}
