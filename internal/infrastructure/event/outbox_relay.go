package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxRelayConfig configures the outbox relay
type OutboxRelayConfig struct {
	BatchSize       int
	PollInterval    time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
}

// DefaultOutboxRelayConfig returns the default relay configuration
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		BatchSize:       100,
		PollInterval:    time.Second,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// OutboxRelay polls the outbox and publishes due entries on the bus
type OutboxRelay struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	config     OutboxRelayConfig
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxRelayConfig,
	logger *zap.Logger,
) *OutboxRelay {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxRelayConfig().BatchSize
	}
	return &OutboxRelay{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
	}
}

// Start launches the poll loop and, when a retention is set, the cleanup loop
func (r *OutboxRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.every(ctx, r.config.PollInterval, func(ctx context.Context) { r.RelayOnce(ctx) })
	if r.config.Retention > 0 && r.config.CleanupInterval > 0 {
		r.wg.Add(1)
		go r.every(ctx, r.config.CleanupInterval, r.cleanup)
	}

	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
	return nil
}

// Stop cancels the loops and waits for them, or for ctx
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// RelayOnce publishes one batch of due entries and returns how many were sent
func (r *OutboxRelay) RelayOnce(ctx context.Context) int {
	due, err := r.repo.FindDue(ctx, time.Now(), r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to load due outbox entries", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	ids := make([]uuid.UUID, len(due))
	for i, e := range due {
		ids[i] = e.ID
	}
	claimed, err := r.repo.Claim(ctx, ids)
	if err != nil {
		r.logger.Error("failed to claim outbox entries", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range claimed {
		if r.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (r *OutboxRelay) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := r.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("org_id", entry.OrgID.String()),
	)

	ev, err := r.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = r.bus.Publish(ctx, ev)
	}
	if err != nil {
		entry.MarkFailed(err.Error())
		if entry.IsDead() {
			log.Warn("outbox entry is dead",
				zap.String("aggregate_type", entry.AggregateType),
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.Int("attempts", entry.Attempts),
				zap.String("last_error", entry.LastError),
			)
		} else {
			log.Error("failed to relay outbox entry", zap.Int("attempts", entry.Attempts), zap.Error(err))
		}
		if uerr := r.repo.Update(ctx, entry); uerr != nil {
			log.Error("failed to record outbox failure", zap.Error(uerr))
		}
		return false
	}

	entry.MarkSent()
	if err := r.repo.Update(ctx, entry); err != nil {
		log.Error("failed to mark outbox entry sent", zap.Error(err))
		return false
	}
	log.Debug("outbox entry relayed")
	return true
}

func (r *OutboxRelay) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-r.config.Retention)
	deleted, err := r.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to clean up outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("cleaned up outbox", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
