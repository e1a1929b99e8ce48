package leasing

import (
	"context"
	"fmt"

	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// ActivityLogHandler writes payment and invoice events to the activity log
// of the lease they belong to
type ActivityLogHandler struct {
	repo   leasing.ActivityRepository
	logger *zap.Logger
}

// NewActivityLogHandler creates a new ActivityLogHandler
func NewActivityLogHandler(repo leasing.ActivityRepository, logger *zap.Logger) *ActivityLogHandler {
	return &ActivityLogHandler{repo: repo, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ActivityLogHandler) EventTypes() []string {
	return []string{
		payment.EventTypePaymentRecorded,
		payment.EventTypePaymentAllocated,
		payment.EventTypeInvoiceStatusChanged,
	}
}

// Handle appends one activity entry for the event
func (h *ActivityLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var activity *leasing.Activity
	switch e := event.(type) {
	case *payment.PaymentRecordedEvent:
		activity = leasing.NewActivity(e.LeaseID, e, fmt.Sprintf(
			"Payment of %s recorded via %s", valueobject.FormatUSD(e.Amount), e.Gateway))
	case *payment.PaymentAllocatedEvent:
		summary := fmt.Sprintf("Payment allocated %s across %d invoice(s)",
			valueobject.FormatUSD(e.AllocatedAmount), len(e.InvoiceIDs))
		if e.UnallocatedRemainder.IsPositive() {
			summary += fmt.Sprintf(", %s left unallocated", valueobject.FormatUSD(e.UnallocatedRemainder))
		}
		activity = leasing.NewActivity(e.LeaseID, e, summary)
	case *payment.InvoiceStatusChangedEvent:
		activity = leasing.NewActivity(e.LeaseID, e, fmt.Sprintf(
			"Invoice moved from %s to %s, balance due %s", e.FromStatus, e.ToStatus, valueobject.FormatUSD(e.BalanceDue)))
	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if err := h.repo.Append(ctx, activity); err != nil {
		h.logger.Error("failed to append lease activity",
			zap.String("event_id", event.EventID().String()),
			zap.String("lease_id", activity.LeaseID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to append lease activity: %w", err)
	}
	return nil
}

var _ shared.EventHandler = (*ActivityLogHandler)(nil)
