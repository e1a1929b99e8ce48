package payment

import (
	"fmt"

	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CheckPolicy validates a payment amount against the effective policy
// before any allocation is attempted. payerDue is what the payer currently
// owes on the target invoices.
//
// An amount covering the whole due balance is always accepted. Otherwise
// partial payments must be allowed and reach the minimum partial amount.
func CheckPolicy(amount, payerDue decimal.Decimal, eff policy.EffectivePolicy) error {
	if !amount.IsPositive() {
		return shared.NewInvalidInputError("payment amount must be positive")
	}
	if !payerDue.IsPositive() || amount.GreaterThanOrEqual(payerDue) {
		return nil
	}
	if !eff.AllowPartial {
		return shared.NewPolicyViolationError(fmt.Sprintf(
			"partial payments are not allowed: %s is less than the %s due",
			valueobject.FormatUSD(amount), valueobject.FormatUSD(payerDue),
		))
	}
	if amount.LessThan(eff.MinPartialUSD) {
		return shared.NewPolicyViolationError(fmt.Sprintf(
			"partial payment of %s is below the minimum of %s",
			valueobject.FormatUSD(amount), valueobject.FormatUSD(eff.MinPartialUSD),
		))
	}
	return nil
}
