package persistence

import (
	"strings"

	"github.com/leasepay/backend/internal/domain/payment"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoice listings
var InvoiceSortFields = map[string]bool{
	"due_date":     true,
	"created_at":   true,
	"total_amount": true,
	"balance_due":  true,
	"status":       true,
}

// invoiceListOrder returns the ORDER BY clause for an invoice listing.
// Without a requested field invoices come in allocation order; a requested
// field is tie-broken by allocation order so pages stay stable.
func invoiceListOrder(filter payment.InvoiceFilter) string {
	field := ValidateSortField(filter.OrderBy, InvoiceSortFields, "")
	if field == "" {
		return allocationOrder
	}
	return field + " " + ValidateSortOrder(filter.OrderDir) + ", " + allocationOrder
}
