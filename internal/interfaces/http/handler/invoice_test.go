package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	leasingapp "github.com/leasepay/backend/internal/application/leasing"
	paymentapp "github.com/leasepay/backend/internal/application/payment"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInvoiceHandler_Create(t *testing.T) {
	orgID, leaseID, tenantID := uuid.New(), uuid.New(), uuid.New()
	invoices := new(mockInvoiceService)
	h := NewInvoiceHandler(invoices, new(mockLeaseService))

	invoices.On("Create", mock.Anything, orgID, mock.MatchedBy(func(in paymentapp.CreateInvoiceInput) bool {
		return in.LeaseID == leaseID &&
			in.TotalAmount.Equal(decimal.NewFromInt(1200)) &&
			len(in.Lines) == 1 &&
			*in.Lines[0].BillToTenantID == tenantID
	})).Return(&paymentapp.InvoiceResponse{ID: uuid.New(), LeaseID: leaseID, Status: "OPEN"}, nil)

	w := serve(t, testRequest{
		method: http.MethodPost,
		route:  "/invoices",
		path:   "/invoices",
		body: map[string]any{
			"lease_id":     leaseID,
			"due_date":     "2026-11-01T00:00:00Z",
			"total_amount": "1200.00",
			"lines": []map[string]any{
				{"description": "Rent share", "amount": "600.00", "bill_to_tenant_id": tenantID},
			},
		},
		principal: staffPrincipal(orgID),
	}, h.Create)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invoices.AssertExpectations(t)
}

func TestInvoiceHandler_Create_LineWithoutDescription(t *testing.T) {
	invoices := new(mockInvoiceService)
	h := NewInvoiceHandler(invoices, new(mockLeaseService))

	w := serve(t, testRequest{
		method: http.MethodPost,
		route:  "/invoices",
		path:   "/invoices",
		body: map[string]any{
			"lease_id":     uuid.New(),
			"due_date":     "2026-11-01T00:00:00Z",
			"total_amount": "100",
			"lines":        []map[string]any{{"amount": "10"}},
		},
		principal: staffPrincipal(uuid.New()),
	}, h.Create)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceHandler_Get_HiddenFromOtherTenants(t *testing.T) {
	orgID, tenantID, leaseID, invoiceID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	invoices := new(mockInvoiceService)
	leases := new(mockLeaseService)
	h := NewInvoiceHandler(invoices, leases)

	invoices.On("Get", mock.Anything, orgID, invoiceID).Return(&paymentapp.InvoiceResponse{ID: invoiceID, LeaseID: leaseID}, nil)
	leases.On("Get", mock.Anything, orgID, leaseID).Return(&leasingapp.LeaseResponse{ID: leaseID, TenantIDs: []uuid.UUID{uuid.New()}}, nil)

	w := serve(t, testRequest{
		method:    http.MethodGet,
		route:     "/invoices/:id",
		path:      "/invoices/" + invoiceID.String(),
		principal: tenantPrincipal(orgID, tenantID),
	}, h.Get)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_ListByLease(t *testing.T) {
	orgID, leaseID := uuid.New(), uuid.New()
	invoices := new(mockInvoiceService)
	leases := new(mockLeaseService)
	h := NewInvoiceHandler(invoices, leases)

	leases.On("Get", mock.Anything, orgID, leaseID).Return(&leasingapp.LeaseResponse{ID: leaseID}, nil)
	page := shared.NewPaginated([]paymentapp.InvoiceResponse{{ID: uuid.New(), Status: "OPEN"}}, 1, 1, 20)
	invoices.On("ListByLease", mock.Anything, orgID, leaseID, mock.MatchedBy(func(f payment.InvoiceFilter) bool {
		return f.OrderBy == "balance_due" && f.OrderDir == "asc" &&
			len(f.Statuses) == 2 &&
			f.Statuses[0] == payment.InvoiceStatusOpen &&
			f.Statuses[1] == payment.InvoiceStatusPartiallyPaid
	})).Return(&page, nil)

	w := serve(t, testRequest{
		method:    http.MethodGet,
		route:     "/leases/:id/invoices",
		path:      "/leases/" + leaseID.String() + "/invoices?status=open,PARTIALLY_PAID&sort_by=balance_due&sort_order=asc",
		principal: staffPrincipal(orgID),
	}, h.ListByLease)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []paymentapp.InvoiceResponse
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	invoices.AssertExpectations(t)
}

func TestInvoiceHandler_ListByLease_UnknownStatus(t *testing.T) {
	invoices := new(mockInvoiceService)
	h := NewInvoiceHandler(invoices, new(mockLeaseService))

	w := serve(t, testRequest{
		method:    http.MethodGet,
		route:     "/leases/:id/invoices",
		path:      "/leases/" + uuid.NewString() + "/invoices?status=VOID",
		principal: staffPrincipal(uuid.New()),
	}, h.ListByLease)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	invoices.AssertNotCalled(t, "ListByLease", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
