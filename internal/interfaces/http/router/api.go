package router

import (
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/interfaces/http/handler"
	"github.com/leasepay/backend/internal/interfaces/http/middleware"
)

// Handlers are the handlers mounted under the versioned API prefix
type Handlers struct {
	Payments *handler.PaymentHandler
	Leases   *handler.LeaseHandler
	Invoices *handler.InvoiceHandler
	Policies *handler.PolicyHandler
	Auth     *handler.AuthHandler
	Outbox   *handler.OutboxHandler
	System   *handler.SystemHandler
}

// APIGroups builds the leasepay route groups. Every route states the
// capability it requires; the JWT middleware runs before any of them.
func APIGroups(h Handlers) []*DomainGroup {
	can := middleware.RequireCapability

	leases := NewDomainGroup("leases", "/leases").
		POST("", can(identity.CapLeasesManage), h.Leases.Create).
		GET("/:id", can(identity.CapLeasesRead), h.Leases.Get).
		POST("/:id/end", can(identity.CapLeasesManage), h.Leases.End).
		GET("/:id/activity", can(identity.CapLeasesRead), h.Leases.ListActivity).
		GET("/:id/invoices", can(identity.CapInvoicesRead), h.Invoices.ListByLease).
		GET("/:id/balance", can(identity.CapInvoicesRead), h.Payments.GetPayerBalance).
		GET("/:id/policy", can(identity.CapPolicyRead), h.Policies.GetLeasePolicy).
		PUT("/:id/policy", can(identity.CapPolicyOverride), h.Policies.SetLeaseOverride).
		DELETE("/:id/policy", can(identity.CapPolicyOverride), h.Policies.ClearLeaseOverride)

	policies := NewDomainGroup("policies", "/policies").
		GET("/global", can(identity.CapPolicyRead), h.Policies.GetGlobal).
		PUT("/global", can(identity.CapPolicyManage), h.Policies.UpsertGlobal)

	properties := NewDomainGroup("properties", "/properties").
		GET("/:id/policy", can(identity.CapPolicyRead), h.Policies.GetProperty).
		PUT("/:id/policy", can(identity.CapPolicyManage), h.Policies.UpsertProperty)

	invoices := NewDomainGroup("invoices", "/invoices").
		POST("", can(identity.CapInvoicesCreate), h.Invoices.Create).
		GET("/:id", can(identity.CapInvoicesRead), h.Invoices.Get)

	payments := NewDomainGroup("payments", "/payments").
		POST("", can(identity.CapPaymentsRecord), h.Payments.RecordPayment).
		POST("/preview", can(identity.CapPaymentsRecord), h.Payments.PreviewAllocation).
		GET("/:id", can(identity.CapPaymentsRead), h.Payments.GetPayment)

	authGroup := NewDomainGroup("auth", "/auth").
		GET("/capabilities", h.Auth.Capabilities).
		POST("/logout", h.Auth.Logout)

	outbox := NewDomainGroup("outbox", "/outbox").
		Use(can(identity.CapSystemOutbox)).
		GET("/stats", h.Outbox.GetStats).
		GET("/dead", h.Outbox.GetDeadLetterEntries).
		POST("/dead/retry", h.Outbox.RetryAllDeadEntries).
		GET("/entries/:id", h.Outbox.GetEntry).
		POST("/entries/:id/retry", h.Outbox.RetryDeadEntry)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{leases, policies, properties, invoices, payments, authGroup, outbox, system}
}

// RegisterAPI registers every API group on r
func RegisterAPI(r *Router, h Handlers) *Router {
	for _, g := range APIGroups(h) {
		r.Register(g)
	}
	return r
}
