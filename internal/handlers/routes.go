package handlers

import (
	"time"

	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

// API bundles everything the v1 routes are served from. Jobs may be nil.
type API struct {
	Auth      *Authenticator
	Invoices  InvoiceService
	Customers CustomerService
	Tickets   TicketService
	Rules     RuleService
	Reminders ReminderService
	Memos     MemoService
	Emails    EmailService
	Profiles  ProfileService
	Activity  ActivityService
	Sync      SyncService
	Jobs      JobRunner
	Health    map[string]HealthCheck

	SyncTimeout time.Duration
}

// RegisterRoutes mounts the whole v1 API on g. Health is the only
// unauthenticated route.
func RegisterRoutes(g *xhttp.Group, api API) {
	RegisterHealthRoutes(g, NewHealthHandler(api.Health))
	RegisterInvoiceRoutes(g, api.Auth, NewInvoiceHandler(api.Invoices))
	RegisterCustomerRoutes(g, api.Auth, NewCustomerHandler(api.Customers))
	RegisterTicketRoutes(g, api.Auth, NewTicketHandler(api.Tickets))
	RegisterRuleRoutes(g, api.Auth, NewRuleHandler(api.Rules))
	RegisterReminderRoutes(g, api.Auth, NewReminderHandler(api.Reminders))
	RegisterMemoRoutes(g, api.Auth, NewMemoHandler(api.Memos))
	RegisterEmailRoutes(g, api.Auth, NewEmailHandler(api.Emails))
	RegisterProfileRoutes(g, api.Auth, NewProfileHandler(api.Profiles))
	RegisterActivityRoutes(g, api.Auth, NewActivityHandler(api.Activity))
	RegisterSyncRoutes(g, api.Auth, NewSyncHandler(api.Sync, api.Jobs, api.SyncTimeout))
}
