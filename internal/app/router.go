package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opentill/opentill/internal/auth"
	"github.com/opentill/opentill/internal/cashsession"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/credit"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/payments"
	"github.com/opentill/opentill/internal/refunds"
	"github.com/opentill/opentill/internal/sales"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler        *auth.Handler
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	SalesHandler       *sales.Handler
	PaymentsHandler    *payments.Handler
	CreditHandler      *credit.Handler
	RefundsHandler     *refunds.Handler
	CashSessionHandler *cashsession.Handler
	LedgerHandler      *ledger.Handler
}

// NewRouter constructs the chi.Router. Everything except /healthz and
// /auth/login sits behind the bearer-token middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.AuthService))
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService))

		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
		r.Route("/credits", params.CreditHandler.MountRoutes)
		r.Route("/refunds", params.RefundsHandler.MountRoutes)
		r.Route("/cash-sessions", params.CashSessionHandler.MountRoutes)
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
	})

	return r
}
