/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Request log: zap line per request (method, path, status, duration)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/parties/*         Parties, balances, previous balance, history
  /api/statements/*      Customer and supplier ledger reports
  /api/invoices, /api/sales, /api/purchases, /api/*-returns, /api/payments
  /api/products/*        Stock
  /api/reconciliation/*  Audit runs
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  Session headers are trusted as sent. Put the service behind an
  authenticating proxy before exposing it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderUserID, HeaderUserRole},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Party routes
		r.Route("/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Post("/", h.CreateParty)
			r.Route("/{kind}/{name}", func(r chi.Router) {
				r.Get("/", h.GetParty)
				r.Get("/balance", h.GetBalance)
				r.Get("/previous-balance", h.GetPreviousBalance)
				r.Get("/invoice-details", h.GetInvoiceDetails)
				r.Get("/history", h.GetHistory)
				r.Get("/invoices", h.ListInvoices)
				r.Get("/verify", h.VerifyParty)
			})
		})

		// Report routes
		r.Get("/statements/{kind}/{name}", h.GetStatement)
		r.Get("/verify", h.VerifyAll)

		// Workflow routes
		r.Post("/invoices", h.RecordInvoice)
		r.Post("/sales", h.RecordSale)
		r.Post("/purchases", h.RecordPurchase)
		r.Post("/sales-returns", h.RecordSalesReturn)
		r.Post("/purchase-returns", h.RecordPurchaseReturn)
		r.Post("/payments", h.RecordPayment)

		// Inventory routes
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.SaveProduct)
			r.Get("/{id}", h.GetProduct)
		})

		// Reconciliation routes
		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/runs", h.ListReconciliationRuns)
			r.Post("/run", h.TriggerReconciliation)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Party Balance Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Party Balance Ledger API</h1>
<ul>
<li><a href="/api/parties">/api/parties</a> - List customers and suppliers</li>
<li><a href="/api/verify">/api/verify</a> - Replay every party's ledger</li>
<li><a href="/api/reconciliation/runs">/api/reconciliation/runs</a> - Audit runs</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}

// requestLogger writes one zap line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if ww.Status() >= http.StatusInternalServerError {
					log.Error("request", fields...)
					return
				}
				log.Info("request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
