package api

import (
	"lending-backoffice/internal/api/handler"
	mw "lending-backoffice/internal/api/middleware"
	"lending-backoffice/internal/config"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/domain/tenant"
	"log/slog"
	"net/http"
	"time"

	_ "lending-backoffice/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Loans     loan.LoanService
	Customers customer.CustomerService
	Tenants   tenant.TenantService
	Reports   handler.CSVExporter
}

func SetupRouter(svc Services, limiter *mw.RateLimiterMiddleware, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, limiter, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Post("/auth/token", authHandler.GenerateBearerToken)

	router.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		setupLoanRoutes(r, svc.Loans, logger)
		setupCustomerRoutes(r, svc.Customers, svc.Loans, logger)
		setupTenantRoutes(r, svc.Tenants, logger)
		setupReportRoutes(r, svc.Reports, logger)
	})

	return router
}

func setupMiddleware(router *chi.Mux, limiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	if limiter != nil {
		router.Use(limiter.Middleware)
	}
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupLoanRoutes(r chi.Router, svc loan.LoanService, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc, logger)

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.CreateLoan)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Get("/repayment", h.GetRepayment)
			r.Get("/collections", h.ListCollections)
			r.Post("/collections", h.RecordCollection)
			r.Post("/waiver-quote", h.QuoteWaiver)
		})
	})
}

func setupCustomerRoutes(r chi.Router, svc customer.CustomerService, loans loan.LoanService, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, loans, logger)

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.CreateCustomer)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Get("/loan", h.GetCustomerLoan)
		})
	})
}

func setupTenantRoutes(r chi.Router, svc tenant.TenantService, logger *slog.Logger) {
	h := handler.NewTenantHandler(svc, logger)

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/", h.GetTenant)
		r.Put("/penalty-rate", h.UpdatePenaltyRate)
	})
}

func setupReportRoutes(r chi.Router, exporter handler.CSVExporter, logger *slog.Logger) {
	h := handler.NewReportHandler(exporter, logger)
	r.Get("/reports/credit-bureau", h.CreditBureau)
}
