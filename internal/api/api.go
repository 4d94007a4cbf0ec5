// Package api serves the category and product HTTP API.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/dal/internal/health"
	"github.com/vietddude/dal/internal/infra/storage"
)

// API holds repository dependencies for the handlers.
type API struct {
	store   storage.Store
	monitor *health.Monitor
	logger  *slog.Logger
}

// New creates the API. monitor may be nil, which leaves out the health routes.
func New(store storage.Store, monitor *health.Monitor, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{store: store, monitor: monitor, logger: logger}
}

// Router builds the chi router with every route and middleware.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.observe)

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	if a.monitor != nil {
		r.Get("/health", a.monitor.HandleHealth)
		r.Get("/health/detailed", a.monitor.HandleDetailed)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", a.listCategories)
		r.Post("/", a.createCategory)
		r.Post("/range", a.createCategories)
		r.Put("/range", a.renameCategories)
		r.Delete("/range", a.deleteAllCategories)
		r.Get("/{id}", a.getCategory)
		r.Put("/{id}", a.updateCategory)
		r.Delete("/{id}", a.deleteCategory)
		r.Get("/{id}/products", a.listCategoryProducts)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Post("/", a.createProduct)
		r.Get("/{id}", a.getProduct)
		r.Put("/{id}", a.updateProduct)
		r.Delete("/{id}", a.deleteProduct)
	})
}
