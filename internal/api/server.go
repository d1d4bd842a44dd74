package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/ratelimit"
	"github.com/AbhigyanPie/product-impoter/internal/runner"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
	"github.com/AbhigyanPie/product-impoter/internal/store"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
	"github.com/AbhigyanPie/product-impoter/internal/webhook"
)

// Server wires HTTP handlers for upload intake, progress reads, and
// catalog/webhook administration.
type Server struct {
	cfg      config.Config
	store    *store.Store
	tracker  progress.Tracker
	runner   runner.Runner
	spool    spool.Spool
	events   *webhook.Dispatcher
	limiter  *ratelimit.TokenBucket
	validate *validator.Validate
	log      *zap.Logger
}

// New constructs the API server around the selected execution backend.
func New(cfg config.Config, st *store.Store, backend runner.Backend, events *webhook.Dispatcher, limiter *ratelimit.TokenBucket) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		tracker:  backend.Tracker,
		runner:   backend.Runner,
		spool:    backend.Spool,
		events:   events,
		limiter:  limiter,
		validate: validator.New(),
		log:      zap.L().Named("api"),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.runner.Mode()})
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", s.handleUpload)
		r.Get("/uploads/{id}", s.handleGetTask)
		r.Get("/uploads/{id}/stream", s.handleStreamTask)

		r.Get("/products", s.handleListProducts)
		r.Post("/products", s.handleCreateProduct)
		r.Delete("/products", s.handleDeleteAllProducts)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Put("/products/{id}", s.handleUpdateProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)

		r.Get("/webhooks", s.handleListWebhooks)
		r.Post("/webhooks", s.handleCreateWebhook)
		r.Get("/webhooks/events", s.handleWebhookEvents)
		r.Get("/webhooks/{id}", s.handleGetWebhook)
		r.Put("/webhooks/{id}", s.handleUpdateWebhook)
		r.Delete("/webhooks/{id}", s.handleDeleteWebhook)
		r.Post("/webhooks/{id}/test", s.handleTestWebhook)
	})
	return r
}

// validateStruct runs tag validation and flattens the first failure into
// a message suitable for an error response.
func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
