package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/store"
)

type productRequest struct {
	SKU         string  `json:"sku" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	Active      *bool   `json:"active"`
}

type productUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
	Active      *bool    `json:"active"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListProductsParams{
		Search:   q.Get("search"),
		Page:     intQuery(q, "page", 1),
		PageSize: intQuery(q, "page_size", 20),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		params.Active = &active
	}

	page, err := s.store.ListProducts(r.Context(), params)
	if err != nil {
		s.log.Error("list products", zap.Error(err))
		http.Error(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	p, err := s.store.GetProduct(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get product", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to load product", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.validateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := s.store.CreateProduct(r.Context(), models.Product{
		SKU:         req.SKU,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Quantity:    req.Quantity,
		Active:      active,
	})
	if errors.Is(err, store.ErrDuplicateSKU) {
		http.Error(w, "sku already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("create product", zap.String("sku", req.SKU), zap.Error(err))
		http.Error(w, "failed to create product", http.StatusInternalServerError)
		return
	}

	s.events.Publish(models.EventProductCreated, productPayload(p))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	var req productUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.validateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.store.UpdateProduct(r.Context(), id, store.UpdateProductParams{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Active:      req.Active,
	})
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("update product", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to update product", http.StatusInternalServerError)
		return
	}

	s.events.Publish(models.EventProductUpdated, productPayload(p))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	p, err := s.store.DeleteProduct(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("delete product", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to delete product", http.StatusInternalServerError)
		return
	}

	s.events.Publish(models.EventProductDeleted, productPayload(p))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "sku": p.SKU})
}

// handleDeleteAllProducts clears the catalog. The confirm guard keeps a
// stray DELETE from wiping production data.
func (s *Server) handleDeleteAllProducts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "pass confirm=true to delete the entire catalog", http.StatusBadRequest)
		return
	}
	count, err := s.store.DeleteAllProducts(r.Context())
	if err != nil {
		s.log.Error("delete all products", zap.Error(err))
		http.Error(w, "failed to delete products", http.StatusInternalServerError)
		return
	}

	s.log.Warn("catalog cleared", zap.Int64("count", count))
	s.events.Publish(models.EventBulkDeleted, map[string]any{"count": count})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

func productPayload(p models.Product) map[string]any {
	return map[string]any{
		"id":       p.ID,
		"sku":      p.SKU,
		"name":     p.Name,
		"price":    p.Price,
		"quantity": p.Quantity,
		"active":   p.Active,
	}
}

func intQuery(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
