package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/store"
)

type webhookRequest struct {
	URL     string   `json:"url" validate:"required,url"`
	Events  []string `json:"events" validate:"required,min=1"`
	Enabled *bool    `json:"enabled"`
	Secret  string   `json:"secret"`
}

type webhookUpdateRequest struct {
	URL     *string   `json:"url" validate:"omitempty,url"`
	Events  *[]string `json:"events" validate:"omitempty,min=1"`
	Enabled *bool     `json:"enabled"`
	Secret  *string   `json:"secret"`
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.store.ListWebhooks(r.Context())
	if err != nil {
		s.log.Error("list webhooks", zap.Error(err))
		http.Error(w, "failed to list webhooks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid webhook id", http.StatusBadRequest)
		return
	}
	hook, err := s.store.GetWebhook(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "webhook not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get webhook", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to load webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.validateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := checkEvents(req.Events); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	var secret *string
	if req.Secret != "" {
		secret = &req.Secret
	}
	hook, err := s.store.CreateWebhook(r.Context(), models.Webhook{
		URL:     req.URL,
		Events:  req.Events,
		Enabled: enabled,
		Secret:  secret,
	})
	if err != nil {
		s.log.Error("create webhook", zap.String("url", req.URL), zap.Error(err))
		http.Error(w, "failed to create webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid webhook id", http.StatusBadRequest)
		return
	}
	var req webhookUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.validateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Events != nil {
		if err := checkEvents(*req.Events); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	hook, err := s.store.UpdateWebhook(r.Context(), id, store.UpdateWebhookParams{
		URL:     req.URL,
		Events:  req.Events,
		Enabled: req.Enabled,
		Secret:  req.Secret,
	})
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "webhook not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("update webhook", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to update webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid webhook id", http.StatusBadRequest)
		return
	}
	err = s.store.DeleteWebhook(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "webhook not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("delete webhook", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to delete webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleWebhookEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": models.EventCatalog()})
}

// handleTestWebhook fires one synchronous canned delivery so operators
// can verify the endpoint before relying on real events.
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid webhook id", http.StatusBadRequest)
		return
	}
	hook, err := s.store.GetWebhook(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "webhook not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get webhook", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to load webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.events.Test(r.Context(), hook))
}

func checkEvents(events []string) error {
	for _, e := range events {
		if !models.KnownEvent(e) {
			return fmt.Errorf("unknown event %q", e)
		}
	}
	return nil
}
