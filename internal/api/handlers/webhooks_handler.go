package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/api/response"
	"github.com/leadwire/relay/internal/api/validation"
	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

// WebhooksService defines the interface for webhook-subscription business logic.
type WebhooksService interface {
	CreateSubscription(ctx context.Context, req *models.CreateWebhookSubscriptionRequest) (*models.WebhookSubscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
	ListSubscriptions(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) (*models.ListWebhookSubscriptionsResponse, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookSubscriptionRequest) (*models.WebhookSubscription, error)
	DeleteSubscription(ctx context.Context, id uuid.UUID) error
}

// WebhooksHandler handles HTTP requests for webhook subscriptions.
type WebhooksHandler struct {
	service WebhooksService
}

// NewWebhooksHandler creates a new webhooks handler.
func NewWebhooksHandler(service WebhooksService) *WebhooksHandler {
	return &WebhooksHandler{service: service}
}

// Create handles POST /v1/webhooks.
func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookSubscriptionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	subscription, err := h.service.CreateSubscription(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondUnprocessableEntity(w, err.Error())
			return
		}
		slog.Error("Failed to create webhook subscription", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, subscription)
}

// Get handles GET /v1/webhooks/{id}.
func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	subscription, err := h.service.GetSubscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Webhook subscription not found")
			return
		}
		slog.Error("Failed to get webhook subscription", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, subscription)
}

// List handles GET /v1/webhooks.
func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListWebhookSubscriptionsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	result, err := h.service.ListSubscriptions(r.Context(), filters)
	if err != nil {
		slog.Error("Failed to list webhook subscriptions", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Update handles PATCH /v1/webhooks/{id}.
func (h *WebhooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req models.UpdateWebhookSubscriptionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body for update", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	subscription, err := h.service.UpdateSubscription(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Webhook subscription not found")
			return
		}
		slog.Error("Failed to update webhook subscription", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, subscription)
}

// Delete handles DELETE /v1/webhooks/{id}.
func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Webhook subscription not found")
			return
		}
		slog.Error("Failed to delete webhook subscription", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
