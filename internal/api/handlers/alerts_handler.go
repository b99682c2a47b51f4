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

// AlertsService defines the interface for exchange-alert business logic.
type AlertsService interface {
	CreateAlert(ctx context.Context, req *models.CreateExchangeAlertRequest) (*models.ExchangeAlert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.ExchangeAlert, error)
	ListAlerts(ctx context.Context, filters *models.ListExchangeAlertsFilters) (*models.ListExchangeAlertsResponse, error)
	UpdateAlert(ctx context.Context, id uuid.UUID, req *models.UpdateExchangeAlertRequest) (*models.ExchangeAlert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error
}

// AlertsHandler handles HTTP requests for exchange alerts.
type AlertsHandler struct {
	service AlertsService
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(service AlertsService) *AlertsHandler {
	return &AlertsHandler{service: service}
}

// Create handles POST /v1/alerts.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateExchangeAlertRequest
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

	alert, err := h.service.CreateAlert(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondUnprocessableEntity(w, err.Error())
			return
		}
		slog.Error("Failed to create alert", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, alert)
}

// Get handles GET /v1/alerts/{id}.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	alert, err := h.service.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Alert not found")
			return
		}
		slog.Error("Failed to get alert", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, alert)
}

// List handles GET /v1/alerts.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListExchangeAlertsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	result, err := h.service.ListAlerts(r.Context(), filters)
	if err != nil {
		slog.Error("Failed to list alerts", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Update handles PATCH /v1/alerts/{id}.
func (h *AlertsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req models.UpdateExchangeAlertRequest
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

	alert, err := h.service.UpdateAlert(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Alert not found")
			return
		}
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondUnprocessableEntity(w, err.Error())
			return
		}
		slog.Error("Failed to update alert", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, alert)
}

// Delete handles DELETE /v1/alerts/{id}.
func (h *AlertsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAlert(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Alert not found")
			return
		}
		slog.Error("Failed to delete alert", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
