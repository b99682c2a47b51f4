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

// NotificationsService defines the interface for notification business logic.
type NotificationsService interface {
	Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
	ListForUser(ctx context.Context, userID, role string) []models.Notification
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID, role string) error
}

// listNotificationsFilters identifies the reader of a notification feed.
type listNotificationsFilters struct {
	UserID string `form:"user_id" validate:"required,min=1,max=255"`
	Role   string `form:"role" validate:"omitempty,max=64"`
}

// NotificationsHandler handles HTTP requests for in-app notifications.
type NotificationsHandler struct {
	service NotificationsService
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(service NotificationsService) *NotificationsHandler {
	return &NotificationsHandler{service: service}
}

// Create handles POST /v1/notifications.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNotificationRequest
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

	notification, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondUnprocessableEntity(w, err.Error())
			return
		}
		slog.Error("Failed to create notification", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, notification)
}

// List handles GET /v1/notifications. The feed is the union of notifications
// addressed to the user, to the user's role, and to everyone. A storage
// failure yields an empty list, not an error.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &listNotificationsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	notifications := h.service.ListForUser(r.Context(), filters.UserID, filters.Role)

	response.RespondJSON(w, http.StatusOK, map[string]any{
		"data": notifications,
	})
}

// MarkRead handles POST /v1/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Notification not found")
			return
		}
		slog.Error("Failed to mark notification read", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /v1/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	filters := &listNotificationsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	if err := h.service.MarkAllRead(r.Context(), filters.UserID, filters.Role); err != nil {
		slog.Error("Failed to mark all notifications read", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
