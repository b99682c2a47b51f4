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

// LeadsService defines the interface for lead business logic.
type LeadsService interface {
	CreateLead(ctx context.Context, req *models.CreateLeadRequest) (*models.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	ListLeads(ctx context.Context, filters *models.ListLeadsFilters) (*models.ListLeadsResponse, error)
	UpdateLead(ctx context.Context, id uuid.UUID, req *models.UpdateLeadRequest) (*models.Lead, error)
	DeleteLead(ctx context.Context, id uuid.UUID) error
	ShareLead(ctx context.Context, id uuid.UUID, req *models.ShareLeadRequest, sender *models.Sender) (*models.Lead, error)
	AssignRealtor(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error)
	UnassignRealtor(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	AssignPartner(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error)
	UnassignPartner(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	AssignBroker(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error)
}

// LeadsHandler handles HTTP requests for leads.
type LeadsHandler struct {
	service LeadsService
}

// NewLeadsHandler creates a new leads handler.
func NewLeadsHandler(service LeadsService) *LeadsHandler {
	return &LeadsHandler{service: service}
}

// Create handles POST /v1/leads.
func (h *LeadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLeadRequest
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

	lead, err := h.service.CreateLead(r.Context(), &req)
	if err != nil {
		slog.Error("Failed to create lead", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, lead)
}

// Get handles GET /v1/leads/{id}.
func (h *LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	lead, err := h.service.GetLead(r.Context(), id)
	if err != nil {
		h.respondLeadError(w, r, id, err, "Failed to get lead")
		return
	}

	response.RespondJSON(w, http.StatusOK, lead)
}

// List handles GET /v1/leads.
func (h *LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListLeadsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	result, err := h.service.ListLeads(r.Context(), filters)
	if err != nil {
		slog.Error("Failed to list leads", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Update handles PATCH /v1/leads/{id}.
func (h *LeadsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req models.UpdateLeadRequest
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

	lead, err := h.service.UpdateLead(r.Context(), id, &req)
	if err != nil {
		h.respondLeadError(w, r, id, err, "Failed to update lead")
		return
	}

	response.RespondJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /v1/leads/{id}.
func (h *LeadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteLead(r.Context(), id); err != nil {
		h.respondLeadError(w, r, id, err, "Failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Share handles POST /v1/leads/{id}/share.
func (h *LeadsHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req models.ShareLeadRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body for share", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	lead, err := h.service.ShareLead(r.Context(), id, &req, nil)
	if err != nil {
		h.respondLeadError(w, r, id, err, "Failed to share lead")
		return
	}

	response.RespondJSON(w, http.StatusOK, lead)
}

// AssignRealtor handles PUT /v1/leads/{id}/realtor.
func (h *LeadsHandler) AssignRealtor(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.service.AssignRealtor, "Failed to assign realtor")
}

// UnassignRealtor handles DELETE /v1/leads/{id}/realtor.
func (h *LeadsHandler) UnassignRealtor(w http.ResponseWriter, r *http.Request) {
	h.unassign(w, r, h.service.UnassignRealtor, "Failed to unassign realtor")
}

// AssignPartner handles PUT /v1/leads/{id}/partner.
func (h *LeadsHandler) AssignPartner(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.service.AssignPartner, "Failed to assign partner")
}

// UnassignPartner handles DELETE /v1/leads/{id}/partner.
func (h *LeadsHandler) UnassignPartner(w http.ResponseWriter, r *http.Request) {
	h.unassign(w, r, h.service.UnassignPartner, "Failed to unassign partner")
}

// AssignBroker handles PUT /v1/leads/{id}/broker.
func (h *LeadsHandler) AssignBroker(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.service.AssignBroker, "Failed to assign broker")
}

func (h *LeadsHandler) assign(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error),
	logMsg string,
) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req models.AssignLeadRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body for assignment", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	lead, err := op(r.Context(), id, req.UserID)
	if err != nil {
		h.respondLeadError(w, r, id, err, logMsg)
		return
	}

	response.RespondJSON(w, http.StatusOK, lead)
}

func (h *LeadsHandler) unassign(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (*models.Lead, error),
	logMsg string,
) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	lead, err := op(r.Context(), id)
	if err != nil {
		h.respondLeadError(w, r, id, err, logMsg)
		return
	}

	response.RespondJSON(w, http.StatusOK, lead)
}

func (h *LeadsHandler) respondLeadError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error, logMsg string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		response.RespondNotFound(w, "Lead not found")
		return
	}

	slog.Error(logMsg, "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
	response.RespondInternalServerError(w, "An unexpected error occurred")
}
