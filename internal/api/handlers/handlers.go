// Package handlers contains the HTTP handlers for the v1 API.
package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/api/response"
)

// parseIDParam extracts and parses the {id} path parameter. On failure it
// writes the error response and returns ok=false.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return uuid.Nil, false
	}

	return id, true
}
