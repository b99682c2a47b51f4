package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a CRM sales lead. Assignment fields reference user ids in the
// identity collaborator; they are opaque strings here.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status"`
	RealtorID *string   `json:"realtor_id,omitempty"`
	PartnerID *string   `json:"partner_id,omitempty"`
	BrokerID  *string   `json:"broker_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadStatusNew is the status assigned to freshly created leads.
const LeadStatusNew = "new"

// CreateLeadRequest is the payload for creating a lead.
type CreateLeadRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Email  string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone  string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Source string `json:"source,omitempty" validate:"omitempty,max=255"`
	Status string `json:"status,omitempty" validate:"omitempty,max=64"`
	Notes  string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateLeadRequest is a partial-field merge; nil fields are left unchanged.
type UpdateLeadRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone  *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Source *string `json:"source,omitempty" validate:"omitempty,max=255"`
	Status *string `json:"status,omitempty" validate:"omitempty,max=64"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// ChangedFields lists the names of the fields this update sets.
func (r *UpdateLeadRequest) ChangedFields() []string {
	var fields []string
	if r.Name != nil {
		fields = append(fields, "name")
	}
	if r.Email != nil {
		fields = append(fields, "email")
	}
	if r.Phone != nil {
		fields = append(fields, "phone")
	}
	if r.Source != nil {
		fields = append(fields, "source")
	}
	if r.Status != nil {
		fields = append(fields, "status")
	}
	if r.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}

// ListLeadsFilters are optional list filters decoded from query parameters.
type ListLeadsFilters struct {
	Status    *string `form:"status"`
	RealtorID *string `form:"realtor_id"`
	Limit     int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset    int     `form:"offset" validate:"omitempty,min=0"`
}

// ListLeadsResponse is a paginated list of leads.
type ListLeadsResponse struct {
	Data   []Lead `json:"data"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ShareLeadRequest shares a lead with another user; the recipient gets an
// in-app notification and a lead.shared event is dispatched.
type ShareLeadRequest struct {
	RecipientUserID string `json:"recipient_user_id" validate:"required,min=1,max=255"`
	Message         string `json:"message,omitempty" validate:"omitempty,max=1000"`
}

// AssignLeadRequest assigns a realtor, partner, or broker to a lead.
type AssignLeadRequest struct {
	UserID string `json:"user_id" validate:"required,min=1,max=255"`
}
