package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
)

// WebhookSubscription is a registered subscriber endpoint. The dispatcher
// fans events out to every active subscription whose Events set contains the
// event being triggered.
type WebhookSubscription struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	URL             string                `json:"url"`
	Secret          string                `json:"secret,omitempty"`
	Events          []datatypes.EventType `json:"events"`
	Active          bool                  `json:"active"`
	FailureCount    int                   `json:"failure_count"`
	LastTriggeredAt *time.Time            `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// SubscribedTo reports whether the subscription's event set contains eventType.
func (s *WebhookSubscription) SubscribedTo(eventType datatypes.EventType) bool {
	for _, et := range s.Events {
		if et == eventType {
			return true
		}
	}
	return false
}

// CreateWebhookSubscriptionRequest is the payload for registering an endpoint.
// Secret is optional; a signing secret is generated when absent.
type CreateWebhookSubscriptionRequest struct {
	Name   string                `json:"name" validate:"required,min=1,max=255"`
	URL    string                `json:"url" validate:"required,url,max=2048"`
	Secret string                `json:"secret,omitempty" validate:"omitempty,max=255"`
	Events []datatypes.EventType `json:"events" validate:"required,min=1,dive,event_type"`
	Active *bool                 `json:"active,omitempty"`
}

// UpdateWebhookSubscriptionRequest is a partial-field merge; nil fields are
// left unchanged.
type UpdateWebhookSubscriptionRequest struct {
	Name   *string                `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	URL    *string                `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	Secret *string                `json:"secret,omitempty" validate:"omitempty,max=255"`
	Events *[]datatypes.EventType `json:"events,omitempty"`
	Active *bool                  `json:"active,omitempty"`
}

// ListWebhookSubscriptionsFilters are optional list filters decoded from
// query parameters.
type ListWebhookSubscriptionsFilters struct {
	Active *bool   `form:"active"`
	Event  *string `form:"event"`
	Limit  int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int     `form:"offset" validate:"omitempty,min=0"`
}

// ListWebhookSubscriptionsResponse is a paginated list of subscriptions.
type ListWebhookSubscriptionsResponse struct {
	Data   []WebhookSubscription `json:"data"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}
