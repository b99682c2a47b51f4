package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertDirection selects which side of the target rate fires an alert.
type AlertDirection string

// An alert fires when the observed rate moves to or above (resp. below) the target.
const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// ErrInvalidAlertDirection is returned for unknown directions.
var ErrInvalidAlertDirection = errors.New("invalid alert direction")

// Validate checks that the direction is one of the known values.
func (d AlertDirection) Validate() error {
	switch d {
	case AlertAbove, AlertBelow:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAlertDirection, string(d))
	}
}

// ExchangeAlert is a one-shot currency-rate alert owned by a user. The alert
// monitor deactivates it and stamps TriggeredAt when the target is crossed.
type ExchangeAlert struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"`
	BaseCurrency  string         `json:"base_currency"`
	QuoteCurrency string         `json:"quote_currency"`
	TargetRate    float64        `json:"target_rate"`
	Direction     AlertDirection `json:"direction"`
	Active        bool           `json:"active"`
	TriggeredAt   *time.Time     `json:"triggered_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Pair returns the currency pair in BASE/QUOTE form (e.g. "USD/BRL").
func (a *ExchangeAlert) Pair() string {
	return a.BaseCurrency + "/" + a.QuoteCurrency
}

// Matches reports whether the observed rate crosses the alert target.
func (a *ExchangeAlert) Matches(rate float64) bool {
	switch a.Direction {
	case AlertAbove:
		return rate >= a.TargetRate
	case AlertBelow:
		return rate <= a.TargetRate
	default:
		return false
	}
}

// Quote is a currency rate observation from the quote provider.
type Quote struct {
	BaseCurrency  string    `json:"base_currency"`
	QuoteCurrency string    `json:"quote_currency"`
	Rate          float64   `json:"rate"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// AlertBundle is the nested payload dispatched with exchange.alert.triggered:
// the alert together with the quote that fired it.
type AlertBundle struct {
	Alert ExchangeAlert `json:"alert"`
	Quote Quote         `json:"quote"`
}

// CreateExchangeAlertRequest is the payload for creating an alert.
type CreateExchangeAlertRequest struct {
	UserID        string         `json:"user_id" validate:"required,min=1,max=255"`
	BaseCurrency  string         `json:"base_currency" validate:"required,len=3,alpha"`
	QuoteCurrency string         `json:"quote_currency" validate:"required,len=3,alpha"`
	TargetRate    float64        `json:"target_rate" validate:"required,gt=0"`
	Direction     AlertDirection `json:"direction" validate:"required,alert_direction"`
	Active        *bool          `json:"active,omitempty"`
}

// UpdateExchangeAlertRequest is a partial-field merge; nil fields are left unchanged.
type UpdateExchangeAlertRequest struct {
	TargetRate *float64        `json:"target_rate,omitempty" validate:"omitempty,gt=0"`
	Direction  *AlertDirection `json:"direction,omitempty" validate:"omitempty,alert_direction"`
	Active     *bool           `json:"active,omitempty"`
}

// ListExchangeAlertsFilters are optional list filters decoded from query parameters.
type ListExchangeAlertsFilters struct {
	UserID *string `form:"user_id"`
	Active *bool   `form:"active"`
	Limit  int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int     `form:"offset" validate:"omitempty,min=0"`
}

// ListExchangeAlertsResponse is a paginated list of alerts.
type ListExchangeAlertsResponse struct {
	Data   []ExchangeAlert `json:"data"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
