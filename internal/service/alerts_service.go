package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	"github.com/leadwire/relay/internal/models"
)

// AlertsRepository defines the exchange-alert data-access surface.
type AlertsRepository interface {
	Create(ctx context.Context, req *models.CreateExchangeAlertRequest) (*models.ExchangeAlert, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExchangeAlert, error)
	List(ctx context.Context, filters *models.ListExchangeAlertsFilters) ([]models.ExchangeAlert, error)
	Count(ctx context.Context, filters *models.ListExchangeAlertsFilters) (int64, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateExchangeAlertRequest) (*models.ExchangeAlert, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AlertsService handles business logic for exchange alerts. Mutations publish
// the matching exchange.alert.* event after the write; exchange.alert.triggered
// is published by the alert monitor, not here.
type AlertsService struct {
	repo      AlertsRepository
	publisher Publisher
}

// NewAlertsService creates a new alerts service.
func NewAlertsService(repo AlertsRepository, publisher Publisher) *AlertsService {
	return &AlertsService{repo: repo, publisher: publisher}
}

// CreateAlert creates an alert and publishes exchange.alert.created.
func (s *AlertsService) CreateAlert(ctx context.Context, req *models.CreateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	if err := req.Direction.Validate(); err != nil {
		return nil, err
	}

	alert, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, datatypes.ExchangeAlertCreated, alert)

	return alert, nil
}

// GetAlert retrieves a single alert by id.
func (s *AlertsService) GetAlert(ctx context.Context, id uuid.UUID) (*models.ExchangeAlert, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAlerts retrieves alerts with optional filters.
func (s *AlertsService) ListAlerts(ctx context.Context, filters *models.ListExchangeAlertsFilters) (*models.ListExchangeAlertsResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = 100
	}

	alerts, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListExchangeAlertsResponse{
		Data:   alerts,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

// UpdateAlert applies a partial-field merge and publishes exchange.alert.updated.
func (s *AlertsService) UpdateAlert(ctx context.Context, id uuid.UUID, req *models.UpdateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	if req.Direction != nil {
		if err := req.Direction.Validate(); err != nil {
			return nil, err
		}
	}

	alert, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, datatypes.ExchangeAlertUpdated, alert)

	return alert, nil
}

// DeleteAlert removes an alert and publishes exchange.alert.deleted carrying
// the previous snapshot.
func (s *AlertsService) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(ctx, datatypes.ExchangeAlertDeleted, alert)

	return nil
}
