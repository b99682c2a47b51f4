package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/models"
)

// WebhooksRepository defines the registry data-access surface.
type WebhooksRepository interface {
	Create(ctx context.Context, req *models.CreateWebhookSubscriptionRequest) (*models.WebhookSubscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
	List(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) ([]models.WebhookSubscription, error)
	Count(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) (int64, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookSubscriptionRequest) (*models.WebhookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// registryCacheInvalidator lets the service drop the dispatcher's cached
// registry list after writes. May be nil.
type registryCacheInvalidator interface {
	InvalidateCache()
}

// WebhooksService handles business logic for the webhook registry.
type WebhooksService struct {
	repo        WebhooksRepository
	invalidator registryCacheInvalidator
}

// NewWebhooksService creates a new webhooks service. invalidator may be nil.
func NewWebhooksService(repo WebhooksRepository, invalidator registryCacheInvalidator) *WebhooksService {
	return &WebhooksService{repo: repo, invalidator: invalidator}
}

// CreateSubscription registers an endpoint. A signing secret is generated
// when the caller does not provide one.
func (s *WebhooksService) CreateSubscription(ctx context.Context, req *models.CreateWebhookSubscriptionRequest) (*models.WebhookSubscription, error) {
	if req.Secret == "" {
		secret, err := generateSigningSecret()
		if err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		req.Secret = secret
	}

	sub, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.invalidate()

	return sub, nil
}

// generateSigningSecret generates a cryptographically secure secret:
// "whsec_" + base64(32 random bytes).
func generateSigningSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return "whsec_" + base64.StdEncoding.EncodeToString(secret), nil
}

// GetSubscription retrieves a single subscription by id.
func (s *WebhooksService) GetSubscription(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	return s.repo.GetByID(ctx, id)
}

// ListSubscriptions retrieves subscriptions with optional filters.
func (s *WebhooksService) ListSubscriptions(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) (*models.ListWebhookSubscriptionsResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = 100
	}

	subs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListWebhookSubscriptionsResponse{
		Data:   subs,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

// UpdateSubscription applies a partial-field merge.
func (s *WebhooksService) UpdateSubscription(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookSubscriptionRequest) (*models.WebhookSubscription, error) {
	sub, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.invalidate()

	return sub, nil
}

// DeleteSubscription removes a subscription.
func (s *WebhooksService) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate()

	return nil
}

func (s *WebhooksService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.InvalidateCache()
	}
}
