package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
	"github.com/leadwire/relay/internal/models"
)

// LeadsRepository defines the lead data-access surface.
type LeadsRepository interface {
	Create(ctx context.Context, req *models.CreateLeadRequest) (*models.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, filters *models.ListLeadsFilters) ([]models.Lead, error)
	Count(ctx context.Context, filters *models.ListLeadsFilters) (int64, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateLeadRequest) (*models.Lead, error)
	SetAssignment(ctx context.Context, id uuid.UUID, column string, userID *string) (*models.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// notifier is the notification surface producers use. Notification failures
// are best-effort: logged, never surfaced to the domain caller.
type notifier interface {
	Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
}

// LeadsService handles business logic for leads. Every successful mutation
// publishes a webhook event after the write; the write is the source of truth
// and a dispatch problem never rolls it back.
type LeadsService struct {
	repo      LeadsRepository
	publisher Publisher
	notifier  notifier
}

// NewLeadsService creates a new leads service. notifier may be nil.
func NewLeadsService(repo LeadsRepository, publisher Publisher, n notifier) *LeadsService {
	return &LeadsService{repo: repo, publisher: publisher, notifier: n}
}

// CreateLead creates a lead and publishes lead.created.
func (s *LeadsService) CreateLead(ctx context.Context, req *models.CreateLeadRequest) (*models.Lead, error) {
	lead, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, datatypes.LeadCreated, lead)

	return lead, nil
}

// GetLead retrieves a single lead by id.
func (s *LeadsService) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// ListLeads retrieves leads with optional filters.
func (s *LeadsService) ListLeads(ctx context.Context, filters *models.ListLeadsFilters) (*models.ListLeadsResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = 100
	}

	leads, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListLeadsResponse{
		Data:   leads,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

// UpdateLead applies a partial-field merge and publishes lead.updated with
// the names of the changed fields.
func (s *LeadsService) UpdateLead(ctx context.Context, id uuid.UUID, req *models.UpdateLeadRequest) (*models.Lead, error) {
	lead, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishWithChangedFields(ctx, datatypes.LeadUpdated, lead, req.ChangedFields())

	return lead, nil
}

// DeleteLead removes a lead and publishes lead.deleted carrying the previous
// snapshot, since the row is gone by the time subscribers hear about it.
func (s *LeadsService) DeleteLead(ctx context.Context, id uuid.UUID) error {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(ctx, datatypes.LeadDeleted, lead)

	return nil
}

// ShareLead shares a lead with another user: publishes lead.shared and sends
// the recipient an in-app notification.
func (s *LeadsService) ShareLead(ctx context.Context, id uuid.UUID, req *models.ShareLeadRequest, sender *models.Sender) (*models.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, datatypes.LeadShared, map[string]any{
		"lead":              lead,
		"recipient_user_id": req.RecipientUserID,
		"message":           req.Message,
	})

	if s.notifier != nil {
		message := req.Message
		if message == "" {
			message = fmt.Sprintf("Lead %q was shared with you.", lead.Name)
		}

		_, err := s.notifier.Create(ctx, &models.CreateNotificationRequest{
			Title:     "Lead shared with you",
			Message:   message,
			Type:      models.NotificationInterest,
			Sender:    sender,
			Recipient: models.Recipient{Kind: models.RecipientUser, Value: req.RecipientUserID},
		})
		if err != nil {
			slog.Warn("failed to create lead-shared notification",
				"lead_id", lead.ID,
				"recipient_user_id", req.RecipientUserID,
				"error", err,
			)
		}
	}

	return lead, nil
}

// assignmentEvents maps assignment columns to their assigned/unassigned events.
var assignmentEvents = map[string]struct {
	assigned   datatypes.EventType
	unassigned datatypes.EventType
	hasUnset   bool
}{
	"realtor_id": {assigned: datatypes.LeadRealtorAssigned, unassigned: datatypes.LeadRealtorUnassigned, hasUnset: true},
	"partner_id": {assigned: datatypes.LeadPartnerAssigned, unassigned: datatypes.LeadPartnerUnassigned, hasUnset: true},
	"broker_id":  {assigned: datatypes.LeadBrokerAssigned},
}

// AssignRealtor assigns a realtor and publishes lead.realtor.assigned.
func (s *LeadsService) AssignRealtor(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error) {
	return s.assign(ctx, id, "realtor_id", &userID)
}

// UnassignRealtor clears the realtor and publishes lead.realtor.unassigned.
func (s *LeadsService) UnassignRealtor(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return s.assign(ctx, id, "realtor_id", nil)
}

// AssignPartner assigns a partner and publishes lead.partner.assigned.
func (s *LeadsService) AssignPartner(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error) {
	return s.assign(ctx, id, "partner_id", &userID)
}

// UnassignPartner clears the partner and publishes lead.partner.unassigned.
func (s *LeadsService) UnassignPartner(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return s.assign(ctx, id, "partner_id", nil)
}

// AssignBroker assigns a broker and publishes lead.broker.assigned. Brokers
// are never unassigned, only replaced.
func (s *LeadsService) AssignBroker(ctx context.Context, id uuid.UUID, userID string) (*models.Lead, error) {
	return s.assign(ctx, id, "broker_id", &userID)
}

func (s *LeadsService) assign(ctx context.Context, id uuid.UUID, column string, userID *string) (*models.Lead, error) {
	events, ok := assignmentEvents[column]
	if !ok {
		return nil, fmt.Errorf("invalid assignment column: %q", column)
	}
	if userID == nil && !events.hasUnset {
		return nil, fmt.Errorf("assignment column %q cannot be cleared", column)
	}

	lead, err := s.repo.SetAssignment(ctx, id, column, userID)
	if err != nil {
		return nil, err
	}

	eventType := events.assigned
	if userID == nil {
		eventType = events.unassigned
	}
	s.publisher.Publish(ctx, eventType, lead)

	return lead, nil
}
