package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leadwire/relay/internal/models"
)

// NotificationsRepository defines the notification data-access surface.
type NotificationsRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListForRecipient(ctx context.Context, recipient models.Recipient, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// NotificationsService handles business logic for in-app notifications.
// Reads are best-effort: a storage failure degrades to an empty list so a
// notification outage never blocks the rest of the application.
type NotificationsService struct {
	repo NotificationsRepository
}

// NewNotificationsService creates a new notifications service.
func NewNotificationsService(repo NotificationsRepository) *NotificationsService {
	return &NotificationsService{repo: repo}
}

// Create validates and stores a notification. The sender defaults to the
// system identity; read is forced to false regardless of input.
func (s *NotificationsService) Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	if err := req.Recipient.Validate(); err != nil {
		return nil, err
	}

	notificationType := req.Type
	if notificationType == "" {
		notificationType = models.NotificationInfo
	}
	if err := notificationType.Validate(); err != nil {
		return nil, err
	}

	sender := models.SystemSender
	if req.Sender != nil {
		sender = *req.Sender
	}

	return s.repo.Create(ctx, &models.Notification{
		Title:        req.Title,
		Message:      req.Message,
		Type:         notificationType,
		HighPriority: req.HighPriority,
		Sender:       sender,
		Recipient:    req.Recipient,
		Read:         false,
	})
}

// ListForUser returns all notifications addressed to the user directly, to
// the user's role, or broadcast to everyone, de-duplicated and newest first.
// Storage failures are logged and degrade to an empty list.
func (s *NotificationsService) ListForUser(ctx context.Context, userID, role string) []models.Notification {
	notifications, err := s.queryRecipientUnion(ctx, userID, role, false)
	if err != nil {
		slog.Error("failed to list notifications, returning empty list",
			"user_id", userID,
			"role", role,
			"error", err,
		)
		return []models.Notification{}
	}

	return notifications
}

// MarkRead flips one notification to read.
func (s *NotificationsService) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead marks every unread notification addressed to the user, the
// user's role, or everyone as read. Notifications addressed elsewhere are
// untouched.
func (s *NotificationsService) MarkAllRead(ctx context.Context, userID, role string) error {
	unread, err := s.queryRecipientUnion(ctx, userID, role, true)
	if err != nil {
		return fmt.Errorf("list unread notifications: %w", err)
	}

	for _, n := range unread {
		if err := s.repo.MarkRead(ctx, n.ID); err != nil {
			return fmt.Errorf("mark notification %s read: %w", n.ID, err)
		}
	}

	return nil
}

// queryRecipientUnion runs the three addressing-mode queries concurrently and
// merges the results: de-duplicated by id, sorted by creation time descending.
func (s *NotificationsService) queryRecipientUnion(ctx context.Context, userID, role string, unreadOnly bool) ([]models.Notification, error) {
	recipients := []models.Recipient{
		{Kind: models.RecipientUser, Value: userID},
		{Kind: models.RecipientRole, Value: role},
		{Kind: models.RecipientBroadcast},
	}

	results := make([][]models.Notification, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	for i, recipient := range recipients {
		g.Go(func() error {
			notifications, err := s.repo.ListForRecipient(gctx, recipient, unreadOnly)
			if err != nil {
				return err
			}
			results[i] = notifications
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	merged := []models.Notification{}
	for _, batch := range results {
		for _, n := range batch {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			merged = append(merged, n)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	return merged, nil
}
