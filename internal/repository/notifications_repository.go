package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

const notificationColumns = `id, title, message, type, high_priority,
	sender_id, sender_name, sender_role, recipient_kind, recipient_value, read, created_at`

// NotificationsRepository handles data access for notifications.
type NotificationsRepository struct {
	db *pgxpool.Pool
}

// NewNotificationsRepository creates a new notifications repository.
func NewNotificationsRepository(db *pgxpool.Pool) *NotificationsRepository {
	return &NotificationsRepository{db: db}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(
		&n.ID, &n.Title, &n.Message, &n.Type, &n.HighPriority,
		&n.Sender.ID, &n.Sender.Name, &n.Sender.Role,
		&n.Recipient.Kind, &n.Recipient.Value, &n.Read, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts a notification. Read is always stored false; the service
// layer enforces the sender default.
func (r *NotificationsRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (
			title, message, type, high_priority,
			sender_id, sender_name, sender_role,
			recipient_kind, recipient_value, read
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING ` + notificationColumns

	created, err := scanNotification(r.db.QueryRow(ctx, query,
		n.Title, n.Message, n.Type, n.HighPriority,
		n.Sender.ID, n.Sender.Name, n.Sender.Role,
		n.Recipient.Kind, n.Recipient.Value,
	))
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	return created, nil
}

// ListForRecipient returns notifications addressed to one recipient variant
// (a user id, a role, or broadcast), newest first. unreadOnly restricts the
// result to unread notifications.
func (r *NotificationsRepository) ListForRecipient(ctx context.Context, recipient models.Recipient, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_kind = $1 AND recipient_value = $2`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, recipient.Kind, recipient.Value)
	if err != nil {
		return nil, fmt.Errorf("list notifications for recipient: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead flips one notification to read. Marking an already-read
// notification is a no-op, not an error.
func (r *NotificationsRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("notification", "notification not found")
	}

	return nil
}

// GetByID retrieves a single notification by id.
func (r *NotificationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("notification", "notification not found")
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}

	return n, nil
}
