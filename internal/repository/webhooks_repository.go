// Package repository implements PostgreSQL data access for relay.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadwire/relay/internal/datatypes"
	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

const webhookColumns = "id, name, url, secret, events, active, failure_count, last_triggered_at, created_at, updated_at"

// WebhooksRepository handles data access for webhook subscriptions.
type WebhooksRepository struct {
	db *pgxpool.Pool
}

// NewWebhooksRepository creates a new webhooks repository.
func NewWebhooksRepository(db *pgxpool.Pool) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

func scanWebhookSubscription(row pgx.Row) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	var events []string
	err := row.Scan(
		&sub.ID, &sub.Name, &sub.URL, &sub.Secret, &events, &sub.Active,
		&sub.FailureCount, &sub.LastTriggeredAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Events, err = datatypes.ParseEventTypes(events)
	if err != nil {
		return nil, fmt.Errorf("parse stored event types: %w", err)
	}

	return &sub, nil
}

// Create inserts a new subscription. The id is assigned by the database.
func (r *WebhooksRepository) Create(ctx context.Context, req *models.CreateWebhookSubscriptionRequest) (*models.WebhookSubscription, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	query := `
		INSERT INTO webhook_subscriptions (name, url, secret, events, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + webhookColumns

	sub, err := scanWebhookSubscription(r.db.QueryRow(ctx, query,
		req.Name, req.URL, req.Secret, datatypes.EventTypeStrings(req.Events), active,
	))
	if err != nil {
		return nil, fmt.Errorf("create webhook subscription: %w", err)
	}

	return sub, nil
}

// GetByID retrieves a single subscription by id.
func (r *WebhooksRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions WHERE id = $1`

	sub, err := scanWebhookSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook subscription", "webhook subscription not found")
		}
		return nil, fmt.Errorf("get webhook subscription: %w", err)
	}

	return sub, nil
}

// buildWebhookFilterConditions builds WHERE clause conditions and arguments from filters.
func buildWebhookFilterConditions(filters *models.ListWebhookSubscriptionsFilters) (string, []any) {
	var conditions []string
	var args []any
	argCount := 1

	if filters.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argCount))
		args = append(args, *filters.Active)
		argCount++
	}

	if filters.Event != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(events)", argCount))
		args = append(args, *filters.Event)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves subscriptions with optional filters, newest first.
func (r *WebhooksRepository) List(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) ([]models.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions`

	whereClause, args := buildWebhookFilterConditions(filters)
	query += whereClause + " ORDER BY created_at DESC"
	argCount := len(args) + 1

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
		argCount++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []models.WebhookSubscription{}
	for rows.Next() {
		sub, err := scanWebhookSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook subscriptions: %w", err)
	}

	return subs, nil
}

// ListAll retrieves every subscription; the dispatcher filters by event and
// active flag itself.
func (r *WebhooksRepository) ListAll(ctx context.Context) ([]models.WebhookSubscription, error) {
	return r.List(ctx, &models.ListWebhookSubscriptionsFilters{})
}

// Count returns the total count of subscriptions matching the filters.
func (r *WebhooksRepository) Count(ctx context.Context, filters *models.ListWebhookSubscriptionsFilters) (int64, error) {
	query := `SELECT COUNT(*) FROM webhook_subscriptions`

	whereClause, args := buildWebhookFilterConditions(filters)
	query += whereClause

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count webhook subscriptions: %w", err)
	}

	return count, nil
}

// Update applies a partial-field merge to an existing subscription.
func (r *WebhooksRepository) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookSubscriptionRequest) (*models.WebhookSubscription, error) {
	var updates []string
	var args []any
	argCount := 1

	if req.Name != nil {
		updates = append(updates, fmt.Sprintf("name = $%d", argCount))
		args = append(args, *req.Name)
		argCount++
	}

	if req.URL != nil {
		updates = append(updates, fmt.Sprintf("url = $%d", argCount))
		args = append(args, *req.URL)
		argCount++
	}

	if req.Secret != nil {
		updates = append(updates, fmt.Sprintf("secret = $%d", argCount))
		args = append(args, *req.Secret)
		argCount++
	}

	if req.Events != nil {
		updates = append(updates, fmt.Sprintf("events = $%d", argCount))
		args = append(args, datatypes.EventTypeStrings(*req.Events))
		argCount++
	}

	if req.Active != nil {
		updates = append(updates, fmt.Sprintf("active = $%d", argCount))
		args = append(args, *req.Active)
		argCount++
	}

	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}

	updates = append(updates, fmt.Sprintf("updated_at = $%d", argCount))
	args = append(args, time.Now())
	argCount++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE webhook_subscriptions
		SET %s
		WHERE id = $%d
		RETURNING `+webhookColumns,
		strings.Join(updates, ", "), argCount)

	sub, err := scanWebhookSubscription(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook subscription", "webhook subscription not found")
		}
		return nil, fmt.Errorf("update webhook subscription: %w", err)
	}

	return sub, nil
}

// Delete removes a subscription.
func (r *WebhooksRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("webhook subscription", "webhook subscription not found")
	}

	return nil
}

// RecordDeliverySuccess resets the failure counter and stamps the delivery
// time. The update is a single statement so concurrent deliveries to the same
// subscription never lose a reset to a read-modify-write race.
func (r *WebhooksRepository) RecordDeliverySuccess(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = 0, last_triggered_at = $2
		WHERE id = $1`, id, deliveredAt)
	if err != nil {
		return fmt.Errorf("record delivery success: %w", err)
	}

	return nil
}

// RecordDeliveryFailure increments the failure counter atomically.
// last_triggered_at is deliberately untouched on failure.
func (r *WebhooksRepository) RecordDeliveryFailure(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = failure_count + 1
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}

	return nil
}
