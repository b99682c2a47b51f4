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

	apperrors "github.com/leadwire/relay/internal/errors"
	"github.com/leadwire/relay/internal/models"
)

const alertColumns = "id, user_id, base_currency, quote_currency, target_rate, direction, active, triggered_at, created_at, updated_at"

// AlertsRepository handles data access for exchange alerts.
type AlertsRepository struct {
	db *pgxpool.Pool
}

// NewAlertsRepository creates a new alerts repository.
func NewAlertsRepository(db *pgxpool.Pool) *AlertsRepository {
	return &AlertsRepository{db: db}
}

func scanAlert(row pgx.Row) (*models.ExchangeAlert, error) {
	var alert models.ExchangeAlert
	err := row.Scan(
		&alert.ID, &alert.UserID, &alert.BaseCurrency, &alert.QuoteCurrency,
		&alert.TargetRate, &alert.Direction, &alert.Active, &alert.TriggeredAt,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create inserts a new exchange alert.
func (r *AlertsRepository) Create(ctx context.Context, req *models.CreateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	query := `
		INSERT INTO exchange_alerts (user_id, base_currency, quote_currency, target_rate, direction, active)
		VALUES ($1, upper($2), upper($3), $4, $5, $6)
		RETURNING ` + alertColumns

	alert, err := scanAlert(r.db.QueryRow(ctx, query,
		req.UserID, req.BaseCurrency, req.QuoteCurrency, req.TargetRate, req.Direction, active,
	))
	if err != nil {
		return nil, fmt.Errorf("create exchange alert: %w", err)
	}

	return alert, nil
}

// GetByID retrieves a single alert by id.
func (r *AlertsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExchangeAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM exchange_alerts WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange alert", "exchange alert not found")
		}
		return nil, fmt.Errorf("get exchange alert: %w", err)
	}

	return alert, nil
}

func buildAlertFilterConditions(filters *models.ListExchangeAlertsFilters) (string, []any) {
	var conditions []string
	var args []any
	argCount := 1

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argCount))
		args = append(args, *filters.UserID)
		argCount++
	}

	if filters.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argCount))
		args = append(args, *filters.Active)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves alerts with optional filters, newest first.
func (r *AlertsRepository) List(ctx context.Context, filters *models.ListExchangeAlertsFilters) ([]models.ExchangeAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM exchange_alerts`

	whereClause, args := buildAlertFilterConditions(filters)
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
		return nil, fmt.Errorf("list exchange alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.ExchangeAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange alerts: %w", err)
	}

	return alerts, nil
}

// Count returns the total count of alerts matching the filters.
func (r *AlertsRepository) Count(ctx context.Context, filters *models.ListExchangeAlertsFilters) (int64, error) {
	query := `SELECT COUNT(*) FROM exchange_alerts`

	whereClause, args := buildAlertFilterConditions(filters)
	query += whereClause

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count exchange alerts: %w", err)
	}

	return count, nil
}

// ListActive retrieves all active, not-yet-triggered alerts for the monitor.
func (r *AlertsRepository) ListActive(ctx context.Context) ([]models.ExchangeAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM exchange_alerts
		WHERE active = true AND triggered_at IS NULL
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active exchange alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.ExchangeAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange alerts: %w", err)
	}

	return alerts, nil
}

// Update applies a partial-field merge to an existing alert.
func (r *AlertsRepository) Update(ctx context.Context, id uuid.UUID, req *models.UpdateExchangeAlertRequest) (*models.ExchangeAlert, error) {
	var updates []string
	var args []any
	argCount := 1

	set := func(column string, value any) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argCount))
		args = append(args, value)
		argCount++
	}

	if req.TargetRate != nil {
		set("target_rate", *req.TargetRate)
	}
	if req.Direction != nil {
		set("direction", *req.Direction)
	}
	if req.Active != nil {
		set("active", *req.Active)
	}

	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}

	set("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE exchange_alerts
		SET %s
		WHERE id = $%d
		RETURNING `+alertColumns,
		strings.Join(updates, ", "), argCount)

	alert, err := scanAlert(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange alert", "exchange alert not found")
		}
		return nil, fmt.Errorf("update exchange alert: %w", err)
	}

	return alert, nil
}

// MarkTriggered stamps triggered_at and deactivates the alert so it fires
// once. Only an active, untriggered alert is updated; the returned bool
// reports whether this call won the race.
func (r *AlertsRepository) MarkTriggered(ctx context.Context, id uuid.UUID, triggeredAt time.Time) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE exchange_alerts
		SET active = false, triggered_at = $2, updated_at = $2
		WHERE id = $1 AND active = true AND triggered_at IS NULL`, id, triggeredAt)
	if err != nil {
		return false, fmt.Errorf("mark exchange alert triggered: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Delete removes an alert.
func (r *AlertsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM exchange_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exchange alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("exchange alert", "exchange alert not found")
	}

	return nil
}
