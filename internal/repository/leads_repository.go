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

const leadColumns = "id, name, email, phone, source, status, realtor_id, partner_id, broker_id, notes, created_at, updated_at"

// LeadsRepository handles data access for leads.
type LeadsRepository struct {
	db *pgxpool.Pool
}

// NewLeadsRepository creates a new leads repository.
func NewLeadsRepository(db *pgxpool.Pool) *LeadsRepository {
	return &LeadsRepository{db: db}
}

func scanLead(row pgx.Row) (*models.Lead, error) {
	var lead models.Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source, &lead.Status,
		&lead.RealtorID, &lead.PartnerID, &lead.BrokerID, &lead.Notes,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// Create inserts a new lead.
func (r *LeadsRepository) Create(ctx context.Context, req *models.CreateLeadRequest) (*models.Lead, error) {
	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (name, email, phone, source, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + leadColumns

	lead, err := scanLead(r.db.QueryRow(ctx, query,
		req.Name, req.Email, req.Phone, req.Source, status, req.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	return lead, nil
}

// GetByID retrieves a single lead by id.
func (r *LeadsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("lead", "lead not found")
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}

	return lead, nil
}

func buildLeadFilterConditions(filters *models.ListLeadsFilters) (string, []any) {
	var conditions []string
	var args []any
	argCount := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}

	if filters.RealtorID != nil {
		conditions = append(conditions, fmt.Sprintf("realtor_id = $%d", argCount))
		args = append(args, *filters.RealtorID)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves leads with optional filters, newest first.
func (r *LeadsRepository) List(ctx context.Context, filters *models.ListLeadsFilters) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`

	whereClause, args := buildLeadFilterConditions(filters)
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
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	return leads, nil
}

// Count returns the total count of leads matching the filters.
func (r *LeadsRepository) Count(ctx context.Context, filters *models.ListLeadsFilters) (int64, error) {
	query := `SELECT COUNT(*) FROM leads`

	whereClause, args := buildLeadFilterConditions(filters)
	query += whereClause

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}

	return count, nil
}

// Update applies a partial-field merge to an existing lead.
func (r *LeadsRepository) Update(ctx context.Context, id uuid.UUID, req *models.UpdateLeadRequest) (*models.Lead, error) {
	var updates []string
	var args []any
	argCount := 1

	set := func(column string, value any) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argCount))
		args = append(args, value)
		argCount++
	}

	if req.Name != nil {
		set("name", *req.Name)
	}
	if req.Email != nil {
		set("email", *req.Email)
	}
	if req.Phone != nil {
		set("phone", *req.Phone)
	}
	if req.Source != nil {
		set("source", *req.Source)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}
	if req.Notes != nil {
		set("notes", *req.Notes)
	}

	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}

	set("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE leads
		SET %s
		WHERE id = $%d
		RETURNING `+leadColumns,
		strings.Join(updates, ", "), argCount)

	lead, err := scanLead(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("lead", "lead not found")
		}
		return nil, fmt.Errorf("update lead: %w", err)
	}

	return lead, nil
}

// SetAssignment sets or clears one of the assignment columns
// (realtor_id, partner_id, broker_id). userID nil clears the assignment.
func (r *LeadsRepository) SetAssignment(ctx context.Context, id uuid.UUID, column string, userID *string) (*models.Lead, error) {
	switch column {
	case "realtor_id", "partner_id", "broker_id":
	default:
		return nil, fmt.Errorf("invalid assignment column: %q", column)
	}

	query := fmt.Sprintf(`
		UPDATE leads
		SET %s = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+leadColumns, column)

	lead, err := scanLead(r.db.QueryRow(ctx, query, id, userID, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("lead", "lead not found")
		}
		return nil, fmt.Errorf("set lead assignment: %w", err)
	}

	return lead, nil
}

// Delete removes a lead.
func (r *LeadsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("lead", "lead not found")
	}

	return nil
}
