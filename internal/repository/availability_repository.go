package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

// AvailabilityRepository reads working hours templates and exceptions.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListRules returns the tenant's active working hours rules.
func (r *AvailabilityRepository) ListRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.WorkingHoursRule, error) {
	const query = `SELECT id, tenant_id, staff_id, day_of_week, start_time, end_time, active, created_at, updated_at
FROM availability_templates WHERE tenant_id = $1 AND active = TRUE ORDER BY day_of_week, start_time`
	var rules []models.WorkingHoursRule
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rules, query, tenantID); err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	return rules, nil
}

// ListExceptions returns exceptions overlapping [from, to).
func (r *AvailabilityRepository) ListExceptions(ctx context.Context, exec sqlx.ExtContext, tenantID string, from, to time.Time) ([]models.AvailabilityException, error) {
	const query = `SELECT id, tenant_id, staff_id, start_utc, end_utc, reason, created_at
FROM availability_exceptions WHERE tenant_id = $1 AND start_utc < $3 AND end_utc > $2 ORDER BY start_utc`
	var exceptions []models.AvailabilityException
	if err := sqlx.SelectContext(ctx, r.exec(exec), &exceptions, query, tenantID, from, to); err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return exceptions, nil
}

// CreateRule inserts a working hours rule.
func (r *AvailabilityRepository) CreateRule(ctx context.Context, exec sqlx.ExtContext, rule *models.WorkingHoursRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	const query = `INSERT INTO availability_templates (id, tenant_id, staff_id, day_of_week, start_time, end_time, active, created_at, updated_at)
		VALUES (:id, :tenant_id, :staff_id, :day_of_week, :start_time, :end_time, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, rule); err != nil {
		return fmt.Errorf("create working hours: %w", err)
	}
	return nil
}

// CreateException inserts an availability exception.
func (r *AvailabilityRepository) CreateException(ctx context.Context, exec sqlx.ExtContext, exception *models.AvailabilityException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO availability_exceptions (id, tenant_id, staff_id, start_utc, end_utc, reason, created_at)
		VALUES (:id, :tenant_id, :staff_id, :start_utc, :end_utc, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exception); err != nil {
		return fmt.Errorf("create availability exception: %w", err)
	}
	return nil
}
