package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

const serviceColumns = `id, tenant_id, name, description, price_cents, duration_minutes, deposit_cents, full_pay_required, buffer_minutes, advance_booking_days, active, created_at, updated_at`

// ServiceRepository persists the services a tenant offers.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository constructs a ServiceRepository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID fetches an active service scoped to its tenant.
func (r *ServiceRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE tenant_id = $1 AND id = $2 AND active = TRUE`
	var service models.Service
	if err := r.db.GetContext(ctx, &service, query, tenantID, id); err != nil {
		return nil, err
	}
	return &service, nil
}

// Create inserts a service.
func (r *ServiceRepository) Create(ctx context.Context, exec sqlx.ExtContext, service *models.Service) error {
	if service.ID == "" {
		service.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if service.CreatedAt.IsZero() {
		service.CreatedAt = now
	}
	service.UpdatedAt = now

	const query = `INSERT INTO services (id, tenant_id, name, description, price_cents, duration_minutes, deposit_cents, full_pay_required, buffer_minutes, advance_booking_days, active, created_at, updated_at)
		VALUES (:id, :tenant_id, :name, :description, :price_cents, :duration_minutes, :deposit_cents, :full_pay_required, :buffer_minutes, :advance_booking_days, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, service); err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}
