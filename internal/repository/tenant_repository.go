package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

const (
	tenantColumns = `id, owner_id, business_name, slug, time_zone, active, created_at, updated_at`
	staffColumns  = `id, tenant_id, user_id, display_name, role, active, created_at, updated_at`
)

// TenantRepository manages tenants and their staff accounts.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository constructs a TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID fetches an active tenant.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND active = TRUE`
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListActiveStaff returns the tenant's active staff ordered by id.
func (r *TenantRepository) ListActiveStaff(ctx context.Context, tenantID string) ([]models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE tenant_id = $1 AND active = TRUE ORDER BY id`
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, tenantID); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// FindStaff fetches an active staff member belonging to the tenant.
func (r *TenantRepository) FindStaff(ctx context.Context, tenantID, staffID string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE tenant_id = $1 AND id = $2 AND active = TRUE`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, tenantID, staffID); err != nil {
		return nil, err
	}
	return &staff, nil
}

// IsMember reports whether userID owns the tenant or holds an active staff account in it.
func (r *TenantRepository) IsMember(ctx context.Context, tenantID, userID string) (bool, error) {
	const query = `SELECT EXISTS (
	SELECT 1 FROM tenants WHERE id = $1 AND owner_id = $2
	UNION ALL
	SELECT 1 FROM staff_accounts WHERE tenant_id = $1 AND user_id = $2 AND active = TRUE
)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, tenantID, userID); err != nil {
		return false, fmt.Errorf("check tenant membership: %w", err)
	}
	return ok, nil
}

// Create inserts a tenant.
func (r *TenantRepository) Create(ctx context.Context, exec sqlx.ExtContext, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.TimeZone == "" {
		tenant.TimeZone = models.DefaultTimeZone
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	const query = `INSERT INTO tenants (id, owner_id, business_name, slug, time_zone, active, created_at, updated_at)
		VALUES (:id, :owner_id, :business_name, :slug, :time_zone, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, tenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// CreateStaff inserts a staff account.
func (r *TenantRepository) CreateStaff(ctx context.Context, exec sqlx.ExtContext, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	if staff.Role == "" {
		staff.Role = models.StaffRoleStaff
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now

	const query = `INSERT INTO staff_accounts (id, tenant_id, user_id, display_name, role, active, created_at, updated_at)
		VALUES (:id, :tenant_id, :user_id, :display_name, :role, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}
