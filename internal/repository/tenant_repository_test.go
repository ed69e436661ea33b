package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTenantRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "business_name", "slug", "time_zone", "active", "created_at", "updated_at"}).
		AddRow("tenant-1", "owner-1", "Fade Studio", "fade-studio", "America/Chicago", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE id = $1 AND active = TRUE")).
		WithArgs("tenant-1").
		WillReturnRows(rows)

	tenant, err := repo.FindByID(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", tenant.TimeZone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepositoryListActiveStaff(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "user_id", "display_name", "role", "active", "created_at", "updated_at"}).
		AddRow("staff-a", "tenant-1", "user-a", "Ana", "staff", true, time.Now(), time.Now()).
		AddRow("staff-b", "tenant-1", "user-b", "Ben", "manager", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_accounts WHERE tenant_id = $1 AND active = TRUE ORDER BY id")).
		WithArgs("tenant-1").
		WillReturnRows(rows)

	staff, err := repo.ListActiveStaff(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, models.StaffRoleManager, staff[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepositoryIsMember(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs("tenant-1", "user-a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsMember(context.Background(), "tenant-1", "user-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepositoryCreateWithinTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").
		WithArgs(sqlmock.AnyArg(), "owner-1", "Fade Studio", "fade-studio", models.DefaultTimeZone, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO staff_accounts").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "user-a", "Ana", "staff", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	tenant := &models.Tenant{OwnerID: "owner-1", BusinessName: "Fade Studio", Slug: "fade-studio", Active: true}
	require.NoError(t, repo.Create(context.Background(), tx, tenant))
	require.NoError(t, repo.CreateStaff(context.Background(), tx, &models.Staff{TenantID: tenant.ID, UserID: "user-a", DisplayName: "Ana", Active: true}))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
