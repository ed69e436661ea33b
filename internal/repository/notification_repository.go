package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RaMarWilson1/bookbetter/internal/models"
)

// NotificationRepository stores delivery records of booking events.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a pending notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = models.NotificationStatusPending
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	const query = `INSERT INTO notifications (id, booking_id, event, channel, status, attempts, created_at, updated_at)
		VALUES (:id, :booking_id, :event, :channel, :status, :attempts, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery after attempts tries.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, attempts int) error {
	now := time.Now().UTC()
	const query = `UPDATE notifications SET status = $2, attempts = $3, last_error = NULL, sent_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(models.NotificationStatusSent), attempts, now); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records the latest delivery error.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, attempts int, cause string) error {
	const query = `UPDATE notifications SET status = $2, attempts = $3, last_error = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(models.NotificationStatusFailed), attempts, cause, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
