package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type notificationRepository struct {
	db sqlx.ExtContext
}

func NewNotificationRepository(db sqlx.ExtContext) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, type, reference_id, reference_type,
			message, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, reference_type, reference_id, type) DO NOTHING
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.ReferenceID,
		n.ReferenceType,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, type, reference_id, reference_type, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var notifications []*model.Notification
	if err := sqlx.SelectContext(ctx, r.db, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

type directoryRepository struct {
	db sqlx.ExtContext
}

func NewDirectoryRepository(db sqlx.ExtContext) repository.DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var svc model.Service
	err := sqlx.GetContext(ctx, r.db, &svc, `SELECT id, provider_id, name, price FROM services WHERE id = $1`, id)
	if err != nil {
		return nil, dbError("get service", "service", err)
	}
	return &svc, nil
}

func (r *directoryRepository) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	err := sqlx.GetContext(ctx, r.db, &p, `SELECT id, user_id, business_name FROM providers WHERE id = $1`, id)
	if err != nil {
		return nil, dbError("get provider", "provider", err)
	}
	return &p, nil
}

func (r *directoryRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, r.db, &c, `SELECT id, user_id, first_name, last_name FROM customers WHERE id = $1`, id)
	if err != nil {
		return nil, dbError("get customer", "customer", err)
	}
	return &c, nil
}
