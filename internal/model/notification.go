package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeBooking      = "booking"
	NotificationReferenceBooking = "booking"
)

type Notification struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Type          string    `db:"type" json:"type"`
	ReferenceID   uuid.UUID `db:"reference_id" json:"reference_id"`
	ReferenceType string    `db:"reference_type" json:"reference_type"`
	Message       string    `db:"message" json:"message"`
	IsRead        bool      `db:"is_read" json:"is_read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
