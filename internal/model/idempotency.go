package model

import (
	"time"

	"github.com/google/uuid"
)

type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyStatusCompleted  IdempotencyStatus = "COMPLETED"
)

type IdempotencyKey struct {
	Key         string            `db:"key" json:"key"`
	RequestHash string            `db:"request_hash" json:"request_hash"`
	Status      IdempotencyStatus `db:"status" json:"status"`
	BookingID   *uuid.UUID        `db:"booking_id" json:"booking_id,omitempty"`
	LockedUntil time.Time         `db:"locked_until" json:"locked_until"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}
