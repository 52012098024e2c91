package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodGCash PaymentMethod = "gcash"
	PaymentMethodCash  PaymentMethod = "cash"
)

// NormalizePaymentMethod folds client-supplied tags so "Cash" and "cash" match.
func NormalizePaymentMethod(s string) PaymentMethod {
	return PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusPartial   TransactionStatus = "PARTIAL"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
)

func (s TransactionStatus) rank() int {
	switch s {
	case TransactionStatusPending:
		return 0
	case TransactionStatusPartial:
		return 1
	case TransactionStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving to next keeps the status monotonic.
func (s TransactionStatus) CanAdvanceTo(next TransactionStatus) bool {
	return next.rank() >= s.rank() && next.rank() >= 0
}

type Transaction struct {
	Base
	BookingID       uuid.UUID         `db:"booking_id" json:"booking_id"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	PaymentMethod   PaymentMethod     `db:"payment_method" json:"payment_method"`
	Status          TransactionStatus `db:"status" json:"status"`
	TransactionDate *time.Time        `db:"transaction_date" json:"transaction_date"`
}

// GatewayPayment is the part of a payment gateway callback the booking engine consumes.
type GatewayPayment struct {
	BookingID uuid.UUID       `json:"booking_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reference string          `json:"reference"`
}
