package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/booking-api/internal/model"
)

// DownPaymentRate is the share of the total a partial gcash payment covers.
var DownPaymentRate = decimal.NewFromFloat(0.5)

// Obligation is the transaction a booking owes at creation time.
type Obligation struct {
	Amount    decimal.Decimal
	Status    model.TransactionStatus
	Timestamp *time.Time
}

// ComputeObligation maps a payment method to the transaction recorded with a
// new booking. The second result is false when the method records nothing.
func ComputeObligation(method model.PaymentMethod, fullPayment bool, totalCost decimal.Decimal, now time.Time) (Obligation, bool) {
	switch model.NormalizePaymentMethod(string(method)) {
	case model.PaymentMethodGCash:
		ts := now
		if fullPayment {
			return Obligation{
				Amount:    totalCost.Round(2),
				Status:    model.TransactionStatusCompleted,
				Timestamp: &ts,
			}, true
		}
		return Obligation{
			Amount:    totalCost.Mul(DownPaymentRate).Round(2),
			Status:    model.TransactionStatusPartial,
			Timestamp: &ts,
		}, true
	case model.PaymentMethodCash:
		return Obligation{
			Amount: totalCost.Round(2),
			Status: model.TransactionStatusPending,
		}, true
	default:
		return Obligation{}, false
	}
}

// NewTransaction builds the transaction row for an obligation.
func (o Obligation) NewTransaction(bookingID uuid.UUID, method model.PaymentMethod) *model.Transaction {
	return &model.Transaction{
		BookingID:       bookingID,
		Amount:          o.Amount,
		PaymentMethod:   model.NormalizePaymentMethod(string(method)),
		Status:          o.Status,
		TransactionDate: o.Timestamp,
	}
}
