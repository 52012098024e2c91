package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
)

func TestComputeObligation(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	thousand := decimal.NewFromInt(1000)

	tests := []struct {
		name       string
		method     model.PaymentMethod
		full       bool
		total      decimal.Decimal
		wantAmount string
		wantStatus model.TransactionStatus
		wantStamp  bool
	}{
		{"gcash full", "gcash", true, thousand, "1000", model.TransactionStatusCompleted, true},
		{"gcash partial", "gcash", false, thousand, "500", model.TransactionStatusPartial, true},
		{"cash full flag", "cash", true, thousand, "1000", model.TransactionStatusPending, false},
		{"cash partial flag", "cash", false, thousand, "1000", model.TransactionStatusPending, false},
		{"mixed case", "GCash", false, decimal.NewFromInt(800), "400", model.TransactionStatusPartial, true},
		{"rounds half cents", "gcash", false, decimal.RequireFromString("100.01"), "50.01", model.TransactionStatusPartial, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ob, ok := ComputeObligation(tt.method, tt.full, tt.total, now)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(ob.Amount), "amount %s", ob.Amount)
			assert.Equal(t, tt.wantStatus, ob.Status)
			if tt.wantStamp {
				require.NotNil(t, ob.Timestamp)
				assert.Equal(t, now, *ob.Timestamp)
			} else {
				assert.Nil(t, ob.Timestamp)
			}
		})
	}
}

func TestComputeObligation_UnknownMethod(t *testing.T) {
	for _, method := range []model.PaymentMethod{"", "paypal", "card"} {
		_, ok := ComputeObligation(method, true, decimal.NewFromInt(10), time.Now())
		assert.False(t, ok, "method %q", method)
	}
}

func TestObligation_NewTransaction(t *testing.T) {
	bookingID := uuid.New()
	ob, ok := ComputeObligation("Cash", false, decimal.NewFromInt(250), time.Now())
	require.True(t, ok)

	txn := ob.NewTransaction(bookingID, "Cash")
	assert.Equal(t, bookingID, txn.BookingID)
	assert.Equal(t, model.PaymentMethodCash, txn.PaymentMethod)
	assert.Equal(t, model.TransactionStatusPending, txn.Status)
	assert.Nil(t, txn.TransactionDate)
}
