package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingStatus(t *testing.T) {
	status, err := ParseBookingStatus(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusConfirmed, status)

	_, err = ParseBookingStatus("Done")
	assert.Error(t, err)
}

func TestBookingTransitions(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		allowed  bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCompleted, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusPending, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusPending, BookingStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTransactionStatusIsMonotonic(t *testing.T) {
	assert.True(t, TransactionStatusPending.CanAdvanceTo(TransactionStatusCompleted))
	assert.True(t, TransactionStatusPartial.CanAdvanceTo(TransactionStatusCompleted))
	assert.True(t, TransactionStatusCompleted.CanAdvanceTo(TransactionStatusCompleted))
	assert.False(t, TransactionStatusCompleted.CanAdvanceTo(TransactionStatusPending))
	assert.False(t, TransactionStatusCompleted.CanAdvanceTo(TransactionStatusPartial))
}

func TestNormalizePaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentMethodCash, NormalizePaymentMethod(" Cash"))
	assert.Equal(t, PaymentMethodGCash, NormalizePaymentMethod("GCASH"))
}

func TestCustomerDisplayName(t *testing.T) {
	c := Customer{FirstName: "Ana", LastName: "Reyes"}
	assert.Equal(t, "Ana Reyes", c.DisplayName())
	assert.Equal(t, "A customer", (&Customer{}).DisplayName())
}
