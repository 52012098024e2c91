package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// bookingTransitions lists the states reachable from each state.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted: nil,
	BookingStatusCancelled: nil,
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("unrecognized booking status %q", s)
	}
	return status, nil
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsActive reports whether a booking in this state holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s. Staying in the
// same state is not a transition.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	Base
	CustomerID    uuid.UUID       `db:"customer_id" json:"customer_id"`
	ServiceID     uuid.UUID       `db:"service_id" json:"service_id"`
	ProviderID    uuid.UUID       `db:"provider_id" json:"provider_id"`
	SlotID        *uuid.UUID      `db:"slot_id" json:"slot_id,omitempty"`
	BookingDate   Date            `db:"booking_date" json:"booking_date"`
	BookingTime   TimeOfDay       `db:"booking_time" json:"booking_time"`
	Status        BookingStatus   `db:"status" json:"status"`
	TotalCost     decimal.Decimal `db:"total_cost" json:"total_cost"`
	Note          *string         `db:"note" json:"note,omitempty"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	FullPayment   bool            `db:"full_payment" json:"full_payment"`
}

type BookingFilters struct {
	CustomerID *uuid.UUID
	ProviderID *uuid.UUID
	Status     *BookingStatus
}

type CreateBookingRequest struct {
	ServiceID     uuid.UUID  `json:"service_id" binding:"required"`
	CustomerID    *uuid.UUID `json:"customer_id"`
	BookingDate   string     `json:"booking_date" binding:"required,datetime=2006-01-02"`
	BookingTime   string     `json:"booking_time" binding:"required,time_of_day"`
	Note          *string    `json:"note" binding:"omitempty,max=1000"`
	PaymentMethod string     `json:"payment_method" binding:"omitempty,max=32"`
	FullPayment   bool       `json:"full_payment"`
}

type UpdateBookingRequest struct {
	BookingDate *string          `json:"booking_date" binding:"omitempty,datetime=2006-01-02"`
	BookingTime *string          `json:"booking_time" binding:"omitempty,time_of_day"`
	Status      *string          `json:"status"`
	TotalCost   *decimal.Decimal `json:"total_cost"`
	Note        *string          `json:"note" binding:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
