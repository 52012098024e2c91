package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service, Provider and Customer are read-only projections of the directory
// owned by the profile and catalogue modules.
type Service struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ProviderID uuid.UUID       `db:"provider_id" json:"provider_id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
}

type Provider struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	BusinessName string     `db:"business_name" json:"business_name"`
}

type Customer struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
}

func (c *Customer) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return "A customer"
	}
	return name
}
