// Package model defines the core domain types for the coinsort engine.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense represents a single financial transaction to be categorized.
type Expense struct {
	OccurredAt   time.Time
	ID           string
	MerchantName string
	Description  string
	Amount       decimal.Decimal
}

// NewExpense creates an expense with a generated identity.
func NewExpense(merchantName, description string, amount decimal.Decimal, occurredAt time.Time) Expense {
	return Expense{
		ID:           uuid.NewString(),
		MerchantName: merchantName,
		Description:  description,
		Amount:       amount,
		OccurredAt:   occurredAt,
	}
}
