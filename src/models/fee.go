package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeDetail is one fee-bearing ledger transaction.
type FeeDetail struct {
	TransactionID string          `json:"transactionId"`
	Date          time.Time       `json:"date"`
	Asset         string          `json:"asset"`
	Type          string          `json:"type"`
	AmountUSD     decimal.Decimal `json:"amountUsd"`
}
