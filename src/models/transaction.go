package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Report consumers expect JSON numbers, not quoted decimal strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Ledger transaction types.
const (
	TypeSend    = "send"
	TypeReceive = "receive"
	TypeSwap    = "swap"
)

// Ledger transaction statuses. Only confirmed rows take part in a tax computation.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Transaction is one on-chain ledger entry. It is immutable once confirmed.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Type        string          `json:"type"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	USDValue    decimal.Decimal `json:"usdValue"`
	FeeUSD      decimal.Decimal `json:"feeUsd"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	HashID      string          `json:"hashId,omitempty"`

	// USDValueMissing is set by the ledger reader when the stored usd_value was
	// NULL and USDValue was defaulted to zero.
	USDValueMissing bool `json:"-"`
}

// RawLedgerRow is a ledger record as it arrives from an import file, before
// any value is parsed.
type RawLedgerRow struct {
	ID          string `json:"id"`
	OccurredAt  string `json:"occurredAt"`
	Type        string `json:"type"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	USDValue    string `json:"usdValue"`
	FeeUSD      string `json:"feeUsd"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Lot is an acquisition record held only for the duration of one computation.
// Remaining and RemainingCost shrink as disposals consume the lot; Amount and
// CostUSD keep the values at acquisition.
type Lot struct {
	TransactionID string
	Asset         string
	Amount        decimal.Decimal
	Remaining     decimal.Decimal
	CostUSD       decimal.Decimal
	RemainingCost decimal.Decimal
	AcquiredAt    time.Time
}

// NewLot opens a lot for an acquisition transaction.
func NewLot(tx Transaction) *Lot {
	return &Lot{
		TransactionID: tx.ID,
		Asset:         tx.Asset,
		Amount:        tx.Amount,
		Remaining:     tx.Amount,
		CostUSD:       tx.USDValue,
		RemainingCost: tx.USDValue,
		AcquiredAt:    tx.OccurredAt,
	}
}

// Exhausted reports whether nothing is left to consume.
func (l *Lot) Exhausted() bool {
	return !l.Remaining.IsPositive()
}
