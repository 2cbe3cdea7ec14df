package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Term string

const (
	TermShort Term = "short"
	TermLong  Term = "long"
)

// TaxEvent is one disposal matched against one lot (or lot chunk).
type TaxEvent struct {
	Date              time.Time       `json:"date"`
	Asset             string          `json:"asset"`
	AmountDisposed    decimal.Decimal `json:"amountDisposed"`
	ProceedsUSD       decimal.Decimal `json:"proceedsUsd"`
	CostBasisUSD      decimal.Decimal `json:"costBasisUsd"`
	GainUSD           decimal.Decimal `json:"gainUsd"`
	HoldingPeriodDays int             `json:"holdingPeriodDays"`
	Term              Term            `json:"term"`

	DisposalID string `json:"-"`
	LotID      string `json:"-"`
}

// IncomeCategory is the ordinary-income sub-type of a receive.
type IncomeCategory string

const (
	IncomeMining  IncomeCategory = "mining"
	IncomeStaking IncomeCategory = "staking"
	IncomeAirdrop IncomeCategory = "airdrop"
	IncomeFork    IncomeCategory = "fork"
)

type IncomeEvent struct {
	TransactionID string
	Category      IncomeCategory
	Asset         string
	OccurredAt    time.Time
	USDValue      decimal.Decimal
}

type SkipReason string

const (
	SkipNoMatchingLot    SkipReason = "no_matching_lot"
	SkipInsufficientLots SkipReason = "insufficient_lots"
	SkipIgnoredType      SkipReason = "ignored_type"
	// SkipMissingUSDValue is informational: the transaction is still processed
	// with a zero value.
	SkipMissingUSDValue SkipReason = "missing_usd_value"
)

// SkippedEvent records why a transaction (or part of it) produced no tax effect.
type SkippedEvent struct {
	TransactionID string     `json:"transactionId"`
	Asset         string     `json:"asset"`
	OccurredAt    time.Time  `json:"occurredAt"`
	Reason        SkipReason `json:"reason"`
}

func NewSkippedEvent(tx Transaction, reason SkipReason) SkippedEvent {
	return SkippedEvent{
		TransactionID: tx.ID,
		Asset:         tx.Asset,
		OccurredAt:    tx.OccurredAt,
		Reason:        reason,
	}
}
