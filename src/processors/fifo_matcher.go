package processors

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/models"
)

// LongTermThresholdDays is the longest holding period that is still short term.
const LongTermThresholdDays = 365

type MatchPolicy string

const (
	// PolicyWhole pops the oldest lot for every disposal regardless of amounts.
	PolicyWhole MatchPolicy = "whole"
	// PolicySplit consumes lots by quantity and prorates proceeds and cost.
	PolicySplit MatchPolicy = "split"
)

func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyWhole, "":
		return PolicyWhole, nil
	case PolicySplit:
		return PolicySplit, nil
	default:
		return "", fmt.Errorf("unknown lot matching policy %q", s)
	}
}

type MatchResult struct {
	Events  []models.TaxEvent
	Skipped []models.SkippedEvent
	// OpenLots holds what is left of each asset's queue after the last disposal.
	OpenLots map[string][]*models.Lot
}

type FIFOMatcher struct {
	policy MatchPolicy
}

func NewFIFOMatcher(policy MatchPolicy) *FIFOMatcher {
	if policy != PolicySplit {
		policy = PolicyWhole
	}
	return &FIFOMatcher{policy: policy}
}

func (m *FIFOMatcher) Policy() MatchPolicy { return m.policy }

// Match walks the stream in order, which must already be ascending by time.
// Only acquisitions and disposals are looked at.
func (m *FIFOMatcher) Match(stream []ClassifiedTransaction) MatchResult {
	lotsByAsset := make(map[string][]*models.Lot)
	result := MatchResult{Events: []models.TaxEvent{}}

	for _, ct := range stream {
		tx := ct.Tx
		switch ct.Classification.Kind {
		case KindAcquisition:
			lotsByAsset[tx.Asset] = append(lotsByAsset[tx.Asset], models.NewLot(tx))

		case KindDisposal:
			queue := lotsByAsset[tx.Asset]
			if len(queue) == 0 {
				result.Skipped = append(result.Skipped, models.NewSkippedEvent(tx, models.SkipNoMatchingLot))
				continue
			}

			var events []models.TaxEvent
			var short bool
			if m.policy == PolicySplit && tx.Amount.IsPositive() {
				events, queue, short = consumeSplit(tx, queue)
			} else {
				events, queue = consumeWhole(tx, queue)
			}
			lotsByAsset[tx.Asset] = queue
			result.Events = append(result.Events, events...)
			if short {
				reason := models.SkipInsufficientLots
				if len(events) == 0 {
					reason = models.SkipNoMatchingLot
				}
				result.Skipped = append(result.Skipped, models.NewSkippedEvent(tx, reason))
			}
		}
	}

	result.OpenLots = lotsByAsset
	return result
}

// consumeWhole matches the whole disposal against the head lot, whatever the
// two amounts are, and removes that lot.
func consumeWhole(tx models.Transaction, queue []*models.Lot) ([]models.TaxEvent, []*models.Lot) {
	lot := queue[0]
	event := newTaxEvent(tx, lot, tx.Amount, tx.USDValue, lot.RemainingCost)
	lot.Remaining = decimal.Zero
	lot.RemainingCost = decimal.Zero
	return []models.TaxEvent{event}, queue[1:]
}

// consumeSplit takes quantity from the head of the queue until the disposal is
// covered. A partially used lot stays at the head with its remaining quantity
// and cost reduced. short reports that lots ran out first.
func consumeSplit(tx models.Transaction, queue []*models.Lot) (events []models.TaxEvent, rest []*models.Lot, short bool) {
	remaining := tx.Amount
	proceedsLeft := tx.USDValue

	for remaining.IsPositive() && len(queue) > 0 {
		lot := queue[0]
		if lot.Exhausted() {
			queue = queue[1:]
			continue
		}

		take := decimal.Min(remaining, lot.Remaining)

		proceeds := proceedsLeft
		if take.LessThan(remaining) {
			proceeds = tx.USDValue.Mul(take).Div(tx.Amount)
		}
		cost := lot.RemainingCost
		if take.LessThan(lot.Remaining) {
			cost = lot.RemainingCost.Mul(take).Div(lot.Remaining)
		}

		events = append(events, newTaxEvent(tx, lot, take, proceeds, cost))

		remaining = remaining.Sub(take)
		proceedsLeft = proceedsLeft.Sub(proceeds)
		lot.Remaining = lot.Remaining.Sub(take)
		lot.RemainingCost = lot.RemainingCost.Sub(cost)
		if lot.Exhausted() {
			queue = queue[1:]
		}
	}
	return events, queue, remaining.IsPositive()
}

func newTaxEvent(tx models.Transaction, lot *models.Lot, amount, proceeds, cost decimal.Decimal) models.TaxEvent {
	days := HoldingPeriodDays(lot.AcquiredAt, tx.OccurredAt)
	return models.TaxEvent{
		Date:              tx.OccurredAt,
		Asset:             tx.Asset,
		AmountDisposed:    amount,
		ProceedsUSD:       proceeds,
		CostBasisUSD:      cost,
		GainUSD:           proceeds.Sub(cost),
		HoldingPeriodDays: days,
		Term:              TermFor(days),
		DisposalID:        tx.ID,
		LotID:             lot.TransactionID,
	}
}

// HoldingPeriodDays counts whole 24-hour days between acquisition and disposal.
func HoldingPeriodDays(acquiredAt, disposedAt time.Time) int {
	return int(math.Floor(disposedAt.Sub(acquiredAt).Hours() / 24))
}

// TermFor is long only for holdings strictly longer than LongTermThresholdDays.
func TermFor(holdingDays int) models.Term {
	if holdingDays > LongTermThresholdDays {
		return models.TermLong
	}
	return models.TermShort
}
