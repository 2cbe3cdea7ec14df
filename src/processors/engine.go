package processors

import (
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/models"
)

// Engine runs classify, match, aggregate and recommend over one user's
// transactions for one tax year. It holds no per-computation state and may be
// shared between goroutines.
type Engine struct {
	classifier  Classifier
	matcher     LotMatcher
	aggregator  ReportAggregator
	recommender Recommender
}

func NewEngine(classifier Classifier, matcher LotMatcher, aggregator ReportAggregator, recommender Recommender) *Engine {
	return &Engine{
		classifier:  classifier,
		matcher:     matcher,
		aggregator:  aggregator,
		recommender: recommender,
	}
}

// NewDefaultEngine wires the keyword classifier, a FIFO matcher with policy,
// and the standard aggregator and recommendations.
func NewDefaultEngine(policy MatchPolicy) *Engine {
	return NewEngine(
		NewKeywordClassifier(),
		NewFIFOMatcher(policy),
		NewAggregator(NewFeeProcessor()),
		NewRecommendationGenerator(),
	)
}

// Run expects txs in ascending time order.
func (e *Engine) Run(taxYear int, txs []models.Transaction) (models.TaxReport, []models.SkippedEvent) {
	skipped := []models.SkippedEvent{}
	var income []models.IncomeEvent

	stream := ClassifyAll(e.classifier, txs)
	for _, ct := range stream {
		tx := ct.Tx
		if tx.USDValueMissing {
			skipped = append(skipped, models.NewSkippedEvent(tx, models.SkipMissingUSDValue))
		}
		switch ct.Classification.Kind {
		case KindOrdinaryIncome:
			income = append(income, models.IncomeEvent{
				TransactionID: tx.ID,
				Category:      ct.Classification.Category,
				Asset:         tx.Asset,
				OccurredAt:    tx.OccurredAt,
				USDValue:      tx.USDValue,
			})
		case KindIgnored:
			skipped = append(skipped, models.NewSkippedEvent(tx, models.SkipIgnoredType))
		}
	}

	matched := e.matcher.Match(stream)
	skipped = append(skipped, matched.Skipped...)
	for _, s := range skipped {
		logger.L.Debug("Transaction skipped", "transactionID", s.TransactionID, "asset", s.Asset, "reason", string(s.Reason))
	}

	report, totals := e.aggregator.Aggregate(taxYear, matched.Events, income, txs)
	report.Recommendations = e.recommender.Recommend(totals, len(txs))
	return report, skipped
}
