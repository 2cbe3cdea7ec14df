package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/models"
)

// Classifier labels a ledger transaction for the tax pipeline.
type Classifier interface {
	Classify(tx models.Transaction) Classification
}

// LotMatcher pairs disposals with acquisition lots. Implementations must keep
// all lot state local to one Match call.
type LotMatcher interface {
	Match(stream []ClassifiedTransaction) MatchResult
}

// FeeProcessor extracts fee-bearing transactions.
type FeeProcessor interface {
	Process(transactions []models.Transaction) []models.FeeDetail
	Total(details []models.FeeDetail) decimal.Decimal
}

// Totals are the unrounded sums behind a report.
type Totals struct {
	ShortTerm      decimal.Decimal
	LongTerm       decimal.Decimal
	OrdinaryIncome decimal.Decimal
	Fees           decimal.Decimal
}

// ReportAggregator folds matched events, income and fees into a TaxReport.
type ReportAggregator interface {
	Aggregate(taxYear int, events []models.TaxEvent, income []models.IncomeEvent, all []models.Transaction) (models.TaxReport, Totals)
}

// Recommender produces planning hints from the exact report totals.
type Recommender interface {
	Recommend(totals Totals, transactionCount int) []string
}

// TransactionNormalizer turns raw import rows into ledger transactions.
type TransactionNormalizer interface {
	Process(rows []models.RawLedgerRow) ([]models.Transaction, []RowError)
}
