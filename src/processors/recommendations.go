package processors

import (
	"github.com/shopspring/decimal"
)

const (
	RecommendHoldLonger        = "Consider holding assets longer than one year to qualify for lower long-term capital gains rates."
	RecommendQuarterlyPayments = "Your ordinary income from crypto exceeds $5,000. Consider making quarterly estimated tax payments."
	RecommendDocumentFees      = "You paid significant transaction fees. Make sure to document them, as they may be deductible."
	RecommendProfessionalHelp  = "With over 100 transactions, consider using professional tax software or consulting a tax advisor."
	RecommendKeepRecords       = "Keep detailed records of all crypto transactions, including dates, amounts, and fair market values."
	RecommendHarvestLosses     = "Review your portfolio for tax-loss harvesting opportunities before year end."
)

var (
	quarterlyIncomeThreshold = decimal.NewFromInt(5000)
	significantFeeThreshold  = decimal.NewFromInt(1000)
)

const professionalHelpTxThreshold = 100

type RecommendationGenerator struct{}

func NewRecommendationGenerator() *RecommendationGenerator {
	return &RecommendationGenerator{}
}

// Recommend evaluates every rule in a fixed order and always ends with the two
// closing reminders.
func (g *RecommendationGenerator) Recommend(totals Totals, transactionCount int) []string {
	recs := []string{}

	if totals.ShortTerm.GreaterThan(totals.LongTerm.Mul(decimal.NewFromInt(2))) {
		recs = append(recs, RecommendHoldLonger)
	}
	if totals.OrdinaryIncome.GreaterThan(quarterlyIncomeThreshold) {
		recs = append(recs, RecommendQuarterlyPayments)
	}
	if totals.Fees.GreaterThan(significantFeeThreshold) {
		recs = append(recs, RecommendDocumentFees)
	}
	if transactionCount > professionalHelpTxThreshold {
		recs = append(recs, RecommendProfessionalHelp)
	}

	return append(recs, RecommendKeepRecords, RecommendHarvestLosses)
}
