package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/utils"
)

type Aggregator struct {
	fees FeeProcessor
}

func NewAggregator(fees FeeProcessor) *Aggregator {
	if fees == nil {
		fees = NewFeeProcessor()
	}
	return &Aggregator{fees: fees}
}

// Aggregate builds the report for one tax year. Recommendations are left
// empty for the Recommender to fill in. USD figures are rounded to cents
// after summing; comparisons use the exact sums, which are returned as Totals.
func (a *Aggregator) Aggregate(taxYear int, events []models.TaxEvent, income []models.IncomeEvent, all []models.Transaction) (models.TaxReport, Totals) {
	shortEvents := []models.TaxEvent{}
	longEvents := []models.TaxEvent{}
	shortTerm, longTerm := decimal.Zero, decimal.Zero
	for _, e := range events {
		if e.Term == models.TermLong {
			longTerm = longTerm.Add(e.GainUSD)
			longEvents = append(longEvents, roundEvent(e))
		} else {
			shortTerm = shortTerm.Add(e.GainUSD)
			shortEvents = append(shortEvents, roundEvent(e))
		}
	}

	var mining, staking, airdrops, forks decimal.Decimal
	for _, inc := range income {
		switch inc.Category {
		case models.IncomeMining:
			mining = mining.Add(inc.USDValue)
		case models.IncomeStaking:
			staking = staking.Add(inc.USDValue)
		case models.IncomeAirdrop:
			airdrops = airdrops.Add(inc.USDValue)
		case models.IncomeFork:
			forks = forks.Add(inc.USDValue)
		}
	}
	// Fork income is shown in its own bucket but stays out of every total.
	ordinaryTotal := mining.Add(staking).Add(airdrops)
	if !forks.IsZero() {
		logger.L.Warn("Fork income excluded from ordinary income totals", "taxYear", taxYear, "forksUsd", forks.String())
	}

	fees := a.fees.Total(a.fees.Process(all))
	hasGains := shortTerm.IsPositive() || longTerm.IsPositive()
	totalTaxable := shortTerm.Add(longTerm).Add(ordinaryTotal)

	totals := Totals{
		ShortTerm:      shortTerm,
		LongTerm:       longTerm,
		OrdinaryIncome: ordinaryTotal,
		Fees:           fees,
	}
	report := models.TaxReport{
		TaxYear: taxYear,
		Summary: models.ReportSummary{
			TotalTransactions:     len(all),
			TaxableEvents:         len(events),
			ShortTermCapitalGains: utils.RoundUSD(shortTerm),
			LongTermCapitalGains:  utils.RoundUSD(longTerm),
			OrdinaryIncome:        utils.RoundUSD(ordinaryTotal),
			TotalTaxableIncome:    utils.RoundUSD(totalTaxable),
		},
		CapitalGains: models.CapitalGains{
			ShortTerm: models.GainBucket{TotalGain: utils.RoundUSD(shortTerm), Events: shortEvents},
			LongTerm:  models.GainBucket{TotalGain: utils.RoundUSD(longTerm), Events: longEvents},
		},
		OrdinaryIncome: models.OrdinaryIncome{
			Mining:   utils.RoundUSD(mining),
			Staking:  utils.RoundUSD(staking),
			Airdrops: utils.RoundUSD(airdrops),
			Forks:    utils.RoundUSD(forks),
			Total:    utils.RoundUSD(ordinaryTotal),
		},
		Deductions: models.Deductions{
			TransactionFees: utils.RoundUSD(fees),
			Total:           utils.RoundUSD(fees),
		},
		Forms: models.FormRequirements{
			Form8949Required: hasGains,
			ScheduleD:        hasGains,
			Schedule1:        ordinaryTotal.IsPositive(),
		},
		Recommendations: []string{},
	}
	return report, totals
}

func roundEvent(e models.TaxEvent) models.TaxEvent {
	e.ProceedsUSD = utils.RoundUSD(e.ProceedsUSD)
	e.CostBasisUSD = utils.RoundUSD(e.CostBasisUSD)
	e.GainUSD = utils.RoundUSD(e.GainUSD)
	return e
}
