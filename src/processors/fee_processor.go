package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/models"
)

type feeProcessorImpl struct{}

func NewFeeProcessor() FeeProcessor {
	return &feeProcessorImpl{}
}

// Process lists every transaction that carries a fee, whatever its type.
func (p *feeProcessorImpl) Process(transactions []models.Transaction) []models.FeeDetail {
	feeDetails := []models.FeeDetail{}
	for _, tx := range transactions {
		if tx.FeeUSD.IsZero() {
			continue
		}
		feeDetails = append(feeDetails, models.FeeDetail{
			TransactionID: tx.ID,
			Date:          tx.OccurredAt,
			Asset:         tx.Asset,
			Type:          tx.Type,
			AmountUSD:     tx.FeeUSD,
		})
	}
	return feeDetails
}

func (p *feeProcessorImpl) Total(details []models.FeeDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.AmountUSD)
	}
	return total
}
