package processors

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/models"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func txn(id string, at time.Time, typ, asset, amount, usd string) models.Transaction {
	return models.Transaction{
		ID:         id,
		OccurredAt: at,
		Type:       typ,
		Asset:      asset,
		Amount:     d(amount),
		USDValue:   d(usd),
		Status:     models.StatusConfirmed,
	}
}

func receive(id string, at time.Time, asset, amount, usd string) models.Transaction {
	return txn(id, at, models.TypeReceive, asset, amount, usd)
}

func send(id string, at time.Time, asset, amount, usd string) models.Transaction {
	return txn(id, at, models.TypeSend, asset, amount, usd)
}

func income(id string, at time.Time, asset, usd, description string) models.Transaction {
	tx := receive(id, at, asset, "1", usd)
	tx.Description = description
	return tx
}

func withFee(tx models.Transaction, fee string) models.Transaction {
	tx.FeeUSD = d(fee)
	return tx
}
