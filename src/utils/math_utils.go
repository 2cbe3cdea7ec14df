package utils

import "github.com/shopspring/decimal"

// USDPlaces is the precision of reported dollar figures.
const USDPlaces = 2

// RoundUSD rounds to whole cents, half away from zero.
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDPlaces)
}
