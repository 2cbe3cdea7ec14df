package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FirstTaxYear is the earliest year a crypto ledger can hold activity for.
const FirstTaxYear = 2009

// TaxYearBounds returns the half-open UTC range [start, end) of a calendar tax year.
func TaxYearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// ParseTaxYear parses a year query parameter and checks it lies in
// [FirstTaxYear, now+1].
func ParseTaxYear(s string, now time.Time) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid tax year %q", s)
	}
	if err := ValidateTaxYear(year, now); err != nil {
		return 0, err
	}
	return year, nil
}

func ValidateTaxYear(year int, now time.Time) error {
	if year < FirstTaxYear || year > now.UTC().Year()+1 {
		return fmt.Errorf("tax year %d out of range [%d, %d]", year, FirstTaxYear, now.UTC().Year()+1)
	}
	return nil
}
