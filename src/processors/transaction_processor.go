package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/security/validation"
)

const maxDescriptionLength = 500

// RowError describes an import row that could not be turned into a transaction.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

var occurredAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process validates and enriches raw rows. Rows missing an asset or a
// timestamp, or carrying unparsable or negative numbers, are returned as
// RowErrors; the rest become transactions with an id and a dedup hash.
func (p *TransactionProcessor) Process(rows []models.RawLedgerRow) ([]models.Transaction, []RowError) {
	var txs []models.Transaction
	var rowErrors []RowError

	for i, raw := range rows {
		rowNum := i + 1
		tx, err := normalizeRow(raw)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		tx.HashID = generateHash(tx)
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		txs = append(txs, tx)
	}
	return txs, rowErrors
}

func normalizeRow(raw models.RawLedgerRow) (models.Transaction, error) {
	tx := models.Transaction{
		ID:          strings.TrimSpace(raw.ID),
		Type:        strings.ToLower(strings.TrimSpace(raw.Type)),
		Asset:       strings.ToUpper(strings.TrimSpace(raw.Asset)),
		Description: validation.SanitizeText(raw.Description, maxDescriptionLength),
		Status:      strings.ToLower(strings.TrimSpace(raw.Status)),
	}
	if tx.Type == "" {
		return tx, fmt.Errorf("missing type")
	}
	if tx.Asset == "" {
		return tx, fmt.Errorf("missing asset")
	}
	if tx.Status == "" {
		tx.Status = models.StatusConfirmed
	}
	switch tx.Status {
	case models.StatusConfirmed, models.StatusPending, models.StatusFailed:
	default:
		return tx, fmt.Errorf("unknown status %q", raw.Status)
	}

	occurredAt, err := parseOccurredAt(raw.OccurredAt)
	if err != nil {
		return tx, err
	}
	tx.OccurredAt = occurredAt

	if tx.Amount, err = parseAmount("amount", raw.Amount); err != nil {
		return tx, err
	}
	if strings.TrimSpace(raw.USDValue) == "" {
		tx.USDValueMissing = true
	} else if tx.USDValue, err = parseAmount("usdValue", raw.USDValue); err != nil {
		return tx, err
	}
	if tx.FeeUSD, err = parseAmount("feeUsd", raw.FeeUSD); err != nil {
		return tx, err
	}
	return tx, nil
}

func parseOccurredAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing occurredAt")
	}
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid occurredAt %q", s)
}

// parseAmount treats an empty value as zero.
func parseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative %s %q", field, s)
	}
	return d, nil
}

// generateHash fingerprints the economic content of a transaction so that
// re-importing the same file does not duplicate rows.
func generateHash(tx models.Transaction) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		tx.ID, tx.OccurredAt.Format(time.RFC3339Nano), tx.Type, tx.Asset,
		tx.Amount.String(), tx.USDValue.String(), tx.FeeUSD.String(), tx.Description)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
