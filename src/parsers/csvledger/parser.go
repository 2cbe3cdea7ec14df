package csvledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/cryptotax/src/models"
)

// Header names accepted for each field, compared case-insensitively with
// spaces, dashes and underscores removed.
var columnAliases = map[string][]string{
	"id":          {"id", "transactionid", "txid"},
	"occurredAt":  {"occurredat", "date", "timestamp", "time"},
	"type":        {"type", "kind"},
	"asset":       {"asset", "symbol", "ticker", "currency"},
	"amount":      {"amount", "quantity", "qty"},
	"usdValue":    {"usdvalue", "valueusd", "usd"},
	"feeUsd":      {"feeusd", "fee", "fees"},
	"description": {"description", "memo", "note", "notes"},
	"status":      {"status"},
}

var requiredColumns = []string{"occurredAt", "type", "asset", "amount"}

type LedgerCSVParser struct{}

func NewParser() *LedgerCSVParser {
	return &LedgerCSVParser{}
}

// Parse reads a header row followed by one transaction per line. Blank lines
// are skipped; short lines leave their missing fields empty.
func (p *LedgerCSVParser) Parse(file io.Reader) ([]models.RawLedgerRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	rows := []models.RawLedgerRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if isBlank(record) {
			continue
		}
		get := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		rows = append(rows, models.RawLedgerRow{
			ID:          get("id"),
			OccurredAt:  get("occurredAt"),
			Type:        get("type"),
			Asset:       get("asset"),
			Amount:      get("amount"),
			USDValue:    get("usdValue"),
			FeeUSD:      get("feeUsd"),
			Description: get("description"),
			Status:      get("status"),
		})
	}
	return rows, nil
}

func mapColumns(header []string) (map[string]int, error) {
	lookup := make(map[string]string)
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			lookup[a] = field
		}
	}

	columns := make(map[string]int)
	for i, h := range header {
		key := normalizeHeader(h)
		if field, ok := lookup[key]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}

	var missing []string
	for _, field := range requiredColumns {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV header is missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(h)))
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
