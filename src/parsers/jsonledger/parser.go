package jsonledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/username/cryptotax/src/models"
)

// jsonRow accepts numbers either as JSON numbers or as strings.
type jsonRow struct {
	ID          string          `json:"id"`
	OccurredAt  string          `json:"occurredAt"`
	Type        string          `json:"type"`
	Asset       string          `json:"asset"`
	Amount      json.RawMessage `json:"amount"`
	USDValue    json.RawMessage `json:"usdValue"`
	FeeUSD      json.RawMessage `json:"feeUsd"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
}

type envelope struct {
	Transactions []jsonRow `json:"transactions"`
}

type LedgerJSONParser struct{}

func NewParser() *LedgerJSONParser {
	return &LedgerJSONParser{}
}

// Parse accepts either a bare array of transactions or an object with a
// "transactions" array.
func (p *LedgerJSONParser) Parse(file io.Reader) ([]models.RawLedgerRow, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON file is empty")
	}

	var items []jsonRow
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode JSON array: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to decode JSON object: %w", err)
		}
		items = env.Transactions
	default:
		return nil, fmt.Errorf("JSON import must be an array or an object with a transactions field")
	}

	rows := make([]models.RawLedgerRow, 0, len(items))
	for i, item := range items {
		amount, err := numberText(item.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: amount: %w", i+1, err)
		}
		usd, err := numberText(item.USDValue)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: usdValue: %w", i+1, err)
		}
		fee, err := numberText(item.FeeUSD)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: feeUsd: %w", i+1, err)
		}
		rows = append(rows, models.RawLedgerRow{
			ID:          item.ID,
			OccurredAt:  item.OccurredAt,
			Type:        item.Type,
			Asset:       item.Asset,
			Amount:      amount,
			USDValue:    usd,
			FeeUSD:      fee,
			Description: item.Description,
			Status:      item.Status,
		})
	}
	return rows, nil
}

// numberText returns the literal text of a JSON number or string, keeping
// full decimal precision. null and absent values become "".
func numberText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", err
		}
		return strings.TrimSpace(str), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected a number, got %s", s)
	}
	return n.String(), nil
}
