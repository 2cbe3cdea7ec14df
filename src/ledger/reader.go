package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/database"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/metrics"
	"github.com/username/cryptotax/src/models"
)

// ErrDataUnavailable means the ledger store could not be read. A computation
// that hits it must stop; no partial report may be produced.
var ErrDataUnavailable = errors.New("ledger data unavailable")

// Reader supplies a user's confirmed transactions for a time window,
// ordered by occurrence.
type Reader interface {
	FetchConfirmedTransactions(ctx context.Context, userID string, start, end time.Time) ([]models.Transaction, error)
}

const selectConfirmedSQL = `SELECT id, user_id, occurred_at, type, asset, amount, usd_value, fee_usd, description, status
FROM ledger_transactions
WHERE user_id = ? AND status = 'confirmed' AND occurred_at >= ? AND occurred_at < ?
ORDER BY occurred_at ASC, id ASC`

type SQLReader struct {
	db      *sql.DB
	dialect database.Dialect
	metrics *metrics.Metrics
}

func NewSQLReader(db *sql.DB, dialect database.Dialect, m *metrics.Metrics) *SQLReader {
	return &SQLReader{db: db, dialect: dialect, metrics: m}
}

// FetchConfirmedTransactions returns the confirmed transactions in [start, end).
// Rows without an asset or a usable timestamp are dropped and logged; NULL
// numeric columns read as zero.
func (r *SQLReader) FetchConfirmedTransactions(ctx context.Context, userID string, start, end time.Time) (txs []models.Transaction, err error) {
	began := time.Now()
	defer func() { r.metrics.LedgerRead(time.Since(began), err == nil) }()

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(selectConfirmedSQL),
		userID, r.dialect.TimeArg(start), r.dialect.TimeArg(end))
	if err != nil {
		return nil, fmt.Errorf("%w: querying transactions for user %s: %v", ErrDataUnavailable, userID, err)
	}
	defer rows.Close()

	txs = []models.Transaction{}
	for rows.Next() {
		var (
			tx                 models.Transaction
			occurredRaw        any
			asset, description sql.NullString
			amount, usd, fee   decimal.NullDecimal
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &occurredRaw, &tx.Type, &asset, &amount, &usd, &fee, &description, &tx.Status); err != nil {
			return nil, fmt.Errorf("%w: scanning transaction row: %v", ErrDataUnavailable, err)
		}

		tx.Asset = strings.TrimSpace(asset.String)
		if tx.Asset == "" {
			r.reject(tx.ID, "missing asset")
			continue
		}
		occurredAt, perr := database.ParseTime(occurredRaw)
		if perr != nil {
			r.reject(tx.ID, perr.Error())
			continue
		}
		tx.OccurredAt = occurredAt
		tx.Type = strings.ToLower(strings.TrimSpace(tx.Type))
		tx.Description = description.String
		if amount.Valid {
			tx.Amount = amount.Decimal
		}
		if usd.Valid {
			tx.USDValue = usd.Decimal
		} else {
			tx.USDValueMissing = true
		}
		if fee.Valid {
			tx.FeeUSD = fee.Decimal
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating transaction rows: %v", ErrDataUnavailable, err)
	}

	logger.L.Debug("Fetched confirmed transactions", "userID", userID, "count", len(txs), "start", start, "end", end)
	return txs, nil
}

func (r *SQLReader) reject(id, reason string) {
	r.metrics.LedgerRowRejected()
	logger.L.Warn("Rejected malformed ledger row", "transactionID", id, "reason", reason)
}
