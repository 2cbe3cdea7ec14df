package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/database"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/models"
)

// Writer persists imported transactions.
type Writer interface {
	InsertTransactions(ctx context.Context, userID string, txs []models.Transaction) (InsertResult, error)
}

type InsertResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

const insertTransactionSQL = `INSERT INTO ledger_transactions (id, user_id, occurred_at, type, asset, amount, usd_value, fee_usd, description, status, hash_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, hash_id) DO NOTHING`

const selectHashSQL = `SELECT hash_id FROM ledger_transactions WHERE user_id = ? AND id = ?`

// ErrIDConflict means an imported row reuses the id of a stored row of the
// same user with different content.
var ErrIDConflict = errors.New("transaction id already imported with different content")

type SQLWriter struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQLWriter(db *sql.DB, dialect database.Dialect) *SQLWriter {
	return &SQLWriter{db: db, dialect: dialect}
}

// InsertTransactions stores txs for userID in one database transaction.
// Rows whose hash was already imported for the user are counted as duplicates.
func (w *SQLWriter) InsertTransactions(ctx context.Context, userID string, txs []models.Transaction) (InsertResult, error) {
	var result InsertResult
	if len(txs) == 0 {
		return result, nil
	}

	dbTx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, w.dialect.Rebind(insertTransactionSQL))
	if err != nil {
		return result, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	hashStmt, err := dbTx.PrepareContext(ctx, w.dialect.Rebind(selectHashSQL))
	if err != nil {
		return result, fmt.Errorf("error preparing hash lookup: %w", err)
	}
	defer hashStmt.Close()

	for _, tx := range txs {
		var storedHash string
		err := hashStmt.QueryRowContext(ctx, userID, tx.ID).Scan(&storedHash)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return result, fmt.Errorf("error looking up transaction (ID: %s): %w", tx.ID, err)
		case storedHash != tx.HashID:
			return InsertResult{}, fmt.Errorf("%w: %s", ErrIDConflict, tx.ID)
		}

		usd := decimal.NullDecimal{Decimal: tx.USDValue, Valid: !tx.USDValueMissing}
		res, err := stmt.ExecContext(ctx,
			tx.ID, userID, w.dialect.TimeArg(tx.OccurredAt), tx.Type, tx.Asset,
			tx.Amount, usd, tx.FeeUSD, tx.Description, tx.Status, tx.HashID)
		if err != nil {
			return result, fmt.Errorf("error inserting transaction (ID: %s): %w", tx.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("error reading insert result (ID: %s): %w", tx.ID, err)
		}
		if n == 0 {
			logger.L.Debug("Skipping duplicate transaction on import", "userID", userID, "hash_id", tx.HashID)
			result.Duplicates++
			continue
		}
		result.Inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return result, fmt.Errorf("error committing transactions: %w", err)
	}
	return result, nil
}
