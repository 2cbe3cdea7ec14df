package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/username/cryptotax/src/ledger"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/metrics"
	"github.com/username/cryptotax/src/parsers"
	"github.com/username/cryptotax/src/processors"
)

type importServiceImpl struct {
	transactionProcessor processors.TransactionNormalizer
	writer               ledger.Writer
	reports              cacheInvalidator
	metrics              *metrics.Metrics
}

func NewImportService(
	transactionProcessor processors.TransactionNormalizer,
	writer ledger.Writer,
	reports TaxReportService,
	m *metrics.Metrics,
) ImportService {
	return &importServiceImpl{
		transactionProcessor: transactionProcessor,
		writer:               writer,
		reports:              reports,
		metrics:              m,
	}
}

// Import parses r as source ("csv" or "json"), stores the valid rows for
// userID and drops the user's cached reports when anything new was stored.
// Invalid rows do not fail the import; they are returned in RowErrors.
func (s *importServiceImpl) Import(ctx context.Context, userID, source string, r io.Reader) (*ImportResult, error) {
	startTime := time.Now()
	source = strings.ToLower(strings.TrimSpace(source))
	logger.L.Info("Import START", "userID", userID, "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	rawRows, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	txs, rowErrors := s.transactionProcessor.Process(rawRows)
	result := &ImportResult{
		Source:    source,
		Rows:      len(rawRows),
		RowErrors: rowErrors,
	}
	if result.RowErrors == nil {
		result.RowErrors = []processors.RowError{}
	}
	s.metrics.ImportedRows(source, "rejected", len(rowErrors))

	if len(txs) > 0 {
		inserted, err := s.writer.InsertTransactions(ctx, userID, txs)
		if errors.Is(err, ledger.ErrIDConflict) {
			logger.L.Warn("Import rejected, transaction id reused", "userID", userID, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrImportConflict, err)
		}
		if err != nil {
			logger.L.Error("Failed to store imported transactions", "userID", userID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
		}
		result.Inserted = inserted.Inserted
		result.Duplicates = inserted.Duplicates
		s.metrics.ImportedRows(source, "inserted", inserted.Inserted)
		s.metrics.ImportedRows(source, "duplicate", inserted.Duplicates)
	}

	if result.Inserted > 0 {
		s.reports.InvalidateUserCache(userID)
	}

	logger.L.Info("Import END",
		"userID", userID,
		"rows", result.Rows,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"rejected", len(result.RowErrors),
		"duration", time.Since(startTime))
	return result, nil
}
