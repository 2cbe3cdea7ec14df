package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/processors"
)

var (
	ErrInvalidTaxYear   = errors.New("invalid tax year")
	ErrParsingFailed    = errors.New("failed to parse import file")
	ErrProcessingFailed = errors.New("failed to process import")
	ErrImportConflict   = errors.New("import conflicts with stored transactions")
)

// Computation is one pipeline run: the report plus what was left out of it.
type Computation struct {
	Report  models.TaxReport      `json:"report"`
	Skipped []models.SkippedEvent `json:"skipped"`
}

// UserReport is one entry of a batch computation.
type UserReport struct {
	UserID string           `json:"userId"`
	Report models.TaxReport `json:"report"`
}

// TaxReportService computes tax reports from the ledger.
type TaxReportService interface {
	GetTaxReport(ctx context.Context, userID string, taxYear int) (*models.TaxReport, error)
	Compute(ctx context.Context, userID string, taxYear int) (*Computation, error)
	ComputeBatch(ctx context.Context, userIDs []string, taxYear int) ([]UserReport, error)
	Skipped(ctx context.Context, userID string, taxYear int) ([]models.SkippedEvent, error)
	InvalidateUserCache(userID string)
}

// ImportResult summarises an import request.
type ImportResult struct {
	Source     string                `json:"source"`
	Rows       int                   `json:"rows"`
	Inserted   int                   `json:"inserted"`
	Duplicates int                   `json:"duplicates"`
	RowErrors  []processors.RowError `json:"rowErrors"`
}

// ImportService loads ledger files into the store.
type ImportService interface {
	Import(ctx context.Context, userID, source string, r io.Reader) (*ImportResult, error)
}

// cacheInvalidator is the part of TaxReportService an import needs.
type cacheInvalidator interface {
	InvalidateUserCache(userID string)
}
