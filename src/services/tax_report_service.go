package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cryptotax/src/ledger"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/metrics"
	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/processors"
	"github.com/username/cryptotax/src/utils"
	"golang.org/x/sync/errgroup"
)

const (
	ckTaxReport           = "tax_report_user_%s_year_%d"
	ckTaxReportUserPrefix = "tax_report_user_%s_year_"
)

type taxReportServiceImpl struct {
	reader           ledger.Reader
	engine           *processors.Engine
	reportCache      *cache.Cache
	metrics          *metrics.Metrics
	batchConcurrency int
	now              func() time.Time
}

// NewTaxReportService wires a reader and an engine. reportCache holds
// Computation values keyed per user and year; m may be nil.
func NewTaxReportService(
	reader ledger.Reader,
	engine *processors.Engine,
	reportCache *cache.Cache,
	m *metrics.Metrics,
	batchConcurrency int,
) TaxReportService {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	return &taxReportServiceImpl{
		reader:           reader,
		engine:           engine,
		reportCache:      reportCache,
		metrics:          m,
		batchConcurrency: batchConcurrency,
		now:              time.Now,
	}
}

func (s *taxReportServiceImpl) GetTaxReport(ctx context.Context, userID string, taxYear int) (*models.TaxReport, error) {
	c, err := s.cachedComputation(ctx, userID, taxYear)
	if err != nil {
		return nil, err
	}
	report := cloneReport(c.Report)
	return &report, nil
}

// cloneReport copies the slices of a cached report so callers cannot change
// the cached value.
func cloneReport(r models.TaxReport) models.TaxReport {
	r.CapitalGains.ShortTerm.Events = slices.Clone(r.CapitalGains.ShortTerm.Events)
	r.CapitalGains.LongTerm.Events = slices.Clone(r.CapitalGains.LongTerm.Events)
	r.Recommendations = slices.Clone(r.Recommendations)
	return r
}

// cachedComputation returns the cached run for (userID, taxYear) or computes
// and stores it. Skipped events are cached alongside so both endpoints agree.
func (s *taxReportServiceImpl) cachedComputation(ctx context.Context, userID string, taxYear int) (*Computation, error) {
	cacheKey := fmt.Sprintf(ckTaxReport, userID, taxYear)
	if cached, found := s.reportCache.Get(cacheKey); found {
		s.metrics.CacheHit()
		logger.L.Debug("Cache hit for tax report", "userID", userID, "taxYear", taxYear)
		return cached.(*Computation), nil
	}
	s.metrics.CacheMiss()
	logger.L.Debug("Cache miss for tax report, computing", "userID", userID, "taxYear", taxYear)

	c, err := s.Compute(ctx, userID, taxYear)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, c, cache.DefaultExpiration)
	return c, nil
}

func (s *taxReportServiceImpl) Compute(ctx context.Context, userID string, taxYear int) (*Computation, error) {
	if err := utils.ValidateTaxYear(taxYear, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaxYear, err)
	}
	startTime := time.Now()

	start, end := utils.TaxYearBounds(taxYear)
	txs, err := s.reader.FetchConfirmedTransactions(ctx, userID, start, end)
	if err != nil {
		logger.L.Error("Ledger read failed", "userID", userID, "taxYear", taxYear, "error", err)
		if errors.Is(err, ledger.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ledger.ErrDataUnavailable, err)
	}

	report, skipped := s.engine.Run(taxYear, txs)

	s.metrics.ReportComputed()
	for _, sk := range skipped {
		s.metrics.SkippedEvent(string(sk.Reason))
	}
	logger.L.Info("Tax report computed",
		"userID", userID,
		"taxYear", taxYear,
		"transactions", len(txs),
		"events", len(report.CapitalGains.ShortTerm.Events)+len(report.CapitalGains.LongTerm.Events),
		"skipped", len(skipped),
		"duration", time.Since(startTime))

	return &Computation{Report: report, Skipped: skipped}, nil
}

// ComputeBatch runs one pipeline per user, at most batchConcurrency at a time.
// Results keep the order of userIDs. The first failure cancels the rest.
func (s *taxReportServiceImpl) ComputeBatch(ctx context.Context, userIDs []string, taxYear int) ([]UserReport, error) {
	if err := utils.ValidateTaxYear(taxYear, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaxYear, err)
	}

	results := make([]UserReport, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)

	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			c, err := s.cachedComputation(gctx, userID, taxYear)
			if err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
			results[i] = UserReport{UserID: userID, Report: cloneReport(c.Report)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.L.Info("Batch tax reports computed", "users", len(userIDs), "taxYear", taxYear)
	return results, nil
}

// Skipped returns the skipped events of the cached run for (userID, taxYear).
func (s *taxReportServiceImpl) Skipped(ctx context.Context, userID string, taxYear int) ([]models.SkippedEvent, error) {
	c, err := s.cachedComputation(ctx, userID, taxYear)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.Skipped), nil
}

// InvalidateUserCache drops every cached report of the user.
func (s *taxReportServiceImpl) InvalidateUserCache(userID string) {
	prefix := fmt.Sprintf(ckTaxReportUserPrefix, userID)
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
	logger.L.Info("Invalidated tax report caches for user", "userID", userID)
}
