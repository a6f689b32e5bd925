package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/models"
)

const (
	// scanPageSize is the backend page size used while scanning. Sized well
	// above normal page sizes to keep the round-trip count low.
	scanPageSize = 1000
	// maxScanPages bounds the scan loop. Hitting it is an error, never a
	// silent truncation.
	maxScanPages = 1000
)

// ErrScanLimitExceeded is returned when the backend still reports more pages
// after maxScanPages fetches. The tasks collected so far accompany the error
// so the caller can warn about incomplete results instead of showing nothing.
var ErrScanLimitExceeded = errors.New("exhaustive scan exceeded the page limit, results are incomplete")

// PageFetcher is the remote pagination primitive the engine is built on.
// It issues exactly one backend query; the backend applies every filter in
// the criteria except the month/year tokens, which it does not support.
type PageFetcher interface {
	FetchPage(ctx context.Context, criteria Criteria) (*models.TaskPage, error)
}

// Scanner assembles complete filtered task sets by walking every backend
// page of a query. It exists because the backend cannot filter by calendar
// month or year; it is also reused to build the full population behind the
// project summaries when only backend-supported filters are active.
type Scanner struct {
	fetcher PageFetcher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewScanner creates a scanner over the given fetcher.
func NewScanner(fetcher PageFetcher, log *slog.Logger, mtr *metrics.Metrics) *Scanner {
	return &Scanner{fetcher: fetcher, log: log, metrics: mtr}
}

// ScanAll fetches every backend page for the criteria's backend-supported
// filters and returns the concatenated tasks in backend sort order. The
// requests run strictly sequentially. When the page limit is hit the tasks
// fetched so far are returned together with ErrScanLimitExceeded.
func (s *Scanner) ScanAll(ctx context.Context, criteria Criteria) ([]models.Task, error) {
	var tasks []models.Task

	page := criteria
	page.Size = scanPageSize

	for index := 0; ; index++ {
		if index >= maxScanPages {
			s.log.ErrorContext(ctx, "Scan page limit reached, aborting",
				"limit", maxScanPages, "collected", len(tasks))
			s.metrics.ScanPages.Observe(float64(index))
			s.metrics.ScanLimitHits.Inc()
			return tasks, ErrScanLimitExceeded
		}

		page.Page = index
		envelope, err := s.fetcher.FetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch scan page %d: %w", index, err)
		}

		tasks = append(tasks, envelope.Content...)

		if index >= envelope.TotalPages-1 || len(envelope.Content) == 0 {
			s.metrics.ScanPages.Observe(float64(index + 1))
			break
		}
	}

	s.log.DebugContext(ctx, "Scan finished", "tasks", len(tasks))
	return tasks, nil
}

// ScanFiltered runs ScanAll and applies the criteria's date token to the
// result. On ErrScanLimitExceeded the filtered partial set is returned with
// the error so callers can surface the incompleteness loudly.
func (s *Scanner) ScanFiltered(ctx context.Context, criteria Criteria) ([]models.Task, error) {
	tasks, err := s.ScanAll(ctx, criteria)
	if err != nil {
		if errors.Is(err, ErrScanLimitExceeded) {
			return criteria.FilterDated(tasks), err
		}
		return nil, err
	}
	return criteria.FilterDated(tasks), nil
}

// Paginate slices a fully assembled task set into the requested page and
// synthesizes the backend's page envelope for it. Page indexes beyond the
// end yield an empty page with correct totals.
func Paginate(tasks []models.Task, page, size int) *models.TaskPage {
	if size < 1 {
		size = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	totalPages := (len(tasks) + size - 1) / size

	start := page * size
	if start > len(tasks) {
		start = len(tasks)
	}
	end := start + size
	if end > len(tasks) {
		end = len(tasks)
	}

	return &models.TaskPage{
		Content:       tasks[start:end],
		TotalElements: len(tasks),
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}
}
