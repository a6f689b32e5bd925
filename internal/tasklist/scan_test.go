package tasklist_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

// pagingFetcher serves a fixed task set page by page, like the backend
// would, and counts the calls it receives.
type pagingFetcher struct {
	tasks []models.Task
	calls int
}

func (f *pagingFetcher) FetchPage(_ context.Context, criteria tasklist.Criteria) (*models.TaskPage, error) {
	f.calls++
	return tasklist.Paginate(f.tasks, criteria.Page, criteria.Size), nil
}

// bottomlessFetcher reports more pages than any scan is allowed to walk.
type bottomlessFetcher struct{}

func (bottomlessFetcher) FetchPage(_ context.Context, criteria tasklist.Criteria) (*models.TaskPage, error) {
	return &models.TaskPage{
		Content:    []models.Task{{ID: int64(criteria.Page)}},
		TotalPages: 1 << 30,
		Size:       criteria.Size,
		Number:     criteria.Page,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func TestScannerScanAll(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("concatenates every backend page exactly once", func(t *testing.T) {
		t.Parallel()
		tasks := make([]models.Task, 2500)
		for i := range tasks {
			tasks[i] = models.Task{ID: int64(i + 1), StartDate: models.NewDate(2024, 3, i%28+1)}
		}
		fetcher := &pagingFetcher{tasks: tasks}
		scanner := tasklist.NewScanner(fetcher, discardLogger(), testMetrics())

		collected, err := scanner.ScanAll(ctx, tasklist.Criteria{Month: "2024-03", Size: 10})

		require.NoError(t, err)
		require.Len(t, collected, 2500)
		// 2500 tasks at the scan page size of 1000 is three round trips,
		// regardless of the UI's requested page size.
		assert.Equal(t, 3, fetcher.calls)

		seen := make(map[int64]bool, len(collected))
		for _, task := range collected {
			assert.False(t, seen[task.ID], "task %d fetched twice", task.ID)
			seen[task.ID] = true
		}
	})

	t.Run("empty result set", func(t *testing.T) {
		t.Parallel()
		scanner := tasklist.NewScanner(&pagingFetcher{}, discardLogger(), testMetrics())

		collected, err := scanner.ScanAll(ctx, tasklist.Criteria{Month: "2024-03"})

		require.NoError(t, err)
		assert.Empty(t, collected)
	})

	t.Run("page limit surfaces as an error, not truncation", func(t *testing.T) {
		t.Parallel()
		mtr := testMetrics()
		scanner := tasklist.NewScanner(bottomlessFetcher{}, discardLogger(), mtr)

		collected, err := scanner.ScanAll(ctx, tasklist.Criteria{Year: "2024"})

		require.ErrorIs(t, err, tasklist.ErrScanLimitExceeded)
		// The partial set is still handed back for the "results may be
		// incomplete" rendering.
		assert.NotEmpty(t, collected)
		assert.Equal(t, float64(1), testutil.ToFloat64(mtr.ScanLimitHits))
	})
}

func TestScannerScanFiltered(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	tasks := []models.Task{
		{ID: 1, StartDate: models.NewDate(2024, 1, 15)},
		{ID: 2, StartDate: models.NewDate(2024, 12, 31)},
		{ID: 3, StartDate: models.NewDate(2023, 12, 31)},
	}
	scanner := tasklist.NewScanner(&pagingFetcher{tasks: tasks}, discardLogger(), testMetrics())

	t.Run("year token", func(t *testing.T) {
		t.Parallel()
		filtered, err := scanner.ScanFiltered(ctx, tasklist.Criteria{Year: "2024"})

		require.NoError(t, err)
		require.Len(t, filtered, 2)
		assert.Equal(t, int64(1), filtered[0].ID)
		assert.Equal(t, int64(2), filtered[1].ID)
	})

	t.Run("month token", func(t *testing.T) {
		t.Parallel()
		filtered, err := scanner.ScanFiltered(ctx, tasklist.Criteria{Month: "2024-12"})

		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, int64(2), filtered[0].ID)
	})

	t.Run("idempotent re-scan", func(t *testing.T) {
		t.Parallel()
		first, err := scanner.ScanFiltered(ctx, tasklist.Criteria{Year: "2024"})
		require.NoError(t, err)
		second, err := scanner.ScanFiltered(ctx, tasklist.Criteria{Year: "2024"})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	tasks := make([]models.Task, 23)
	for i := range tasks {
		tasks[i] = models.Task{ID: int64(i + 1)}
	}

	t.Run("synthesizes the envelope", func(t *testing.T) {
		t.Parallel()
		page := tasklist.Paginate(tasks, 1, 10)

		assert.Equal(t, 23, page.TotalElements)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 10, page.Size)
		assert.Equal(t, 1, page.Number)
		require.Len(t, page.Content, 10)
		assert.Equal(t, int64(11), page.Content[0].ID)
	})

	t.Run("last partial page", func(t *testing.T) {
		t.Parallel()
		page := tasklist.Paginate(tasks, 2, 10)
		require.Len(t, page.Content, 3)
		assert.Equal(t, int64(21), page.Content[0].ID)
	})

	t.Run("page beyond the end is empty with correct totals", func(t *testing.T) {
		t.Parallel()
		page := tasklist.Paginate(tasks, 9, 10)
		assert.Empty(t, page.Content)
		assert.Equal(t, 23, page.TotalElements)
		assert.Equal(t, 3, page.TotalPages)
	})

	t.Run("union of all pages equals the filtered set exactly once", func(t *testing.T) {
		t.Parallel()
		var union []models.Task
		for index := range tasklist.Paginate(tasks, 0, 10).TotalPages {
			union = append(union, tasklist.Paginate(tasks, index, 10).Content...)
		}
		assert.Equal(t, tasks, union)
	})
}
