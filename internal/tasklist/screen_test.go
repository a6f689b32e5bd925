package tasklist_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

// countingFetcher wraps pagingFetcher with an error switch.
type countingFetcher struct {
	mu    sync.Mutex
	inner pagingFetcher
	fail  bool
}

func (f *countingFetcher) FetchPage(ctx context.Context, criteria tasklist.Criteria) (*models.TaskPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, assert.AnError
	}
	return f.inner.FetchPage(ctx, criteria)
}

func (f *countingFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.calls
}

func screenTasks() []models.Task {
	return []models.Task{
		{ID: 1, ProjectID: 1, ProjectName: "Alpha", StartDate: models.NewDate(2024, time.March, 1), HoursWorked: 2, RateUsed: rate(100), Currency: "EUR"},
		{ID: 2, ProjectID: 1, ProjectName: "Alpha", StartDate: models.NewDate(2024, time.March, 15), HoursWorked: 3, RateUsed: rate(100), Currency: "EUR"},
		{ID: 3, ProjectID: 1, ProjectName: "Alpha", StartDate: models.NewDate(2024, time.April, 2), HoursWorked: 5, RateUsed: rate(100), Currency: "EUR"},
	}
}

func TestScreenRefresh(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("unfiltered view is a single backend fetch, no summaries", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}}
		screen := tasklist.NewScreen(fetcher, tasklist.NewReconciler(nil, tasklist.NewMemoryParams()), discardLogger(), testMetrics())

		require.NoError(t, screen.Refresh(ctx))

		assert.Equal(t, tasklist.PhaseReady, screen.Phase())
		assert.Equal(t, 1, fetcher.calls())
		require.NotNil(t, screen.Page())
		assert.Len(t, screen.Page().Content, 3)
		assert.Nil(t, screen.Summaries())
	})

	t.Run("month token engages the scan and paginates client-side", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}}
		screen := tasklist.NewScreen(fetcher, tasklist.NewReconciler(nil, tasklist.NewMemoryParams()), discardLogger(), testMetrics())
		screen.Reconciler().SetMonth("2024-03")

		require.NoError(t, screen.Refresh(ctx))

		page := screen.Page()
		require.NotNil(t, page)
		assert.Equal(t, 2, page.TotalElements)
		assert.Equal(t, 1, page.TotalPages)
		require.Len(t, page.Content, 2)
		for _, task := range page.Content {
			assert.Equal(t, time.March, task.StartDate.Month())
		}

		summaries := screen.Summaries()
		require.Len(t, summaries, 1)
		assert.Equal(t, 2, summaries[0].TaskCount)
		assert.InDelta(t, 5, summaries[0].TotalHours, 1e-9)
		assert.InDelta(t, 500, summaries[0].TotalAmount, 1e-9)
	})

	t.Run("backend-filterable criteria still summarize the whole population", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}}
		reconciler := tasklist.NewReconciler(nil, tasklist.NewMemoryParams())
		screen := tasklist.NewScreen(fetcher, reconciler, discardLogger(), testMetrics())
		reconciler.SelectProject(int64Ptr(1))
		reconciler.SetPageSize(2)

		require.NoError(t, screen.Refresh(ctx))

		// Page shows two tasks, the summary covers all three.
		require.NotNil(t, screen.Page())
		assert.Len(t, screen.Page().Content, 2)
		summaries := screen.Summaries()
		require.Len(t, summaries, 1)
		assert.Equal(t, 3, summaries[0].TaskCount)
		assert.InDelta(t, 10, summaries[0].TotalHours, 1e-9)
		assert.InDelta(t, 1000, summaries[0].TotalAmount, 1e-9)
	})

	t.Run("fetch failure clears data and enters the error phase", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}}
		screen := tasklist.NewScreen(fetcher, tasklist.NewReconciler(nil, tasklist.NewMemoryParams()), discardLogger(), testMetrics())
		require.NoError(t, screen.Refresh(ctx))

		fetcher.mu.Lock()
		fetcher.fail = true
		fetcher.mu.Unlock()

		require.Error(t, screen.Refresh(ctx))
		assert.Equal(t, tasklist.PhaseError, screen.Phase())
		assert.Nil(t, screen.Page())
		assert.Nil(t, screen.Summaries())
		assert.Error(t, screen.Err())
	})

	t.Run("a later fetch recovers from the error phase", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}, fail: true}
		screen := tasklist.NewScreen(fetcher, tasklist.NewReconciler(nil, tasklist.NewMemoryParams()), discardLogger(), testMetrics())
		require.Error(t, screen.Refresh(ctx))

		fetcher.mu.Lock()
		fetcher.fail = false
		fetcher.mu.Unlock()

		require.NoError(t, screen.Refresh(ctx))
		assert.Equal(t, tasklist.PhaseReady, screen.Phase())
		assert.NoError(t, screen.Err())
	})

	t.Run("invalid tokens are rejected before any fetch", func(t *testing.T) {
		t.Parallel()
		fetcher := &countingFetcher{inner: pagingFetcher{tasks: screenTasks()}}
		screen := tasklist.NewScreen(fetcher, tasklist.NewReconciler(nil, tasklist.NewMemoryParams()), discardLogger(), testMetrics())
		screen.Reconciler().SetMonth("March 2024")

		require.Error(t, screen.Refresh(ctx))
		assert.Zero(t, fetcher.calls())
	})

	t.Run("scan limit surfaces as incomplete results, not an error page", func(t *testing.T) {
		t.Parallel()
		reconciler := tasklist.NewReconciler(nil, tasklist.NewMemoryParams())
		screen := tasklist.NewScreen(bottomlessFetcher{}, reconciler, discardLogger(), testMetrics())
		reconciler.SetYear("2024")

		require.NoError(t, screen.Refresh(ctx))

		assert.Equal(t, tasklist.PhaseReady, screen.Phase())
		assert.True(t, screen.ScanIncomplete())
		assert.NotNil(t, screen.Page())
	})
}

func TestDebouncer(t *testing.T) {
	t.Parallel()

	t.Run("only the last trigger fires", func(t *testing.T) {
		t.Parallel()
		debouncer := tasklist.NewDebouncer(20 * time.Millisecond)
		fired := make(chan string, 3)

		debouncer.Trigger(func() { fired <- "first" })
		debouncer.Trigger(func() { fired <- "second" })

		select {
		case got := <-fired:
			assert.Equal(t, "second", got)
		case <-time.After(time.Second):
			t.Fatal("debounced call never fired")
		}

		select {
		case got := <-fired:
			t.Fatalf("unexpected extra call %q", got)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("stop cancels the pending call", func(t *testing.T) {
		t.Parallel()
		debouncer := tasklist.NewDebouncer(20 * time.Millisecond)
		fired := make(chan struct{}, 1)

		debouncer.Trigger(func() { fired <- struct{}{} })
		debouncer.Stop()

		select {
		case <-fired:
			t.Fatal("stopped call still fired")
		case <-time.After(60 * time.Millisecond):
		}
	})
}

// gateFetcher stalls the first request carrying the "slow" search term until
// released, so overlapping refreshes can be ordered deterministically.
type gateFetcher struct {
	mu      sync.Mutex
	stalled bool
	entered chan struct{}
	release chan struct{}
}

func (f *gateFetcher) FetchPage(_ context.Context, criteria tasklist.Criteria) (*models.TaskPage, error) {
	if criteria.Search == "slow" {
		f.mu.Lock()
		first := !f.stalled
		f.stalled = true
		f.mu.Unlock()
		if first {
			f.entered <- struct{}{}
			<-f.release
		}
	}
	return &models.TaskPage{
		Content:       []models.Task{{ID: 1, Title: criteria.Search}},
		TotalElements: 1,
		TotalPages:    1,
		Size:          criteria.Size,
		Number:        0,
	}, nil
}

func TestScreenStaleResponseDiscarded(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	fetcher := &gateFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	reconciler := tasklist.NewReconciler(nil, tasklist.NewMemoryParams())
	screen := tasklist.NewScreen(fetcher, reconciler, discardLogger(), testMetrics())

	reconciler.SetSearch("slow")
	done := make(chan error, 1)
	go func() { done <- screen.Refresh(ctx) }()
	<-fetcher.entered

	// A newer request is issued and completes while the first is in flight.
	reconciler.SetSearch("fast")
	require.NoError(t, screen.Refresh(ctx))
	require.NotNil(t, screen.Page())
	assert.Equal(t, "fast", screen.Page().Content[0].Title)

	// The first response arrives late; it must not overwrite fresher state.
	close(fetcher.release)
	require.NoError(t, <-done)

	assert.Equal(t, tasklist.PhaseReady, screen.Phase())
	require.NotNil(t, screen.Page())
	assert.Equal(t, "fast", screen.Page().Content[0].Title)
}
