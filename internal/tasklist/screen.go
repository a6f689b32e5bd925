package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/models"
)

// Phase is the list screen's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

// String implements fmt.Stringer for log output.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Screen is the list screen's single source of truth. It owns the fetch
// orchestration: direct backend fetch for backend-supported criteria, the
// exhaustive scan for date-token criteria, and the summary population for
// any filtered view. Results are tagged with the criteria that produced
// them; a response for stale criteria never overwrites fresher state.
type Screen struct {
	fetcher    PageFetcher
	scanner    *Scanner
	reconciler *Reconciler
	log        *slog.Logger

	mu             sync.Mutex
	seq            uint64
	phase          Phase
	page           *models.TaskPage
	filtered       []models.Task
	summaries      []models.ProjectSummary
	err            error
	scanIncomplete bool
}

// NewScreen wires a screen over the fetcher and reconciler.
func NewScreen(fetcher PageFetcher, reconciler *Reconciler, log *slog.Logger, mtr *metrics.Metrics) *Screen {
	return &Screen{
		fetcher:    fetcher,
		scanner:    NewScanner(fetcher, log, mtr),
		reconciler: reconciler,
		log:        log,
		phase:      PhaseIdle,
	}
}

// Reconciler exposes the screen's filter state for the surrounding UI.
func (s *Screen) Reconciler() *Reconciler {
	return s.reconciler
}

// Refresh recomputes the canonical criteria and loads the matching page,
// full filtered set and summaries. It transitions loading → ready on
// success and loading → error on failure; on error previous data is
// cleared, the error state is shown exclusively. Safe to call from any
// handler goroutine; stale completions are discarded.
func (s *Screen) Refresh(ctx context.Context) error {
	criteria := s.reconciler.Criteria()
	if err := criteria.Validate(); err != nil {
		return fmt.Errorf("failed to validate filter criteria: %w", err)
	}

	s.mu.Lock()
	s.seq++
	requestSeq := s.seq
	s.phase = PhaseLoading
	s.mu.Unlock()

	page, filtered, err := s.load(ctx, criteria)

	s.mu.Lock()
	defer s.mu.Unlock()
	if requestSeq != s.seq {
		// A newer request was issued while this one was in flight.
		s.log.DebugContext(ctx, "Discarding stale fetch result", "seq", requestSeq)
		return nil
	}

	s.scanIncomplete = false
	if err != nil && errors.Is(err, ErrScanLimitExceeded) {
		// Loud but not fatal: show what was collected, flag incompleteness.
		s.scanIncomplete = true
		err = nil
	}
	if err != nil {
		s.phase = PhaseError
		s.page = nil
		s.filtered = nil
		s.summaries = nil
		s.err = err
		return err
	}

	s.phase = PhaseReady
	s.page = page
	s.filtered = filtered
	s.err = nil
	if criteria.HasFilter() {
		s.summaries = Summarize(filtered)
	} else {
		s.summaries = nil
	}
	return nil
}

// load retrieves the page and, for filtered views, the full filtered set.
func (s *Screen) load(ctx context.Context, criteria Criteria) (*models.TaskPage, []models.Task, error) {
	if criteria.RequiresScan() {
		filtered, err := s.scanner.ScanFiltered(ctx, criteria)
		if err != nil && !errors.Is(err, ErrScanLimitExceeded) {
			return nil, nil, err
		}
		return Paginate(filtered, criteria.Page, criteria.Size), filtered, err
	}

	page, err := s.fetcher.FetchPage(ctx, criteria)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch task page: %w", err)
	}

	if !criteria.HasFilter() {
		// Unfiltered view: no summaries, the visible page is enough.
		return page, page.Content, nil
	}

	// Backend-filterable criteria: assemble the whole filtered population so
	// the summaries cover every page, not just the visible one. Best effort:
	// a scan failure degrades the summaries to the current page.
	filtered, err := s.scanner.ScanAll(ctx, criteria)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to assemble full filtered set for summaries", "error", err)
		return page, page.Content, nil
	}
	return page, filtered, nil
}

// Phase returns the current lifecycle state.
func (s *Screen) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Page returns the visible page, nil unless the screen is ready.
func (s *Screen) Page() *models.TaskPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Filtered returns the full filtered task set backing the summaries.
func (s *Screen) Filtered() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filtered
}

// Summaries returns the per-project rollups of the filtered view, nil for
// unfiltered views.
func (s *Screen) Summaries() []models.ProjectSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries
}

// Err returns the error of the last failed fetch, nil when ready.
func (s *Screen) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ScanIncomplete reports whether the last scan hit the page limit, meaning
// the visible results may be incomplete. The UI must surface this.
func (s *Screen) ScanIncomplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanIncomplete
}
