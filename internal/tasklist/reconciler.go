package tasklist

import (
	"strconv"
	"sync"
)

// Navigable query parameter keys shared with the address bar.
const (
	paramMonth   = "month"
	paramYear    = "year"
	paramProject = "projectId"
)

// QueryParams abstracts the navigable query string so the reconciler can be
// exercised without a real address bar. Implementations must keep reads
// consistent with the last write.
type QueryParams interface {
	// Get returns the value for the key, empty when absent.
	Get(key string) string
	// Set stores the value for the key.
	Set(key, value string)
	// Del removes the given keys.
	Del(keys ...string)
}

// MemoryParams is an in-memory QueryParams, used by tests and by clients
// that have no address bar of their own.
type MemoryParams struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryParams creates an empty in-memory parameter set.
func NewMemoryParams() *MemoryParams {
	return &MemoryParams{values: make(map[string]string)}
}

func (p *MemoryParams) Get(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

func (p *MemoryParams) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

func (p *MemoryParams) Del(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range keys {
		delete(p.values, key)
	}
}

// Reconciler merges the three filter sources of the list screen, the route
// scope, the navigable query parameters and the in-page controls, into one
// canonical Criteria. Precedence for the project: route scope always wins,
// then a manual selection, then the projectId query parameter. Safe for
// concurrent use: handler goroutines, the debounce timer and mutation
// goroutines all share one instance.
type Reconciler struct {
	routeProjectID *int64
	params         QueryParams

	mu            sync.Mutex
	search        string
	billed        *bool
	paid          *bool
	taskType      string
	manualProject *int64
	sort          SortOrder
	page          int
	size          int
}

// NewReconciler creates a reconciler. routeProjectID is non-nil when the
// route fixes the project deterministically; params carries the navigable
// month/year/projectId state.
func NewReconciler(routeProjectID *int64, params QueryParams) *Reconciler {
	return &Reconciler{
		routeProjectID: routeProjectID,
		params:         params,
		sort:           DefaultSort(),
		size:           DefaultPageSize,
	}
}

// Criteria computes the canonical filter criteria from all sources.
func (r *Reconciler) Criteria() Criteria {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Criteria{
		ProjectID: r.effectiveProject(),
		Search:    r.search,
		Billed:    r.billed,
		Paid:      r.paid,
		Type:      r.taskType,
		Month:     r.params.Get(paramMonth),
		Year:      r.params.Get(paramYear),
		Sort:      r.sort,
		Page:      r.page,
		Size:      r.size,
	}
}

// effectiveProject resolves the project scope with the documented precedence.
func (r *Reconciler) effectiveProject() *int64 {
	if r.routeProjectID != nil {
		return r.routeProjectID
	}
	if r.manualProject != nil {
		return r.manualProject
	}
	if raw := r.params.Get(paramProject); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &id
		}
	}
	return nil
}

// SetSearch commits a (debounced) search term and rewinds to the first page.
func (r *Reconciler) SetSearch(term string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.search = term
	r.page = 0
}

// SetBilled sets the billing tri-state filter, nil meaning "all".
func (r *Reconciler) SetBilled(billed *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.billed = billed
	r.page = 0
}

// SetPaid sets the payment tri-state filter, nil meaning "all".
func (r *Reconciler) SetPaid(paid *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paid = paid
	r.page = 0
}

// SetType sets the task type filter, empty meaning "all".
func (r *Reconciler) SetType(taskType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.taskType = taskType
	r.page = 0
}

// SelectProject records a manual project selection and mirrors it into the
// navigable parameters so the address state stays consistent. A route-scoped
// project cannot be overridden; the selection is ignored in that case.
func (r *Reconciler) SelectProject(projectID *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.routeProjectID != nil {
		return
	}
	r.manualProject = projectID
	if projectID == nil {
		r.params.Del(paramProject)
	} else {
		r.params.Set(paramProject, strconv.FormatInt(*projectID, 10))
	}
	r.page = 0
}

// SetMonth sets the month token, clearing any year token. An empty token
// removes the month filter.
func (r *Reconciler) SetMonth(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.params.Del(paramYear)
	if token == "" {
		r.params.Del(paramMonth)
	} else {
		r.params.Set(paramMonth, token)
	}
	r.page = 0
}

// SetYear sets the year token, clearing any month token. An empty token
// removes the year filter.
func (r *Reconciler) SetYear(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.params.Del(paramMonth)
	if token == "" {
		r.params.Del(paramYear)
	} else {
		r.params.Set(paramYear, token)
	}
	r.page = 0
}

// ToggleSort applies a header click to the active sort.
func (r *Reconciler) ToggleSort(field SortField) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sort = r.sort.Toggle(field)
	r.page = 0
}

// SetPage moves to the given zero-based page. Negative values clamp to 0.
func (r *Reconciler) SetPage(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 0 {
		page = 0
	}
	r.page = page
}

// SetPageSize changes the page size and rewinds to the first page.
func (r *Reconciler) SetPageSize(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if size < 1 {
		size = DefaultPageSize
	}
	r.size = size
	r.page = 0
}

// ClearFilters drops every filter, removing the date and project tokens from
// the navigable parameters and the in-memory state in one step. Sort and
// page size survive; the page rewinds to 0. A route-scoped project is part
// of the route, not a filter, and stays.
func (r *Reconciler) ClearFilters() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.search = ""
	r.billed = nil
	r.paid = nil
	r.taskType = ""
	r.manualProject = nil
	r.params.Del(paramMonth, paramYear, paramProject)
	r.page = 0
}
