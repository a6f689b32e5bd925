// Package tasklist implements the task browsing engine: filter state
// reconciliation, the exhaustive scan used for calendar filters the backend
// cannot apply, per-project summaries and billing/payment reconciliation.
package tasklist

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/workmgmt/tasklens/internal/models"
)

// DefaultPageSize is the page size used by the list screen unless the user
// picks another one.
const DefaultPageSize = 10

var (
	// ErrConflictingTokens is returned when a criteria carries both a month
	// and a year token.
	ErrConflictingTokens = errors.New("month and year filters are mutually exclusive")
	// ErrBadMonthToken is returned for month tokens not of the form YYYY-MM.
	ErrBadMonthToken = errors.New("invalid month token, expected YYYY-MM")
	// ErrBadYearToken is returned for year tokens not of the form YYYY.
	ErrBadYearToken = errors.New("invalid year token, expected YYYY")
)

// Criteria is the canonical, immutable description of one list query.
// Results are tagged with the criteria value that produced them; two
// criteria are equal only if every field is equal.
type Criteria struct {
	ProjectID *int64    // Project scope, nil for all projects
	Search    string    // Free-text search over title, description and ticket id
	Billed    *bool     // Billing status filter, nil for "all"
	Paid      *bool     // Payment status filter, nil for "all"
	Type      string    // Task type tag, empty for "all"
	Month     string    // Calendar month token YYYY-MM, applied client-side
	Year      string    // Calendar year token YYYY, applied client-side
	Sort      SortOrder // Active sort field and direction
	Page      int       // Zero-based requested page index
	Size      int       // Requested page size
}

// Validate checks the date tokens. Month and year are mutually exclusive and
// must be well formed.
func (c Criteria) Validate() error {
	if c.Month != "" && c.Year != "" {
		return ErrConflictingTokens
	}
	if c.Month != "" {
		if _, _, err := ParseMonthToken(c.Month); err != nil {
			return err
		}
	}
	if c.Year != "" {
		if _, err := ParseYearToken(c.Year); err != nil {
			return err
		}
	}
	return nil
}

// RequiresScan reports whether the criteria carries a calendar filter the
// backend cannot apply, forcing the exhaustive scan path.
func (c Criteria) RequiresScan() bool {
	return c.Month != "" || c.Year != ""
}

// HasFilter reports whether any filter is active. Summaries are only
// computed for filtered views.
func (c Criteria) HasFilter() bool {
	return c.ProjectID != nil || c.Search != "" || c.Billed != nil || c.Paid != nil ||
		c.Type != "" || c.RequiresScan()
}

// Equal compares every field, including sort and pagination.
func (c Criteria) Equal(other Criteria) bool {
	return equalInt64Ptr(c.ProjectID, other.ProjectID) &&
		c.Search == other.Search &&
		equalBoolPtr(c.Billed, other.Billed) &&
		equalBoolPtr(c.Paid, other.Paid) &&
		c.Type == other.Type &&
		c.Month == other.Month &&
		c.Year == other.Year &&
		c.Sort == other.Sort &&
		c.Page == other.Page &&
		c.Size == other.Size
}

// MatchesDate applies the criteria's date token to a start date, comparing
// calendar components only. Criteria without a token match everything.
func (c Criteria) MatchesDate(date time.Time) bool {
	switch {
	case c.Month != "":
		year, month, err := ParseMonthToken(c.Month)
		if err != nil {
			return false
		}
		return date.Year() == year && date.Month() == month
	case c.Year != "":
		year, err := ParseYearToken(c.Year)
		if err != nil {
			return false
		}
		return date.Year() == year
	default:
		return true
	}
}

// BackendQuery renders the backend-supported parameters of the criteria as
// URL query values. Date tokens are deliberately absent: the backend does
// not understand them.
func (c Criteria) BackendQuery() url.Values {
	values := url.Values{}
	values.Set("page", strconv.Itoa(c.Page))
	values.Set("size", strconv.Itoa(c.Size))
	values.Set("sort", c.Sort.Param())
	if c.Search != "" {
		values.Set("search", c.Search)
	}
	if c.ProjectID != nil {
		values.Set("projectId", strconv.FormatInt(*c.ProjectID, 10))
	}
	if c.Billed != nil {
		values.Set("isBilled", strconv.FormatBool(*c.Billed))
	}
	if c.Paid != nil {
		values.Set("isPaid", strconv.FormatBool(*c.Paid))
	}
	if c.Type != "" {
		values.Set("type", c.Type)
	}
	return values
}

// FilterDated returns the tasks whose start date satisfies the criteria's
// date token, preserving input order.
func (c Criteria) FilterDated(tasks []models.Task) []models.Task {
	if !c.RequiresScan() {
		return tasks
	}
	filtered := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if c.MatchesDate(task.StartDate.Time) {
			filtered = append(filtered, task)
		}
	}
	return filtered
}

// ParseMonthToken parses a YYYY-MM token into its calendar components.
func ParseMonthToken(token string) (int, time.Month, error) {
	parsed, err := time.Parse("2006-01", token)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadMonthToken, token)
	}
	return parsed.Year(), parsed.Month(), nil
}

// ParseYearToken parses a YYYY token.
func ParseYearToken(token string) (int, error) {
	parsed, err := time.Parse("2006", token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadYearToken, token)
	}
	return parsed.Year(), nil
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
