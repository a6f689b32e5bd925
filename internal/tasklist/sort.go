package tasklist

// SortField names a backend-sortable column of the task list.
type SortField string

// The fixed set of sortable fields offered by the list screen.
const (
	SortByTicket      SortField = "ticketId"
	SortByDescription SortField = "description"
	SortByStartDate   SortField = "startDate"
	SortByHours       SortField = "hoursWorked"
	SortByType        SortField = "type"
	SortByBilled      SortField = "isBilled"
)

// KnownSortField reports whether the field belongs to the sortable set.
func KnownSortField(field SortField) bool {
	switch field {
	case SortByTicket, SortByDescription, SortByStartDate, SortByHours, SortByType, SortByBilled:
		return true
	default:
		return false
	}
}

// SortOrder is the active sort field and direction. The zero value is not
// meaningful; use DefaultSort.
type SortOrder struct {
	Field      SortField
	Descending bool
}

// DefaultSort is the initial sort of the list screen: newest work first.
func DefaultSort() SortOrder {
	return SortOrder{Field: SortByStartDate, Descending: true}
}

// Toggle returns the sort that results from clicking the given field's
// header: same field flips direction, a new field starts ascending.
func (s SortOrder) Toggle(field SortField) SortOrder {
	if s.Field == field {
		return SortOrder{Field: field, Descending: !s.Descending}
	}
	return SortOrder{Field: field, Descending: false}
}

// Param renders the sort as the backend's "field,direction" parameter.
func (s SortOrder) Param() string {
	direction := "asc"
	if s.Descending {
		direction = "desc"
	}
	return string(s.Field) + "," + direction
}
