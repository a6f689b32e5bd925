package models

import (
	"fmt"
	"strings"
	"time"
)

// Task types form a closed enumeration, mirroring the billing categories
// used on the consulting side.
const (
	TypeEvolutiva  = "EVOLUTIVA"
	TypeCorrettiva = "CORRETTIVA"
)

// KnownTaskType reports whether the given type tag belongs to the closed enumeration.
func KnownTaskType(taskType string) bool {
	return taskType == TypeEvolutiva || taskType == TypeCorrettiva
}

// Date is a calendar date without a time-of-day component.
// It marshals as "YYYY-MM-DD" and accepts timestamps carrying extra
// precision on unmarshal, keeping only the date part.
type Date struct {
	time.Time
}

// NewDate creates a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON renders the date as a quoted "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON parses "YYYY-MM-DD" and, as a fallback, full RFC 3339
// timestamps. Only the calendar date survives.
func (d *Date) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		d.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			d.Time = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return nil
		}
	}

	return fmt.Errorf("failed to parse date %q", value)
}

// Task represents a billable unit of work tied to a project.
// Invariants: IsBilled implies BillingDate and InvoiceID are set;
// IsPaid implies PaymentDate is set.
type Task struct {
	ID          int64    `json:"id"`                    // Unique identifier for the task
	ProjectID   int64    `json:"projectId"`             // Identifier of the owning project
	ProjectName string   `json:"projectName"`           // Display name of the owning project
	Title       string   `json:"title"`                 // Short title of the task
	Description string   `json:"description,omitempty"` // Longer description of the work done
	TicketID    string   `json:"ticketId,omitempty"`    // External reference, free text or auto-generated
	StartDate   Date     `json:"startDate"`             // Day the work started
	EndDate     *Date    `json:"endDate,omitempty"`     // Day the work ended, if finished
	HoursWorked float64  `json:"hoursWorked"`           // Hours spent, non-negative
	RateUsed    *float64 `json:"rateUsed,omitempty"`    // Hourly rate applied, if any
	Currency    string   `json:"currency,omitempty"`    // ISO currency code, e.g. EUR
	IsBilled    bool     `json:"isBilled"`              // Whether the task was invoiced
	BillingDate *Date    `json:"billingDate,omitempty"` // Day the task was invoiced
	InvoiceID   string   `json:"invoiceId,omitempty"`   // Invoice the task was billed on
	IsPaid      bool     `json:"isPaid"`                // Whether the invoice was paid
	PaymentDate *Date    `json:"paymentDate,omitempty"` // Day the payment arrived
	Type        string   `json:"type,omitempty"`        // One of the task type constants
	Notes       string   `json:"notes,omitempty"`       // Free-text notes
}

// Amount returns the billable amount of the task: hours times the rate, or
// zero when no rate was recorded.
func (t Task) Amount() float64 {
	if t.RateUsed == nil {
		return 0
	}
	return t.HoursWorked * *t.RateUsed
}

// TaskPage is the standard paginated result envelope returned by the
// task listing endpoints.
type TaskPage struct {
	Content       []Task `json:"content"`       // Tasks on this page, in sort order
	TotalElements int    `json:"totalElements"` // Total matching tasks across all pages
	TotalPages    int    `json:"totalPages"`    // Total page count for the query's page size
	Size          int    `json:"size"`          // Requested page size
	Number        int    `json:"number"`        // Zero-based page index
}

// ProjectSummary is a per-project rollup over a filtered task set.
// It is derived on demand and never persisted.
type ProjectSummary struct {
	ProjectID   int64   `json:"projectId"`   // Identifier of the project
	ProjectName string  `json:"projectName"` // Display name of the project
	Currency    string  `json:"currency"`    // Currency shared by the project's tasks
	TaskCount   int     `json:"taskCount"`   // Number of tasks in the group
	TotalHours  float64 `json:"totalHours"`  // Sum of hours worked
	TotalAmount float64 `json:"totalAmount"` // Sum of hours times per-task rate
}

// BillingStatusUpdate is one element of a bulk billing mutation.
// InvoiceID is required when IsBilled is true and ignored otherwise.
type BillingStatusUpdate struct {
	TaskID      int64  `json:"taskId"`
	IsBilled    bool   `json:"isBilled"`
	BillingDate Date   `json:"billingDate"`
	InvoiceID   string `json:"invoiceId,omitempty"`
}

// PaymentStatusUpdate is one element of a bulk payment mutation.
type PaymentStatusUpdate struct {
	TaskID      int64 `json:"taskId"`
	IsPaid      bool  `json:"isPaid"`
	PaymentDate Date  `json:"paymentDate"`
}
