package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/workmgmt/tasklens/internal/models"
)

// ListQuery carries the backend-supported listing parameters. There is no
// month/year field here on purpose: calendar filtering is a client concern.
type ListQuery struct {
	ProjectID *int64 // Scope to one project, nil for all
	Search    string // Case-insensitive search over title, description, ticket id
	Billed    *bool  // Billing status filter, nil for all
	Paid      *bool  // Payment status filter, nil for all
	Type      string // Task type tag, empty for all
	SortField string // One of the whitelisted sortable fields
	SortDesc  bool   // Sort direction
	Page      int    // Zero-based page index
	Size      int    // Page size
}

// Migrate applies the schema. Safe to run repeatedly.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ListTasks returns one page of tasks matching the query, together with the
// totals that make up the page envelope.
func (r *Repository) ListTasks(ctx context.Context, query ListQuery) (*models.TaskPage, error) {
	where, args := buildTaskFilter(query)

	countSQL := "SELECT count(*) FROM tasks t JOIN projects p ON t.project_id = p.project_id" + where
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	if query.Size < 1 {
		query.Size = 10
	}
	if query.Page < 0 {
		query.Page = 0
	}

	column, ok := sortColumns[query.SortField]
	if !ok {
		column = sortColumns["startDate"]
	}
	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}

	pageSQL := fmt.Sprintf(
		"SELECT %s FROM tasks t JOIN projects p ON t.project_id = p.project_id%s ORDER BY %s %s, t.task_id LIMIT $%d OFFSET $%d",
		taskColumns, where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, query.Size, query.Page*query.Size)

	rows, err := r.db.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	return &models.TaskPage{
		Content:       tasks,
		TotalElements: total,
		TotalPages:    (total + query.Size - 1) / query.Size,
		Size:          query.Size,
		Number:        query.Page,
	}, nil
}

// buildTaskFilter renders the WHERE clause for a listing query.
func buildTaskFilter(query ListQuery) (string, []any) {
	var clauses []string
	var args []any

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.ProjectID != nil {
		clauses = append(clauses, "t.project_id = "+arg(*query.ProjectID))
	}
	if query.Search != "" {
		pattern := arg("%" + query.Search + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(t.title ILIKE %s OR t.description ILIKE %s OR t.ticket_id ILIKE %s)",
			pattern, pattern, pattern,
		))
	}
	if query.Billed != nil {
		clauses = append(clauses, "t.is_billed = "+arg(*query.Billed))
	}
	if query.Paid != nil {
		clauses = append(clauses, "t.is_paid = "+arg(*query.Paid))
	}
	if query.Type != "" {
		clauses = append(clauses, "t.task_type = "+arg(query.Type))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListTasksInRange returns every task whose start date falls into the given
// closed range, optionally scoped to one project. Backs the report endpoint.
func (r *Repository) ListTasksInRange(
	ctx context.Context,
	projectID *int64,
	from, to models.Date,
) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, ListTasksInRangeSQL, from.Time, to.Time, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks in range: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// GetTask fetches one task by id.
func (r *Repository) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRow(ctx, GetTaskSQL, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to query task %d: %w", taskID, err)
	}
	return task, nil
}

// CreateTask inserts a task into the given project. A blank ticket id is
// auto-generated.
func (r *Repository) CreateTask(ctx context.Context, projectID int64, task models.Task) (*models.Task, error) {
	if strings.TrimSpace(task.TicketID) == "" {
		task.TicketID = "TCK-" + uuid.NewString()[:8]
	}

	var taskID int64
	err := r.db.QueryRow(ctx, InsertTaskSQL,
		projectID, task.Title, nullString(task.Description), task.TicketID,
		task.StartDate.Time, nullDate(task.EndDate), task.HoursWorked, task.RateUsed,
		nullString(task.Currency), task.IsBilled, nullDate(task.BillingDate),
		nullString(task.InvoiceID), task.IsPaid, nullDate(task.PaymentDate),
		nullString(task.Type), nullString(task.Notes),
	).Scan(&taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return r.GetTask(ctx, taskID)
}

// UpdateTask rewrites one task's editable fields within its project scope.
func (r *Repository) UpdateTask(
	ctx context.Context,
	projectID, taskID int64,
	task models.Task,
) (*models.Task, error) {
	tag, err := r.db.Exec(ctx, UpdateTaskSQL,
		task.Title, nullString(task.Description), task.TicketID, task.StartDate.Time,
		nullDate(task.EndDate), task.HoursWorked, task.RateUsed, nullString(task.Currency),
		task.IsBilled, nullDate(task.BillingDate), nullString(task.InvoiceID),
		task.IsPaid, nullDate(task.PaymentDate), nullString(task.Type), nullString(task.Notes),
		taskID, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, taskID)
	}

	return r.GetTask(ctx, taskID)
}

// DeleteTask removes one task within its project scope.
func (r *Repository) DeleteTask(ctx context.Context, projectID, taskID int64) error {
	tag, err := r.db.Exec(ctx, DeleteTaskSQL, taskID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, taskID)
	}
	return nil
}

// UpdateBillingStatuses applies a bulk billing mutation inside one
// transaction: either every tuple is applied or none is. Unbilling clears
// the billing date and invoice id regardless of what the tuple carries.
func (r *Repository) UpdateBillingStatuses(ctx context.Context, updates []models.BillingStatusUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin billing update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, update := range updates {
		var billingDate *time.Time
		var invoiceID *string
		if update.IsBilled {
			date := update.BillingDate.Time
			billingDate = &date
			invoiceID = &update.InvoiceID
		}

		tag, execErr := tx.Exec(ctx, UpdateBillingStatusSQL,
			update.IsBilled, billingDate, invoiceID, update.TaskID)
		if execErr != nil {
			return fmt.Errorf("failed to update billing status of task %d: %w", update.TaskID, execErr)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: id %d", ErrTaskNotFound, update.TaskID)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit billing update: %w", err)
	}
	return nil
}

// UpdatePaymentStatuses applies a bulk payment mutation inside one
// transaction. Unpaying clears the payment date.
func (r *Repository) UpdatePaymentStatuses(ctx context.Context, updates []models.PaymentStatusUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin payment update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, update := range updates {
		var paymentDate *time.Time
		if update.IsPaid {
			date := update.PaymentDate.Time
			paymentDate = &date
		}

		tag, execErr := tx.Exec(ctx, UpdatePaymentStatusSQL,
			update.IsPaid, paymentDate, update.TaskID)
		if execErr != nil {
			return fmt.Errorf("failed to update payment status of task %d: %w", update.TaskID, execErr)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: id %d", ErrTaskNotFound, update.TaskID)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment update: %w", err)
	}
	return nil
}

// scanTasks drains a task row set.
func scanTasks(rows pgx.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task rows: %w", err)
	}
	return tasks, nil
}

// scanTask maps one row of taskColumns onto a Task.
func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task        models.Task
		description *string
		ticketID    *string
		currency    *string
		invoiceID   *string
		taskType    *string
		notes       *string
		startDate   time.Time
		endDate     *time.Time
		billingDate *time.Time
		paymentDate *time.Time
	)

	err := row.Scan(
		&task.ID, &task.ProjectID, &task.ProjectName, &task.Title,
		&description, &ticketID, &startDate, &endDate,
		&task.HoursWorked, &task.RateUsed, &currency,
		&task.IsBilled, &billingDate, &invoiceID,
		&task.IsPaid, &paymentDate, &taskType, &notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task row: %w", err)
	}

	task.Description = deref(description)
	task.TicketID = deref(ticketID)
	task.Currency = strings.TrimSpace(deref(currency))
	task.InvoiceID = deref(invoiceID)
	task.Type = deref(taskType)
	task.Notes = deref(notes)
	task.StartDate = models.Date{Time: startDate}
	task.EndDate = dateOrNil(endDate)
	task.BillingDate = dateOrNil(billingDate)
	task.PaymentDate = dateOrNil(paymentDate)

	return &task, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func dateOrNil(value *time.Time) *models.Date {
	if value == nil {
		return nil
	}
	return &models.Date{Time: *value}
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullDate(value *models.Date) *time.Time {
	if value == nil {
		return nil
	}
	return &value.Time
}
