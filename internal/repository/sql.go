package repository

// Schema holds the DDL for the task tables. Applied on startup; every
// statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    project_id   BIGSERIAL PRIMARY KEY,
    name         TEXT NOT NULL,
    currency     CHAR(3) NOT NULL DEFAULT 'EUR',
    default_rate NUMERIC(10, 2)
);

CREATE TABLE IF NOT EXISTS tasks (
    task_id      BIGSERIAL PRIMARY KEY,
    project_id   BIGINT NOT NULL REFERENCES projects (project_id),
    title        TEXT NOT NULL,
    description  TEXT,
    ticket_id    TEXT,
    start_date   DATE NOT NULL,
    end_date     DATE,
    hours_worked NUMERIC(6, 2) NOT NULL CHECK (hours_worked >= 0),
    rate_used    NUMERIC(10, 2) CHECK (rate_used >= 0),
    currency     CHAR(3),
    is_billed    BOOLEAN NOT NULL DEFAULT FALSE,
    billing_date DATE,
    invoice_id   TEXT,
    is_paid      BOOLEAN NOT NULL DEFAULT FALSE,
    payment_date DATE,
    task_type    TEXT,
    notes        TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_start_date ON tasks (start_date);
`

// taskColumns is the column list shared by every task select.
const taskColumns = `
	t.task_id,
	t.project_id,
	p.name,
	t.title,
	t.description,
	t.ticket_id,
	t.start_date,
	t.end_date,
	t.hours_worked,
	t.rate_used,
	t.currency,
	t.is_billed,
	t.billing_date,
	t.invoice_id,
	t.is_paid,
	t.payment_date,
	t.task_type,
	t.notes
`

// GetTaskSQL fetches one task by id.
const GetTaskSQL = `
	SELECT ` + taskColumns + `
	FROM tasks t
	JOIN projects p ON t.project_id = p.project_id
	WHERE t.task_id = $1;
`

// ListTasksInRangeSQL fetches every task whose start date falls into a
// closed date range, optionally scoped to one project. Used by the report
// endpoint only; the regular listing contract has no date parameters.
const ListTasksInRangeSQL = `
	SELECT ` + taskColumns + `
	FROM tasks t
	JOIN projects p ON t.project_id = p.project_id
	WHERE t.start_date >= $1
	  AND t.start_date <= $2
	  AND ($3::bigint IS NULL OR t.project_id = $3)
	ORDER BY t.start_date, t.task_id;
`

// InsertTaskSQL creates one task and returns its id.
const InsertTaskSQL = `
	INSERT INTO tasks (
		project_id, title, description, ticket_id, start_date, end_date,
		hours_worked, rate_used, currency, is_billed, billing_date,
		invoice_id, is_paid, payment_date, task_type, notes
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING task_id;
`

// UpdateTaskSQL rewrites one task's editable fields.
const UpdateTaskSQL = `
	UPDATE tasks SET
		title = $1, description = $2, ticket_id = $3, start_date = $4,
		end_date = $5, hours_worked = $6, rate_used = $7, currency = $8,
		is_billed = $9, billing_date = $10, invoice_id = $11, is_paid = $12,
		payment_date = $13, task_type = $14, notes = $15, updated_at = now()
	WHERE task_id = $16 AND project_id = $17;
`

// DeleteTaskSQL removes one task within its project scope.
const DeleteTaskSQL = `DELETE FROM tasks WHERE task_id = $1 AND project_id = $2;`

// UpdateBillingStatusSQL applies one tuple of a bulk billing mutation.
const UpdateBillingStatusSQL = `
	UPDATE tasks SET
		is_billed = $1, billing_date = $2, invoice_id = $3, updated_at = now()
	WHERE task_id = $4;
`

// UpdatePaymentStatusSQL applies one tuple of a bulk payment mutation.
const UpdatePaymentStatusSQL = `
	UPDATE tasks SET
		is_paid = $1, payment_date = $2, updated_at = now()
	WHERE task_id = $3;
`

// sortColumns whitelists the backend-sortable fields and maps the wire
// names to columns. Anything else falls back to the start date.
var sortColumns = map[string]string{
	"ticketId":    "t.ticket_id",
	"description": "t.description",
	"startDate":   "t.start_date",
	"hoursWorked": "t.hours_worked",
	"type":        "t.task_type",
	"isBilled":    "t.is_billed",
}
