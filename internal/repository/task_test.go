package repository_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/repository"
)

var taskColumnNames = []string{
	"task_id", "project_id", "name", "title", "description", "ticket_id",
	"start_date", "end_date", "hours_worked", "rate_used", "currency",
	"is_billed", "billing_date", "invoice_id", "is_paid", "payment_date",
	"task_type", "notes",
}

func taskRow(mockRows *pgxmock.Rows, id int64) *pgxmock.Rows {
	rate := 100.0
	return mockRows.AddRow(
		id, int64(1), "Alpha", "Fix importer", nil, strPtr("TCK-1"),
		time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), nil,
		2.5, &rate, strPtr("EUR"), false, nil, nil, false, nil,
		strPtr(models.TypeCorrettiva), nil,
	)
}

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestListTasks(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("success - unfiltered page", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(`SELECT count\(\*\) FROM tasks`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
		mock.ExpectQuery(`ORDER BY t\.start_date DESC, t\.task_id LIMIT \$1 OFFSET \$2`).
			WithArgs(10, 10).
			WillReturnRows(taskRow(pgxmock.NewRows(taskColumnNames), 11))

		page, err := repo.ListTasks(ctx, repository.ListQuery{
			SortField: "startDate", SortDesc: true, Page: 1, Size: 10,
		})

		require.NoError(t, err)
		assert.Equal(t, 12, page.TotalElements)
		assert.Equal(t, 2, page.TotalPages)
		assert.Equal(t, 1, page.Number)
		require.Len(t, page.Content, 1)
		task := page.Content[0]
		assert.Equal(t, "Alpha", task.ProjectName)
		assert.Equal(t, "EUR", task.Currency)
		require.NotNil(t, task.RateUsed)
		assert.InDelta(t, 100, *task.RateUsed, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - filters reach the query", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(`SELECT count\(\*\) FROM tasks .* WHERE t\.project_id = \$1 AND \(t\.title ILIKE \$2`).
			WithArgs(int64(3), "%fix%", true, models.TypeCorrettiva).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`WHERE t\.project_id = \$1 .* LIMIT \$5 OFFSET \$6`).
			WithArgs(int64(3), "%fix%", true, models.TypeCorrettiva, 10, 0).
			WillReturnRows(taskRow(pgxmock.NewRows(taskColumnNames), 1))

		page, err := repo.ListTasks(ctx, repository.ListQuery{
			ProjectID: int64Ptr(3),
			Search:    "fix",
			Billed:    boolPtr(true),
			Type:      models.TypeCorrettiva,
			SortField: "startDate",
			Size:      10,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, page.TotalElements)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown sort field falls back to start date", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(`SELECT count\(\*\) FROM tasks`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`ORDER BY t\.start_date ASC`).
			WithArgs(10, 0).
			WillReturnRows(pgxmock.NewRows(taskColumnNames))

		_, err = repo.ListTasks(ctx, repository.ListQuery{SortField: "evil; DROP TABLE", Size: 10})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - count query fails", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(`SELECT count\(\*\) FROM tasks`).
			WillReturnError(assert.AnError)

		_, err = repo.ListTasks(ctx, repository.ListQuery{Size: 10})

		require.Error(t, err)
		require.ErrorContains(t, err, "failed to count tasks")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTask(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(repository.GetTaskSQL)).
			WithArgs(int64(7)).
			WillReturnRows(taskRow(pgxmock.NewRows(taskColumnNames), 7))

		task, err := repo.GetTask(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, int64(7), task.ID)
		assert.Equal(t, 2024, task.StartDate.Year())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - not found", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(repository.GetTaskSQL)).
			WithArgs(int64(404)).
			WillReturnRows(pgxmock.NewRows(taskColumnNames))

		_, err = repo.GetTask(ctx, 404)

		require.ErrorIs(t, err, repository.ErrTaskNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateBillingStatuses(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	date := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	t.Run("success - all tuples in one transaction", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdateBillingStatusSQL)).
			WithArgs(true, &date, strPtr("INV-1"), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdateBillingStatusSQL)).
			WithArgs(true, &date, strPtr("INV-1"), int64(2)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.UpdateBillingStatuses(ctx, []models.BillingStatusUpdate{
			{TaskID: 1, IsBilled: true, BillingDate: models.Date{Time: date}, InvoiceID: "INV-1"},
			{TaskID: 2, IsBilled: true, BillingDate: models.Date{Time: date}, InvoiceID: "INV-1"},
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unbilling clears date and invoice", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdateBillingStatusSQL)).
			WithArgs(false, (*time.Time)(nil), (*string)(nil), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.UpdateBillingStatuses(ctx, []models.BillingStatusUpdate{
			{TaskID: 1, IsBilled: false},
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - missing task rolls the whole batch back", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdateBillingStatusSQL)).
			WithArgs(false, (*time.Time)(nil), (*string)(nil), int64(99)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err = repo.UpdateBillingStatuses(ctx, []models.BillingStatusUpdate{
			{TaskID: 99, IsBilled: false},
		})

		require.ErrorIs(t, err, repository.ErrTaskNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePaymentStatuses(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	date := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdatePaymentStatusSQL)).
			WithArgs(true, &date, int64(5)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.UpdatePaymentStatuses(ctx, []models.PaymentStatusUpdate{
			{TaskID: 5, IsPaid: true, PaymentDate: models.Date{Time: date}},
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - exec fails", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(repository.UpdatePaymentStatusSQL)).
			WithArgs(false, (*time.Time)(nil), int64(5)).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err = repo.UpdatePaymentStatuses(ctx, []models.PaymentStatusUpdate{
			{TaskID: 5, IsPaid: false},
		})

		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectExec(regexp.QuoteMeta(repository.DeleteTaskSQL)).
			WithArgs(int64(7), int64(1)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.DeleteTask(ctx, 1, 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - not found", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectExec(regexp.QuoteMeta(repository.DeleteTaskSQL)).
			WithArgs(int64(7), int64(1)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.ErrorIs(t, repo.DeleteTask(ctx, 1, 7), repository.ErrTaskNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func strPtr(v string) *string { return &v }
