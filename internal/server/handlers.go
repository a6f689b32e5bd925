package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/report"
	"github.com/workmgmt/tasklens/internal/repository"
)

const maxPageSize = 1000

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, tasks repository.TaskManager, log *slog.Logger, mtr *metrics.Metrics) {
	if mtr != nil {
		e.Use(requestDuration(mtr))
	}

	e.GET("/api/tasks", listTasks(tasks, log, nil))
	e.GET("/api/projects/:projectId/tasks", listProjectTasks(tasks, log))
	e.GET("/api/tasks/:id", getTask(tasks, log))
	e.POST("/api/projects/:projectId/tasks", createTask(tasks, log))
	e.PUT("/api/projects/:projectId/tasks/:id", updateTask(tasks, log))
	e.DELETE("/api/projects/:projectId/tasks/:id", deleteTask(tasks, log))
	e.PUT("/api/tasks/billing-status", updateBillingStatus(tasks, log, mtr))
	e.PUT("/api/tasks/payment-status", updatePaymentStatus(tasks, log, mtr))
	e.GET("/api/reports/tasks.xlsx", downloadReport(tasks, log, mtr))
}

func requestDuration(mtr *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			mtr.APIRequestDuration.WithLabelValues(route, c.Request().Method).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func listTasks(tasks repository.TaskManager, log *slog.Logger, routeProject *int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		query, err := parseListQuery(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		if routeProject != nil {
			query.ProjectID = routeProject
		}

		page, err := tasks.ListTasks(ctx, query)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list tasks", "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list tasks"})
		}
		return c.JSON(http.StatusOK, page)
	}
}

func listProjectTasks(tasks repository.TaskManager, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		projectID, err := pathID(c, "projectId")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return listTasks(tasks, log, &projectID)(c)
	}
}

func getTask(tasks repository.TaskManager, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		taskID, err := pathID(c, "id")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		task, err := tasks.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
			}
			log.ErrorContext(ctx, "Failed to get task", "task_id", taskID, "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get task"})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func createTask(tasks repository.TaskManager, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		projectID, err := pathID(c, "projectId")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		var task models.Task
		if err = c.Bind(&task); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task payload"})
		}
		if err = validateTask(task); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		created, err := tasks.CreateTask(ctx, projectID, task)
		if err != nil {
			log.ErrorContext(ctx, "Failed to create task", "project_id", projectID, "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to create task"})
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func updateTask(tasks repository.TaskManager, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		projectID, err := pathID(c, "projectId")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		taskID, err := pathID(c, "id")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		var task models.Task
		if err = c.Bind(&task); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task payload"})
		}
		if err = validateTask(task); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		updated, err := tasks.UpdateTask(ctx, projectID, taskID, task)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
			}
			log.ErrorContext(ctx, "Failed to update task", "task_id", taskID, "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to update task"})
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(tasks repository.TaskManager, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		projectID, err := pathID(c, "projectId")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		taskID, err := pathID(c, "id")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		if err = tasks.DeleteTask(ctx, projectID, taskID); err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
			}
			log.ErrorContext(ctx, "Failed to delete task", "task_id", taskID, "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delete task"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func updateBillingStatus(tasks repository.TaskManager, log *slog.Logger, mtr *metrics.Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var updates []models.BillingStatusUpdate
		if err := c.Bind(&updates); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid billing payload"})
		}
		if len(updates) == 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "empty update list"})
		}
		for _, update := range updates {
			if update.IsBilled && strings.TrimSpace(update.InvoiceID) == "" {
				return c.JSON(http.StatusBadRequest, errorResponse{
					Error: fmt.Sprintf("task %d: invoice id is required when billing", update.TaskID),
				})
			}
		}

		if err := tasks.UpdateBillingStatuses(ctx, updates); err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			log.ErrorContext(ctx, "Failed to update billing statuses", "count", len(updates), "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to update billing statuses"})
		}
		if mtr != nil {
			mtr.StatusMutations.WithLabelValues("billing").Add(float64(len(updates)))
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func updatePaymentStatus(tasks repository.TaskManager, log *slog.Logger, mtr *metrics.Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var updates []models.PaymentStatusUpdate
		if err := c.Bind(&updates); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payment payload"})
		}
		if len(updates) == 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "empty update list"})
		}

		if err := tasks.UpdatePaymentStatuses(ctx, updates); err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			log.ErrorContext(ctx, "Failed to update payment statuses", "count", len(updates), "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to update payment statuses"})
		}
		if mtr != nil {
			mtr.StatusMutations.WithLabelValues("payment").Add(float64(len(updates)))
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func downloadReport(tasks repository.TaskManager, log *slog.Logger, mtr *metrics.Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		start := time.Now()

		var projectID *int64
		scope := "all"
		if raw := c.QueryParam("projectId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid project id"})
			}
			projectID = &id
			scope = "project"
		}

		from, err := parseDateParam(c, "from", models.NewDate(1970, time.January, 1))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		to, err := parseDateParam(c, "to", models.NewDate(9999, time.December, 31))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}

		rangeTasks, err := tasks.ListTasksInRange(ctx, projectID, from, to)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list tasks for report", "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to build report"})
		}

		buffer, err := report.GenerateExcelReport(rangeTasks)
		if err != nil {
			if errors.Is(err, report.ErrNoTasks) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "no tasks in the requested range"})
			}
			log.ErrorContext(ctx, "Failed to generate report", "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to build report"})
		}

		if mtr != nil {
			mtr.ReportGeneration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks.xlsx"`)
		return c.Blob(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buffer.Bytes())
	}
}

// parseListQuery maps the listing query string onto a repository query.
// Unknown sort fields are left for the repository to normalize; malformed
// numbers and booleans are client errors.
func parseListQuery(c echo.Context) (repository.ListQuery, error) {
	query := repository.ListQuery{Size: 10}

	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return query, errors.New("invalid page number")
		}
		query.Page = page
	}
	if raw := strings.TrimSpace(c.QueryParam("size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			return query, fmt.Errorf("invalid page size, must be 1..%d", maxPageSize)
		}
		query.Size = size
	}
	if raw := strings.TrimSpace(c.QueryParam("sort")); raw != "" {
		field, direction, _ := strings.Cut(raw, ",")
		query.SortField = field
		switch strings.ToLower(direction) {
		case "", "asc":
		case "desc":
			query.SortDesc = true
		default:
			return query, errors.New("invalid sort direction")
		}
	}
	if raw := c.QueryParam("projectId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query, errors.New("invalid project id")
		}
		query.ProjectID = &id
	}

	query.Search = strings.TrimSpace(c.QueryParam("search"))

	var err error
	if query.Billed, err = parseBoolParam(c, "isBilled"); err != nil {
		return query, err
	}
	if query.Paid, err = parseBoolParam(c, "isPaid"); err != nil {
		return query, err
	}

	if taskType := strings.TrimSpace(c.QueryParam("type")); taskType != "" {
		if !models.KnownTaskType(taskType) {
			return query, fmt.Errorf("unknown task type %q", taskType)
		}
		query.Type = taskType
	}

	return query, nil
}

func parseBoolParam(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value", name)
	}
	return &value, nil
}

func parseDateParam(c echo.Context, name string, fallback models.Date) (models.Date, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", name)
	}
	return models.Date{Time: parsed}, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func validateTask(task models.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return errors.New("title is required")
	}
	if task.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if task.HoursWorked < 0 {
		return errors.New("hours worked must not be negative")
	}
	if task.Type != "" && !models.KnownTaskType(task.Type) {
		return fmt.Errorf("unknown task type %q", task.Type)
	}
	return nil
}
