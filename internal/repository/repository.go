package repository

import (
	"context"
	"errors"

	"github.com/workmgmt/tasklens/internal/models"
)

// ErrTaskNotFound is returned when a task id does not exist. Bulk updates
// referencing a missing id fail as a whole with this error.
var ErrTaskNotFound = errors.New("task not found")

// Repository provides task persistence on top of a Database.
type Repository struct {
	db Database
}

// TaskManager is the interface the HTTP layer consumes for task reads and
// writes. The paginated listing supports search, status, type, project and
// sort parameters; calendar month/year filtering is intentionally absent
// from this contract and handled by clients.
type TaskManager interface {
	ListTasks(ctx context.Context, query ListQuery) (*models.TaskPage, error)
	ListTasksInRange(ctx context.Context, projectID *int64, from, to models.Date) ([]models.Task, error)
	GetTask(ctx context.Context, taskID int64) (*models.Task, error)
	CreateTask(ctx context.Context, projectID int64, task models.Task) (*models.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID int64, task models.Task) (*models.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID int64) error
	UpdateBillingStatuses(ctx context.Context, updates []models.BillingStatusUpdate) error
	UpdatePaymentStatuses(ctx context.Context, updates []models.PaymentStatusUpdate) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database) *Repository {
	return &Repository{db: db}
}
