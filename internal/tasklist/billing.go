package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/workmgmt/tasklens/internal/models"
)

var (
	// ErrMutationInFlight is returned when a billing or payment change is
	// requested while a previous one is still outstanding.
	ErrMutationInFlight = errors.New("a status update is already in progress")
	// ErrEmptyInvoiceID is the client-side precondition failure for billing
	// without an invoice identifier. No network call is made.
	ErrEmptyInvoiceID = errors.New("invoice id must not be empty")
	// ErrPromptCancelled is returned by prompters when the user abandons the
	// invoice id prompt; the billing toggle is a no-op then.
	ErrPromptCancelled = errors.New("invoice prompt cancelled")
)

// Mutator submits billing and payment status changes to the backend. Both
// calls carry the full tuple list of one user action and are treated as
// all-or-nothing; whether the backend honors that is outside the engine's
// control.
type Mutator interface {
	UpdateBillingStatus(ctx context.Context, updates []models.BillingStatusUpdate) error
	UpdatePaymentStatus(ctx context.Context, updates []models.PaymentStatusUpdate) error
}

// InvoiceCache remembers the last invoice identifier used per project and
// calendar month, so billing a second task of the same project/month never
// re-prompts. Entries never expire; writes are last-write-wins.
type InvoiceCache interface {
	// InvoiceID returns the cached identifier for the key, empty when absent.
	InvoiceID(ctx context.Context, projectID int64, month string) (string, error)
	// RememberInvoiceID stores the identifier for the key.
	RememberInvoiceID(ctx context.Context, projectID int64, month, invoiceID string) error
}

// InvoicePrompter asks the user for an invoice identifier. It is consulted
// only on an invoice cache miss.
type InvoicePrompter interface {
	PromptInvoiceID(ctx context.Context, task models.Task) (string, error)
}

// InvoiceCacheMonth derives the cache key month from a task's start date.
func InvoiceCacheMonth(task models.Task) string {
	return task.StartDate.Format("2006-01")
}

// BillingReconciler applies billing and payment status changes, stamping
// dates and maintaining the invoice cache. It never patches local state:
// after a successful mutation the caller must refetch with the active
// criteria. At most one mutation is in flight at a time; further triggers
// fail with ErrMutationInFlight until it settles.
type BillingReconciler struct {
	mutator  Mutator
	cache    InvoiceCache
	prompter InvoicePrompter
	log      *slog.Logger
	now      func() time.Time
	busy     atomic.Bool
}

// NewBillingReconciler wires a reconciler. prompter may be nil when the
// caller can guarantee cache hits (tests); a nil prompter on a cache miss
// fails the toggle.
func NewBillingReconciler(
	mutator Mutator,
	cache InvoiceCache,
	prompter InvoicePrompter,
	log *slog.Logger,
) *BillingReconciler {
	return &BillingReconciler{
		mutator:  mutator,
		cache:    cache,
		prompter: prompter,
		log:      log,
		now:      time.Now,
	}
}

// ToggleBilling flips one task's billed status. Un-billing clears the
// billing date and invoice id with no confirmation. Billing resolves the
// invoice id from the cache, prompting only on a miss, and writes a freshly
// entered id to the cache before applying.
func (r *BillingReconciler) ToggleBilling(ctx context.Context, task models.Task) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	defer r.busy.Store(false)

	if task.IsBilled {
		update := models.BillingStatusUpdate{TaskID: task.ID, IsBilled: false}
		if err := r.mutator.UpdateBillingStatus(ctx, []models.BillingStatusUpdate{update}); err != nil {
			return fmt.Errorf("failed to unbill task %d: %w", task.ID, err)
		}
		r.log.InfoContext(ctx, "Task unbilled", "task", task.ID)
		return nil
	}

	invoiceID, err := r.resolveInvoiceID(ctx, task)
	if err != nil {
		return err
	}

	update := models.BillingStatusUpdate{
		TaskID:      task.ID,
		IsBilled:    true,
		BillingDate: models.Date{Time: r.now()},
		InvoiceID:   invoiceID,
	}
	if err = r.mutator.UpdateBillingStatus(ctx, []models.BillingStatusUpdate{update}); err != nil {
		return fmt.Errorf("failed to bill task %d: %w", task.ID, err)
	}

	r.log.InfoContext(ctx, "Task billed", "task", task.ID, "invoice", invoiceID)
	return nil
}

// resolveInvoiceID consults the cache and falls back to the prompter. A
// freshly entered id goes into the cache before any mutation is attempted.
func (r *BillingReconciler) resolveInvoiceID(ctx context.Context, task models.Task) (string, error) {
	month := InvoiceCacheMonth(task)

	cached, err := r.cache.InvoiceID(ctx, task.ProjectID, month)
	if err != nil {
		// A broken cache must not block billing; fall through to the prompt.
		r.log.WarnContext(ctx, "Invoice cache lookup failed", "error", err,
			"project", task.ProjectID, "month", month)
	}
	if cached != "" {
		return cached, nil
	}

	if r.prompter == nil {
		return "", ErrEmptyInvoiceID
	}
	entered, err := r.prompter.PromptInvoiceID(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to prompt for invoice id: %w", err)
	}
	entered = strings.TrimSpace(entered)
	if entered == "" {
		return "", ErrEmptyInvoiceID
	}

	if err = r.cache.RememberInvoiceID(ctx, task.ProjectID, month, entered); err != nil {
		r.log.WarnContext(ctx, "Failed to cache invoice id", "error", err,
			"project", task.ProjectID, "month", month)
	}
	return entered, nil
}

// TogglePayment flips one task's paid status, always without a prompt.
// Paying stamps today as the payment date; un-paying clears it.
func (r *BillingReconciler) TogglePayment(ctx context.Context, task models.Task) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	defer r.busy.Store(false)

	update := models.PaymentStatusUpdate{TaskID: task.ID, IsPaid: !task.IsPaid}
	if update.IsPaid {
		update.PaymentDate = models.Date{Time: r.now()}
	}
	if err := r.mutator.UpdatePaymentStatus(ctx, []models.PaymentStatusUpdate{update}); err != nil {
		return fmt.Errorf("failed to update payment status of task %d: %w", task.ID, err)
	}

	r.log.InfoContext(ctx, "Task payment status changed", "task", task.ID, "paid", update.IsPaid)
	return nil
}

// BulkBilling sets the billed status of every given task to an explicitly
// chosen value and date, with one invoice id applied uniformly. The tuples
// are submitted as a single request; on failure nothing is applied locally.
func (r *BillingReconciler) BulkBilling(
	ctx context.Context,
	tasks []models.Task,
	billed bool,
	date time.Time,
	invoiceID string,
) error {
	if len(tasks) == 0 {
		return nil
	}
	invoiceID = strings.TrimSpace(invoiceID)
	if billed && invoiceID == "" {
		return ErrEmptyInvoiceID
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	defer r.busy.Store(false)

	updates := make([]models.BillingStatusUpdate, 0, len(tasks))
	for _, task := range tasks {
		update := models.BillingStatusUpdate{TaskID: task.ID, IsBilled: billed}
		if billed {
			update.BillingDate = models.Date{Time: date}
			update.InvoiceID = invoiceID
		}
		updates = append(updates, update)
	}

	if err := r.mutator.UpdateBillingStatus(ctx, updates); err != nil {
		return fmt.Errorf("failed to update billing status of %d tasks: %w", len(updates), err)
	}

	if billed {
		r.rememberBulkInvoice(ctx, tasks, invoiceID)
	}

	r.log.InfoContext(ctx, "Bulk billing update applied", "tasks", len(updates), "billed", billed)
	return nil
}

// rememberBulkInvoice seeds the invoice cache from a bulk billing, once per
// distinct (project, month) among the affected tasks.
func (r *BillingReconciler) rememberBulkInvoice(ctx context.Context, tasks []models.Task, invoiceID string) {
	type key struct {
		project int64
		month   string
	}
	seen := make(map[key]struct{})

	for _, task := range tasks {
		cacheKey := key{project: task.ProjectID, month: InvoiceCacheMonth(task)}
		if _, ok := seen[cacheKey]; ok {
			continue
		}
		seen[cacheKey] = struct{}{}
		if err := r.cache.RememberInvoiceID(ctx, cacheKey.project, cacheKey.month, invoiceID); err != nil {
			r.log.WarnContext(ctx, "Failed to cache invoice id", "error", err,
				"project", cacheKey.project, "month", cacheKey.month)
		}
	}
}

// BulkPayment sets the paid status of every given task to an explicitly
// chosen value and date, submitted as one request.
func (r *BillingReconciler) BulkPayment(
	ctx context.Context,
	tasks []models.Task,
	paid bool,
	date time.Time,
) error {
	if len(tasks) == 0 {
		return nil
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	defer r.busy.Store(false)

	updates := make([]models.PaymentStatusUpdate, 0, len(tasks))
	for _, task := range tasks {
		update := models.PaymentStatusUpdate{TaskID: task.ID, IsPaid: paid}
		if paid {
			update.PaymentDate = models.Date{Time: date}
		}
		updates = append(updates, update)
	}

	if err := r.mutator.UpdatePaymentStatus(ctx, updates); err != nil {
		return fmt.Errorf("failed to update payment status of %d tasks: %w", len(updates), err)
	}

	r.log.InfoContext(ctx, "Bulk payment update applied", "tasks", len(updates), "paid", paid)
	return nil
}
