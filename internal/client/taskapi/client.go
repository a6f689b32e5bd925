// Package taskapi is the HTTP client for the task management API. It backs
// the bot's task list with page fetches, status mutations and report
// downloads.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/workmgmt/tasklens/internal/models"
	"github.com/workmgmt/tasklens/internal/tasklist"
)

const defaultTimeout = 30 * time.Second

// Client talks JSON over HTTP to the task API. It satisfies both
// tasklist.PageFetcher and tasklist.Mutator.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a Client for the API at baseURL. A nil httpc falls back
// to a client with a sane timeout.
func NewClient(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
	}
}

// FetchPage retrieves one page of tasks matching the criteria's
// backend-supported parameters. Calendar month/year tokens never reach the
// wire; callers scan and filter locally for those.
func (c *Client) FetchPage(ctx context.Context, criteria tasklist.Criteria) (*models.TaskPage, error) {
	endpoint := c.baseURL + "/api/tasks?" + criteria.BackendQuery().Encode()

	var page models.TaskPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch task page: %w", err)
	}
	return &page, nil
}

// GetTask retrieves a single task by id.
func (c *Client) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	endpoint := fmt.Sprintf("%s/api/tasks/%d", c.baseURL, taskID)

	var task models.Task
	if err := c.getJSON(ctx, endpoint, &task); err != nil {
		return nil, fmt.Errorf("failed to fetch task %d: %w", taskID, err)
	}
	return &task, nil
}

// UpdateBillingStatus applies a bulk billing mutation. The server applies
// all tuples in one transaction, so a returned error means nothing changed.
func (c *Client) UpdateBillingStatus(ctx context.Context, updates []models.BillingStatusUpdate) error {
	if err := c.putJSON(ctx, c.baseURL+"/api/tasks/billing-status", updates); err != nil {
		return fmt.Errorf("failed to update billing status: %w", err)
	}
	return nil
}

// UpdatePaymentStatus applies a bulk payment mutation.
func (c *Client) UpdatePaymentStatus(ctx context.Context, updates []models.PaymentStatusUpdate) error {
	if err := c.putJSON(ctx, c.baseURL+"/api/tasks/payment-status", updates); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// DownloadReport fetches the Excel task report, optionally scoped to one
// project, and returns the raw workbook bytes.
func (c *Client) DownloadReport(ctx context.Context, projectID *int64) ([]byte, error) {
	values := url.Values{}
	if projectID != nil {
		values.Set("projectId", strconv.FormatInt(*projectID, 10))
	}
	endpoint := c.baseURL + "/api/reports/tasks.xlsx"
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create report request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report body: %w", err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) putJSON(ctx context.Context, endpoint string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// statusError folds a non-2xx response into an error carrying the server's
// error message when one is present.
func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
