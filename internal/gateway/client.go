package gateway

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

	"github.com/nhle/efficio/internal/model"
)

// apiPrefix is where the proxy mounts its workspace routes.
const apiPrefix = "/api/notion"

// Client is a thin HTTP client for the workspace proxy. It handles Bearer
// token authentication, JSON marshaling, and automatic retry with
// exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

var _ Gateway = (*Client)(nil)

// NewClient creates a new proxy client. The token may be empty when the
// proxy does not require authentication.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// Ping checks the proxy's health route.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/health", nil, nil)
}

// ListTasks fetches every task in the active workspace database.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	return c.listTasks(ctx, "listTasks", apiPrefix+"/tasks")
}

// ListArchivedTasks fetches every task in the archive database.
func (c *Client) ListArchivedTasks(ctx context.Context) ([]model.Task, error) {
	return c.listTasks(ctx, "listArchivedTasks", apiPrefix+"/archive-tasks")
}

func (c *Client) listTasks(ctx context.Context, op, path string) ([]model.Task, error) {
	var payload []taskPayload
	if err := c.do(ctx, op, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(payload))
	for _, p := range payload {
		tasks = append(tasks, p.toTask())
	}
	return tasks, nil
}

// CreateTask creates a task in the active database and returns its id.
func (c *Client) CreateTask(ctx context.Context, fields model.TaskFields) (string, error) {
	return c.create(ctx, "createTask", apiPrefix+"/tasks", toPayload(fields))
}

// CreateArchivedTask creates a task in the archive database and returns
// its id.
func (c *Client) CreateArchivedTask(ctx context.Context, fields model.TaskFields) (string, error) {
	return c.create(ctx, "createArchivedTask", apiPrefix+"/archive-tasks", toPayload(fields))
}

// UpdateTaskStatus changes the status of a remote task.
func (c *Client) UpdateTaskStatus(ctx context.Context, remoteID string, status model.Status) error {
	return c.do(ctx, "updateTaskStatus", http.MethodPut,
		apiPrefix+"/tasks/"+url.PathEscape(remoteID),
		statusRequest{Status: string(status)}, nil)
}

// SoftDeleteTask archives a task in the active database.
func (c *Client) SoftDeleteTask(ctx context.Context, remoteID string) error {
	return c.do(ctx, "softDeleteTask", http.MethodDelete,
		apiPrefix+"/tasks/"+url.PathEscape(remoteID), nil, nil)
}

// ListHabits fetches the habit tracker entries.
func (c *Client) ListHabits(ctx context.Context) ([]model.Habit, error) {
	var habits []model.Habit
	if err := c.do(ctx, "listHabits", http.MethodGet, apiPrefix+"/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// SetHabitDone sets the Do Now flag on a habit.
func (c *Client) SetHabitDone(ctx context.Context, habitID string, done bool) error {
	return c.do(ctx, "setHabitDone", http.MethodPatch,
		apiPrefix+"/habits/"+url.PathEscape(habitID),
		habitDoneRequest{DoNow: done}, nil)
}

// CreateTimeBlock creates a time block and returns its id.
func (c *Client) CreateTimeBlock(ctx context.Context, block model.TimeBlock) (string, error) {
	return c.create(ctx, "createTimeBlock", apiPrefix+"/timeblocks", timeBlockPayload{
		Title:    block.Title,
		Date:     block.Date,
		Time:     block.Time,
		Duration: block.Duration,
		Type:     block.Type,
		Tasks:    block.TaskIDs,
	})
}

func (c *Client) create(ctx context.Context, op, path string, body interface{}) (string, error) {
	var resp createResponse
	if err := c.do(ctx, op, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &RemoteError{Op: op, StatusCode: http.StatusOK, Message: "response carried no id"}
	}
	return resp.ID, nil
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	target := c.baseURL + path

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request body: %w", op, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if data != nil {
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("%s: creating request: %w", op, err)
		}

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s: executing request %s %s: %w", op, method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("%s: reading response body: %w", op, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return decodeError(op, resp.StatusCode, respBody)
		}

		// A 200 can still carry an error payload.
		if payloadErr := decodeError(op, resp.StatusCode, respBody); payloadErr.Message != "" &&
			bytes.Contains(respBody, []byte(`"error"`)) {
			return payloadErr
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s: unmarshaling response from %s %s: %w", op, method, path, err)
		}

		return nil
	}

	return fmt.Errorf("%s: max retries (%d) exceeded: %w", op, c.maxRetries, lastErr)
}

// decodeError turns a response body into a RemoteError, falling back to
// the raw body when it is not a JSON error payload.
func decodeError(op string, status int, body []byte) *RemoteError {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		details := payload.Details
		if details == "" {
			details = payload.Message
		}
		return &RemoteError{Op: op, StatusCode: status, Message: payload.Error, Details: details}
	}
	if status >= 200 && status < 300 {
		return &RemoteError{Op: op, StatusCode: status}
	}
	return &RemoteError{
		Op:         op,
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
