package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/server"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

// HTTPClient implements Client using the chainreg HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request. A zero timeout means none; streams are
// never subject to it.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Ledger view ---

func (c *HTTPClient) Status(ctx context.Context) (*server.StatusResponse, error) {
	var resp server.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListAssets(ctx context.Context, req *ListAssetsRequest) ([]model.AssetRecord, error) {
	q := url.Values{}
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}

	var resp struct {
		Assets []model.AssetRecord `json:"assets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/assets", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	q := url.Values{}
	if req.Organizer != "" {
		q.Set("organizer", req.Organizer)
	}
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Upcoming {
		q.Set("upcoming", "true")
	}

	var resp ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/events", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListTickets(ctx context.Context, owner string) ([]model.TicketView, error) {
	q := url.Values{}
	if owner != "" {
		q.Set("owner", owner)
	}
	var resp struct {
		Tickets []model.TicketView `json:"tickets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/tickets", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (*reconcile.Snapshot, error) {
	var snap reconcile.Snapshot
	if err := c.doJSON(ctx, http.MethodPost, "/v1/refresh", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// --- Notifications ---

func (c *HTTPClient) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	var resp struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/notifications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

func (c *HTTPClient) DismissNotification(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/notifications/"+strconv.FormatInt(id, 10), nil, nil)
}

// --- Workflows ---

func (c *HTTPClient) Register(ctx context.Context, in *workflow.RegistrationInput) (*workflow.Result, error) {
	return c.runWorkflow(ctx, "/v1/workflows/register", in)
}

func (c *HTTPClient) CreateEvent(ctx context.Context, in *workflow.EventInput) (*workflow.Result, error) {
	return c.runWorkflow(ctx, "/v1/workflows/events", in)
}

func (c *HTTPClient) Purchase(ctx context.Context, in *workflow.PurchaseInput) (*workflow.Result, error) {
	return c.runWorkflow(ctx, "/v1/workflows/purchase", in)
}

// runWorkflow posts a workflow request. A rejected input still carries the
// reported run, which is returned next to the *APIError.
func (c *HTTPClient) runWorkflow(ctx context.Context, path string, in any) (*workflow.Result, error) {
	var res workflow.Result
	err := c.doJSON(ctx, http.MethodPost, path, in, &res)
	if err == nil {
		return &res, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		if json.Unmarshal(apiErr.Body, &res) == nil && res.RunID != "" {
			return &res, err
		}
	}
	return nil, err
}

func (c *HTTPClient) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Runs []*model.RunRecord `json:"runs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/runs", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte // raw response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error, Body: body}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body)), Body: body}
}
