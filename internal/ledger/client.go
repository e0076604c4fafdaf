// Package ledger talks to the ledger node: read-only contract calls,
// transaction broadcast and chain status.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
)

// Client is an HTTP client for a ledger node's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the node at baseURL
// (e.g. "https://api.testnet.hiro.so"). A nil httpClient imposes no timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// HTTPError is a non-2xx response from the node.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("node HTTP %d: %s", e.StatusCode, e.Body)
}

// ReadOnlyError is a read-only call the node evaluated and refused.
type ReadOnlyError struct {
	Function string
	Cause    string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("read-only %s failed: %s", e.Function, e.Cause)
}

// BroadcastError is a transaction the node refused to accept.
type BroadcastError struct {
	StatusCode int
	Err        string          `json:"error"`
	Reason     string          `json:"reason"`
	ReasonData json.RawMessage `json:"reason_data,omitempty"`
}

// Message is the node's own rejection text, unmodified. The reason code is
// only used when the node sent no text.
func (e *BroadcastError) Message() string {
	if e.Err != "" {
		return e.Err
	}
	return e.Reason
}

func (e *BroadcastError) Error() string {
	if e.Err != "" && e.Reason != "" {
		return fmt.Sprintf("broadcast rejected: %s (%s)", e.Err, e.Reason)
	}
	return fmt.Sprintf("broadcast rejected: %s", e.Message())
}

type readOnlyRequest struct {
	Sender    string          `json:"sender"`
	Arguments []clarity.Value `json:"arguments"`
}

type readOnlyResponse struct {
	Okay   bool          `json:"okay"`
	Result clarity.Value `json:"result"`
	Cause  string        `json:"cause"`
}

// CallReadOnly evaluates a read-only contract function.
func (c *Client) CallReadOnly(ctx context.Context, address, name, function, sender string, args ...clarity.Value) (clarity.Value, error) {
	if args == nil {
		args = []clarity.Value{}
	}
	path := fmt.Sprintf("/v2/contracts/call-read/%s/%s/%s",
		url.PathEscape(address), url.PathEscape(name), url.PathEscape(function))

	var resp readOnlyResponse
	if err := c.doJSON(ctx, http.MethodPost, path, readOnlyRequest{Sender: sender, Arguments: args}, &resp); err != nil {
		return clarity.Value{}, fmt.Errorf("read-only %s: %w", function, err)
	}
	if !resp.Okay {
		return clarity.Value{}, &ReadOnlyError{Function: function, Cause: resp.Cause}
	}
	return resp.Result, nil
}

// Broadcast submits a signed call and returns the transaction id.
func (c *Client) Broadcast(ctx context.Context, tx *SignedCall) (string, error) {
	data, err := json.Marshal(map[string]any{"transaction": tx})
	if err != nil {
		return "", fmt.Errorf("marshaling transaction: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transactions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		be := &BroadcastError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, be) != nil || (be.Err == "" && be.Reason == "") {
			be.Err = strings.TrimSpace(string(body))
		}
		return "", be
	}

	// Nodes answer either {"txid": "..."} or a bare JSON string.
	var out struct {
		TxID  string `json:"txid"`
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &out) == nil {
		if out.Error != "" {
			be := &BroadcastError{StatusCode: resp.StatusCode}
			_ = json.Unmarshal(body, be)
			return "", be
		}
		if out.TxID != "" {
			return out.TxID, nil
		}
	}
	var bare string
	if json.Unmarshal(body, &bare) == nil && bare != "" {
		return bare, nil
	}
	return "", fmt.Errorf("decoding response: no txid in %q", strings.TrimSpace(string(body)))
}

// ChainHeight returns the node's current tip height.
func (c *Client) ChainHeight(ctx context.Context) (uint64, error) {
	var info struct {
		StacksTipHeight *uint64 `json:"stacks_tip_height"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/info", nil, &info); err != nil {
		return 0, fmt.Errorf("chain info: %w", err)
	}
	if info.StacksTipHeight == nil {
		return 0, fmt.Errorf("chain info: missing stacks_tip_height")
	}
	return *info.StacksTipHeight, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
