package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// StreamEvents follows GET /v1/notifications/stream and calls fn for each
// event until ctx is done, the server closes the stream, or fn returns an
// error. A cancelled ctx is not reported as an error.
func (c *HTTPClient) StreamEvents(ctx context.Context, req *StreamRequest, fn func(Event) error) error {
	q := url.Values{}
	if len(req.Topics) > 0 {
		q.Set("topics", strings.Join(req.Topics, ","))
	}
	httpReq, err := c.newRequest(ctx, http.MethodGet, withQuery("/v1/notifications/stream", q), nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.LastEventID > 0 {
		httpReq.Header.Set("Last-Event-ID", strconv.FormatUint(req.LastEventID, 10))
	}

	// The stream outlives any per-request timeout.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	err = readEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses a text/event-stream body. Comment lines are skipped.
func readEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var evt Event
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				evt.Data = []byte(strings.Join(data, "\n"))
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt, data = Event{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			if id, err := strconv.ParseUint(value, 10, 64); err == nil {
				evt.ID = id
			}
		case "event":
			evt.Topic = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}
