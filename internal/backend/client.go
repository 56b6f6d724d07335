package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/richardliu001/pos-sync/internal/model"
	"go.uber.org/zap"
)

// Client talks to the central backend. Every call carries the
// http.Client timeout so a stalled request cannot wedge a background
// loop.
type Client struct {
	base string
	hc   *http.Client
	log  *zap.SugaredLogger
}

// NewClient constructs client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		base: baseURL,
		hc:   &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Heartbeat asks how many change events are waiting for this terminal.
func (c *Client) Heartbeat(ctx context.Context) (int, error) {
	var out struct {
		PendingCount int `json:"pending_count"`
	}
	if err := c.getJSON(ctx, c.base+"/v1/sync/heartbeat", &out); err != nil {
		return 0, err
	}
	return out.PendingCount, nil
}

// FetchUpdates pulls the next ordered batch of change events. The
// backend retains events until each is acknowledged via ReportOutcome.
func (c *Client) FetchUpdates(ctx context.Context) ([]model.ChangeEvent, error) {
	var out struct {
		Events []model.ChangeEvent `json:"events"`
	}
	if err := c.getJSON(ctx, c.base+"/v1/sync/updates", &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// ReportOutcome acks or nacks one change event so the backend stops
// redelivering it.
func (c *Client) ReportOutcome(ctx context.Context, token string, ack bool, reasonCode, message string) error {
	body := map[string]interface{}{
		"delivery_token": token,
		"ack":            ack,
	}
	if !ack {
		body["reason_code"] = reasonCode
		body["message"] = message
	}
	raw, _ := json.Marshal(body)

	resp, err := c.do(ctx, http.MethodPost, c.base+"/v1/sync/outcome", raw)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &RequestError{Op: "report outcome", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	return nil
}

// FetchEntityAt retrieves the entity snapshot as of asOf. ErrGone means
// the entity was deleted server-side by that moment.
func (c *Client) FetchEntityAt(ctx context.Context, entityType, entityID string, asOf time.Time) (string, error) {
	u := fmt.Sprintf("%s/v1/entities/%s/%s?as_of=%s",
		c.base, url.PathEscape(entityType), url.PathEscape(entityID),
		url.QueryEscape(asOf.UTC().Format(time.RFC3339Nano)))

	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", ErrGone
	case resp.StatusCode/100 != 2:
		return "", &RequestError{Op: "temporal fetch", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var out struct {
		Gone    bool            `json:"gone"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode temporal fetch: %w", err)
	}
	if out.Gone {
		return "", ErrGone
	}
	return string(out.Payload), nil
}

// submitResponse is the dual-status envelope of the transaction
// endpoint. The body status must be checked independently of the HTTP
// code: the backend can answer 202 Accepted with status "Failure".
type submitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitTransaction uploads one completed sale payload.
func (c *Client) SubmitTransaction(ctx context.Context, payload string) error {
	resp, err := c.do(ctx, http.MethodPost, c.base+"/v1/transactions", []byte(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body submitResponse
	_ = json.Unmarshal(raw, &body)

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{Code: resp.StatusCode, Message: body.Message}
	case resp.StatusCode/100 != 2:
		return &RequestError{Op: "submit transaction", Err: fmt.Errorf("http %d", resp.StatusCode)}
	case body.Status != "Success":
		c.log.Warnf("transaction endpoint answered http %d with body status %q", resp.StatusCode, body.Status)
		return &SubmitFailure{HTTPStatus: resp.StatusCode, Message: body.Message}
	}
	return nil
}

// ListItem is one page entry of a bulk reference load.
type ListItem struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// ListEntities pages through a reference collection using a
// last-seen-id cursor.
func (c *Client) ListEntities(ctx context.Context, collection, afterID string, pageSize int) ([]ListItem, error) {
	u := fmt.Sprintf("%s/v1/entities/%s?after_id=%s&page_size=%s",
		c.base, url.PathEscape(collection), url.QueryEscape(afterID), strconv.Itoa(pageSize))

	var out struct {
		Items []ListItem `json:"items"`
	}
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.log.Debugf("%s %s", method, url)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &RequestError{Op: method + " " + url, Err: err}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &RequestError{Op: "GET " + url, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
