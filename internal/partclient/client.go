// Package partclient is the request/response wrapper around the external
// Part service. It keeps no state between calls, never retries, and applies
// no business rules.
package partclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	"github.com/yungbote/bomgraph-backend/internal/platform/envutil"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 16 << 20
)

// Observer is told about every completed call. status is 0 when no response
// arrived.
type Observer func(op string, status int, elapsed time.Duration)

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	HTTPClient *http.Client
	Observer   Observer
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	observe    Observer
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("part service baseURL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    timeout,
		httpClient: hc,
		observe:    opts.Observer,
	}, nil
}

func NewFromEnv() (*Client, error) {
	return New(Options{
		BaseURL: envutil.String("PART_SERVICE_BASE_URL", "http://localhost:8081"),
		APIKey:  envutil.String("PART_SERVICE_API_KEY", ""),
		Timeout: time.Duration(envutil.Int("PART_SERVICE_TIMEOUT_SECONDS", 15)) * time.Second,
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

// ListParts returns every part with its childUsages embedded.
func (c *Client) ListParts(ctx context.Context) ([]parts.Part, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "list parts", http.MethodGet, "/parts", nil, &raw); err != nil {
		return nil, err
	}
	list, err := decodePartList(raw)
	if err != nil {
		return nil, &TransportError{Op: "list parts", StatusCode: http.StatusOK, Message: "undecodable part list", Err: err}
	}
	return list, nil
}

func (c *Client) GetPart(ctx context.Context, id string) (parts.Part, error) {
	var out parts.Part
	err := c.doJSON(ctx, "get part", http.MethodGet, "/parts/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreatePart(ctx context.Context, fields parts.Fields) (parts.Part, error) {
	var out parts.Part
	err := c.doJSON(ctx, "create part", http.MethodPost, "/parts", fields, &out)
	return out, err
}

func (c *Client) UpdatePart(ctx context.Context, id string, fields parts.Fields) (parts.Part, error) {
	var out parts.Part
	err := c.doJSON(ctx, "update part", http.MethodPut, "/parts/"+url.PathEscape(id), fields, &out)
	return out, err
}

// DeletePart deletes a part. The service drops every usage edge that
// references it.
func (c *Client) DeletePart(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete part", http.MethodDelete, "/parts/"+url.PathEscape(id), nil, nil)
}

// AddUsage creates one usage edge. The service may reject it with a domain
// error (for example a cycle it detected itself).
func (c *Client) AddUsage(ctx context.Context, in parts.UsageInput) (parts.UsageEdge, error) {
	var out usageResponse
	if err := c.doJSON(ctx, "add usage", http.MethodPost, "/parts/usage", in, &out); err != nil {
		return parts.UsageEdge{}, err
	}
	edge := parts.UsageEdge{
		UsageID:      out.ID,
		ParentPartID: out.ParentPartID,
		ChildPartID:  out.ChildPartID,
		Quantity:     out.Quantity,
	}
	if edge.ParentPartID == "" {
		edge.ParentPartID = in.ParentPartID
	}
	if edge.ChildPartID == "" {
		edge.ChildPartID = in.ChildPartID
	}
	if edge.Quantity == 0 {
		edge.Quantity = in.Quantity
	}
	return edge, nil
}

// RemoveUsage removes every edge from parentID to childID.
func (c *Client) RemoveUsage(ctx context.Context, parentID, childID string) error {
	path := "/parts/" + url.PathEscape(parentID) + "/usage/" + url.PathEscape(childID)
	return c.doJSON(ctx, "remove usage", http.MethodDelete, path, nil, nil)
}

// ---------------- HTTP helpers ----------------

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, op string, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &TransportError{Op: op, Message: "encode request", Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status := 0
	defer func() {
		if c.observe != nil {
			c.observe(op, status, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "undecodable response", Body: string(raw), Err: err}
	}
	return nil
}

// decodePartList accepts a bare array or an object wrapping it under
// "parts", "data" or "items".
func decodePartList(raw json.RawMessage) ([]parts.Part, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []parts.Part{}, nil
	}
	if trimmed[0] == '[' {
		var list []parts.Part
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var env struct {
		Parts []parts.Part `json:"parts"`
		Data  []parts.Part `json:"data"`
		Items []parts.Part `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Parts != nil:
		return env.Parts, nil
	case env.Data != nil:
		return env.Data, nil
	case env.Items != nil:
		return env.Items, nil
	}
	return nil, errors.New("part list not found in response")
}
