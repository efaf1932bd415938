// Package api is the JSON HTTP client for the procurement review backend.
package api

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

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/zakupki-desk/internal/procurement"
)

const (
	// RequestIDHeader carries a fresh uuid on every request.
	RequestIDHeader = "X-Request-ID"
	// DefaultTimeout bounds every request unless WithTimeout or WithHTTPClient says otherwise.
	DefaultTimeout = 60 * time.Second

	statusOK = "ok"
)

// Client talks to the backend on behalf of one user.
type Client struct {
	baseURL    *url.URL
	userID     int
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout overrides DefaultTimeout. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for baseURL (e.g. http://localhost:8000/api).
func New(baseURL string, userID int, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	if userID < 1 {
		return nil, fmt.Errorf("api: invalid user id %d", userID)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		baseURL:  u,
		userID:   userID,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	c.logger = c.logger.Named("api")
	return c, nil
}

// UserID is the user every request is made for.
func (c *Client) UserID() int { return c.userID }

// ListNotices returns up to limit stage-1 notices.
func (c *Client) ListNotices(ctx context.Context, limit int) ([]procurement.Notice, error) {
	var out []procurement.Notice
	err := c.do(ctx, call{
		op:     "list notices",
		method: http.MethodGet,
		path:   []string{"stage1"},
		query:  c.query(url.Values{"limit": {strconv.Itoa(limit)}}),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddToStage2 promotes the given notices to AI review.
func (c *Client) AddToStage2(ctx context.Context, regNumbers []string) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, call{
		op:     "add to stage2",
		method: http.MethodPost,
		path:   []string{"actions", "add_to_stage2"},
		body:   promoteRequest{UserID: c.userID, RegNumbers: regNumbers},
		out:    &out,
	})
	return out, err
}

// RunIngestion asks the backend to pull up to limit new notices from the registry.
func (c *Client) RunIngestion(ctx context.Context, limit int) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, call{
		op:     "run ingestion",
		method: http.MethodPost,
		path:   []string{"actions", "run_stage1"},
		body:   ingestRequest{Limit: limit},
		out:    &out,
	})
	return out, err
}

// ListReviewItems returns the records waiting in stage 2.
func (c *Client) ListReviewItems(ctx context.Context) ([]procurement.ReviewItem, error) {
	var out []procurement.ReviewItem
	err := c.do(ctx, call{
		op:     "list review items",
		method: http.MethodGet,
		path:   []string{"stage2"},
		query:  c.query(nil),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOverrides returns the user's overrides for one record.
func (c *Client) FetchOverrides(ctx context.Context, regNumber string) (procurement.Overrides, error) {
	if strings.TrimSpace(regNumber) == "" {
		return nil, &ValidationError{Op: "fetch overrides", Err: errors.New("empty reg number")}
	}
	var raw map[string]procurement.Value
	err := c.do(ctx, call{
		op:     "fetch overrides",
		method: http.MethodGet,
		path:   []string{"overrides", url.PathEscape(regNumber)},
		query:  c.query(nil),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	overrides := make(procurement.Overrides, len(raw))
	for key, v := range raw {
		if v.Valid() {
			overrides.Set(key, v.String())
		} else {
			overrides[key] = nil
		}
	}
	return overrides, nil
}

// SaveOverride stores the operator's value for one field of one record.
func (c *Client) SaveOverride(ctx context.Context, regNumber, field, value string) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, call{
		op:     "save override",
		method: http.MethodPost,
		path:   []string{"overrides"},
		body: overrideRequest{
			UserID:    c.userID,
			RegNumber: regNumber,
			FieldName: field,
			Value:     value,
		},
		out: &out,
	})
	return out, err
}

// SaveDecision records a verdict. The response is not inspected: only a
// failure to reach the backend is reported.
func (c *Client) SaveDecision(ctx context.Context, d procurement.Decision) error {
	return c.do(ctx, call{
		op:     "save decision",
		method: http.MethodPost,
		path:   []string{"decisions"},
		body: decisionRequest{
			UserID:    c.userID,
			RegNumber: d.RegNumber,
			Stage:     d.Stage,
			Decision:  string(d.Verdict),
			Comment:   d.Comment,
		},
		ignoreResponse: true,
	})
}

// RunStage3 starts link generation for everything approved at stage 2.
func (c *Client) RunStage3(ctx context.Context) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, call{
		op:     "run stage3",
		method: http.MethodPost,
		path:   []string{"actions", "run_stage3"},
		body:   stage3Request{UserID: c.userID},
		out:    &out,
	})
	return out, err
}

func (c *Client) query(extra url.Values) url.Values {
	q := url.Values{"user_id": {strconv.Itoa(c.userID)}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

type call struct {
	op     string
	method string
	// path segments, already escaped
	path           []string
	query          url.Values
	body           any
	out            any
	ignoreResponse bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.body != nil {
		if err := c.validate.Struct(cl.body); err != nil {
			return &ValidationError{Op: cl.op, Err: err}
		}
		b, err := json.Marshal(cl.body)
		if err != nil {
			return &ValidationError{Op: cl.op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL.JoinPath(cl.path...)
	if cl.query != nil {
		u.RawQuery = cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return &TransportError{Op: cl.op, Err: fmt.Errorf("build request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With(
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("url", u.String()),
		zap.String("request_id", requestID),
	)
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return &TransportError{Op: cl.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	log.Debug("response", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(started)))

	if cl.ignoreResponse {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: cl.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("unexpected status", zap.Int("status", resp.StatusCode))
		return &TransportError{
			Op:         cl.op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(payload)), 200)),
		}
	}
	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, cl.out); err != nil {
		log.Warn("malformed response", zap.Error(err))
		return &TransportError{Op: cl.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
