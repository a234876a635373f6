package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hrdash/internal/platform/metrics"
	"hrdash/internal/requestctx"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 8 << 20
	errorBodyBytes      = 64 << 10
	employeesPath       = "/employees"
)

// Client reads employee pages from the remote HR service. It is safe for
// concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	logger       *slog.Logger
	metrics      *metrics.Collector
	maxBodyBytes int64
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client keeps its own
// Timeout unless WithTimeout is also given, in either order.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each request. It is applied after all other options
// on a copy of the HTTP client, so a caller's client is never mutated.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       slog.Default(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		copied := *c.httpClient
		copied.Timeout = c.timeout
		c.httpClient = &copied
	}
	return c
}

// FetchEmployees returns one normalized page. It never returns an error and
// never panics: every failure is reported through Result.Failure.
func (c *Client) FetchEmployees(ctx context.Context, page, limit int, companyID string) (result Result) {
	start := time.Now()
	var cause error
	defer func() {
		if recovered := recover(); recovered != nil {
			message := ""
			if err, ok := recovered.(error); ok {
				message = err.Error()
			}
			cause = fmt.Errorf("panic: %v", recovered)
			result = Failed(UnexpectedError{Message: message})
		}
		c.observe(ctx, result, cause, page, limit, companyID, time.Since(start))
	}()

	req, err := c.newRequest(ctx, page, limit, companyID)
	if err != nil {
		cause = err
		return Failed(RequestConstructionError{Message: err.Error()})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cause = err
		return Failed(classifyTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failure := ServerError{Status: resp.StatusCode, Message: readServerMessage(resp.Body)}
		cause = failure
		return Failed(failure)
	}

	var payload listResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodyBytes)).Decode(&payload); err != nil {
		cause = fmt.Errorf("decode employee page: %w", err)
		return Failed(UnexpectedError{Message: cause.Error()})
	}

	raws := payload.Data
	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	total, _ := payload.Total.Int()
	return Succeeded(NormalizeAll(raws), total)
}

func (c *Client) newRequest(ctx context.Context, page, limit int, companyID string) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + employeesPath)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("companyId", companyID)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestID := requestctx.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	return req, nil
}

func (c *Client) observe(ctx context.Context, result Result, cause error, page, limit int, companyID string, elapsed time.Duration) {
	c.metrics.ObserveFetch(result.Outcome(), elapsed)
	if result.OK() {
		return
	}
	c.logger.Error("employee directory fetch failed",
		"code", result.Failure.Code(),
		"message", result.ErrorMessage(),
		"page", page,
		"limit", limit,
		"companyId", companyID,
		"requestId", requestctx.GetRequestID(ctx),
		"durationMs", elapsed.Milliseconds(),
		"err", cause,
	)
}

// classifyTransportError separates "sent but no answer" from requests that
// could not be dispatched at all.
func classifyTransportError(err error) Failure {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() || noResponse(urlErr.Err) {
			return NetworkUnavailable{}
		}
		return RequestConstructionError{Message: urlErr.Err.Error()}
	}
	if noResponse(err) {
		return NetworkUnavailable{}
	}
	return RequestConstructionError{Message: err.Error()}
}

func noResponse(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func readServerMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, errorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if !payload.Message.Truthy() {
		return ""
	}
	return payload.Message.String()
}
