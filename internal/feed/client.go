package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://frontend-api-v3.pump.fun"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	maxErrorBody = 512
)

// PageRequest asks for one page of the listing.
type PageRequest struct {
	Offset int
	Limit  int
	Class  domain.TokenClass
}

// PageSource fetches a single page of raw records.
type PageSource interface {
	Page(ctx context.Context, req PageRequest) ([]RawRecord, error)
}

// HTTPClient implements PageSource against the pump.fun listing API.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	session     SessionProvider
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts after the first request.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay, including delays asked for by Retry-After.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithSession sets the session provider used for every request.
func WithSession(p SessionProvider) ClientOption {
	return func(c *HTTPClient) {
		c.session = p
	}
}

// NewHTTPClient creates a feed client for baseURL (DefaultBaseURL when empty).
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		session:     StaticSession{Headers: DefaultHeaders()},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page requests one page and decodes it into raw records.
// Failures are returned as *TransportError.
func (c *HTTPClient) Page(ctx context.Context, req PageRequest) (records []RawRecord, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.RecordFeedRequest(outcome, time.Since(start))
	}()

	u := c.pageURL(req)

	delay := c.retryDelay
	var (
		lastErr    error
		lastStatus int
		attempts   int
	)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if ra, ok := lastErr.(*retryAfterError); ok && ra.after > 0 {
				wait = ra.after
			}
			if wait > c.maxDelay {
				wait = c.maxDelay
			}
			select {
			case <-ctx.Done():
				return nil, c.transportError(req, lastStatus, attempts, ctx.Err())
			case <-time.After(wait):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}
		attempts++

		recs, status, doErr := c.do(ctx, u)
		if doErr == nil {
			return recs, nil
		}
		lastErr, lastStatus = doErr, status

		if !isRetryable(ctx, status, doErr) {
			break
		}
	}

	var ra *retryAfterError
	if errors.As(lastErr, &ra) {
		lastErr = ra.err
	}
	return nil, c.transportError(req, lastStatus, attempts, lastErr)
}

func (c *HTTPClient) transportError(req PageRequest, status, attempts int, err error) *TransportError {
	return &TransportError{Offset: req.Offset, StatusCode: status, Attempts: attempts, Err: err}
}

func (c *HTTPClient) pageURL(req PageRequest) string {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(req.Offset))
	q.Set("limit", strconv.Itoa(req.Limit))
	q.Set("sort", "created_timestamp")
	q.Set("order", "DESC")
	q.Set("includeNsfw", "false")
	// recent is the same newest-first listing as all; readers apply the recency window.
	if req.Class == domain.ClassBonded {
		q.Set("complete", "true")
	}
	return c.baseURL + "/coins?" + q.Encode()
}

// do performs a single attempt. The returned status is 0 when no response was received.
func (c *HTTPClient) do(ctx context.Context, u string) ([]RawRecord, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.session != nil {
		sess, err := c.session.Session(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("load session: %w", err)
		}
		sess.Apply(req)
	}
	// Set explicitly so the transport does not decode gzip on its own and brotli is offered.
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, resp.StatusCode, &retryAfterError{
			after: parseRetryAfter(resp.Header.Get("Retry-After")),
			err:   fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var records []RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return records, resp.StatusCode, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

// retryAfterError marks a retryable status and carries the server's requested delay.
type retryAfterError struct {
	after time.Duration
	err   error
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

func isRetryable(ctx context.Context, status int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	if status != 0 {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfter parses a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

var _ PageSource = (*HTTPClient)(nil)
