package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketplace-catalog/internal/category"
	"marketplace-catalog/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 5 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// ErrFetchFailed matches every error returned by the client.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError is a failed backend call. Transport failures and backend
// reported failures look the same to callers: Error returns the message to
// show, Err keeps the detail for logs.
type FetchError struct {
	Op      string
	Message string
	Err     error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

func newFetchError(op, message string, err error) *FetchError {
	if message == "" {
		message = "failed to fetch " + op
	}
	return &FetchError{Op: op, Message: message, Err: err}
}

// Client reads the category collections from the marketplace backend.
type Client interface {
	Categories(ctx context.Context) ([]category.Category, error)
	AllSubcategories(ctx context.Context) ([]category.Subcategory, error)
	SubcategoriesOf(ctx context.Context, categoryID string) ([]category.Subcategory, error)
}

type Options struct {
	// Timeout bounds a whole request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Rate and Burst throttle outbound calls. Zero Rate disables throttling.
	Rate  float64
	Burst int
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// The lists stay raw so one undecodable record is dropped on its own
// instead of failing the whole response.
type categoriesResponse struct {
	envelope
	Categories []json.RawMessage `json:"categories"`
}

type subcategoriesResponse struct {
	envelope
	Subcategories []json.RawMessage `json:"subcategories"`
}

func (c *HTTPClient) Categories(ctx context.Context) ([]category.Category, error) {
	var resp categoriesResponse
	if err := c.get(ctx, "categories", "/api/categories", &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return decodeEach[category.Category](ctx, "categories", resp.Categories), nil
}

func (c *HTTPClient) AllSubcategories(ctx context.Context) ([]category.Subcategory, error) {
	var resp subcategoriesResponse
	if err := c.get(ctx, "subcategories", "/api/subcategories", &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return decodeEach[category.Subcategory](ctx, "subcategories", resp.Subcategories), nil
}

func (c *HTTPClient) SubcategoriesOf(ctx context.Context, categoryID string) ([]category.Subcategory, error) {
	if categoryID == "" {
		return nil, newFetchError("subcategories", "categoryID is required", nil)
	}

	var resp subcategoriesResponse
	path := "/api/categories/" + url.PathEscape(categoryID) + "/subcategories"
	if err := c.get(ctx, "subcategories", path, &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return decodeEach[category.Subcategory](ctx, "subcategories", resp.Subcategories), nil
}

// decodeEach decodes every record of a list, skipping the ones that fail.
// The result is never nil.
func decodeEach[T any](ctx context.Context, op string, raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Named(ctx, "catalogapi").Warn("skipping undecodable record",
				zap.String("op", op),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out
}

// get performs one GET and decodes the body into out. env must point at the
// envelope embedded in out.
func (c *HTTPClient) get(ctx context.Context, op, path string, out any, env *envelope) error {
	log := logger.Named(ctx, "catalogapi").With(
		zap.String("op", op),
		zap.String("path", path),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		log.Warn("fetch throttled", zap.Error(err))
		return newFetchError(op, "", fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return newFetchError(op, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqID := logger.RequestIDFrom(ctx); reqID != "" {
		req.Header.Set(logger.RequestIDHeader, reqID)
	}

	log.Debug("sending request to backend")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("backend request failed", zap.Error(err))
		return newFetchError(op, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return newFetchError(op, "", fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e envelope
		_ = json.Unmarshal(body, &e)
		log.Error("backend returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return newFetchError(op, e.Message, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Error("failed to decode response", zap.Error(err))
		return newFetchError(op, "", fmt.Errorf("decode %s: %w", op, err))
	}

	if !env.Success {
		log.Warn("backend reported failure", zap.String("message", env.Message))
		return newFetchError(op, env.Message, errors.New("success=false"))
	}

	return nil
}
