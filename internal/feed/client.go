package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry and backoff constants.
const (
	maxRetries  = 5
	baseBackoff = 1 * time.Second
	maxBackoff  = 60 * time.Second
	userAgent   = "sharewatch/0.1"
)

// Client is an HTTP client for the activity and directory APIs.
// It handles request construction, retry with exponential backoff,
// and error classification. Authentication is the responsibility of the
// injected *http.Client (typically built with oauth2.NewClient).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an API client. baseURL carries no trailing slash.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// do executes an HTTP request against the API and decodes the JSON response
// into out. Retryable failures (network errors, 429, 5xx) are retried with
// capped exponential backoff and jitter; everything else is classified into
// a sentinel-wrapping *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	url := c.baseURL + path

	backoff := retry.WithMaxRetries(maxRetries,
		retry.WithCappedDuration(maxBackoff,
			retry.WithJitterPercent(25, retry.NewExponential(baseBackoff))))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, url, body, out)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if isRetryableError(err, &apiErr) {
			c.logger.Warn("retrying request",
				slog.String("method", method),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			return retry.RetryableError(err)
		}

		return err
	})
}

// isRetryableError reports whether err warrants a retry. Network-level
// failures are retryable; API errors only for retryable status codes;
// context cancellation never is.
func isRetryableError(err error, apiErr **APIError) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.As(err, apiErr) {
		return isRetryable((*apiErr).StatusCode)
	}

	// Non-API error: transport-level failure, safe to retry.
	return true
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context cancellation is not retryable; surface it directly.
		if ctx.Err() != nil {
			return fmt.Errorf("feed: request canceled: %w", ctx.Err())
		}

		return fmt.Errorf("feed: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("feed: decoding %s %s response: %w", method, url, err)
	}

	return nil
}
