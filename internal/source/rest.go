package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// Request describes one REST call.
type Request struct {
	Method string
	Path   string
	Token  string

	// Body is marshalled as JSON when non-nil.
	Body any

	// ContentType overrides application/json, e.g. for JSON Patch.
	ContentType string

	// Header carries provider specific headers.
	Header http.Header
}

// RESTClient is a thin HTTP client shared by the provider packages. It
// handles Bearer token authentication, JSON marshaling, and automatic
// retry with exponential backoff on HTTP 429.
type RESTClient struct {
	provider   model.Provider
	baseURL    string
	httpClient *http.Client
	maxRetries int

	// ErrorMessage extracts a provider specific error message from a
	// non-2xx body. Optional.
	ErrorMessage func(body []byte) string
}

// NewRESTClient creates a client rooted at baseURL.
func NewRESTClient(provider model.Provider, baseURL string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTClient{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxRetries: 3,
	}
}

// BaseURL returns the root URL without a trailing slash.
func (c *RESTClient) BaseURL() string {
	return c.baseURL
}

// Do builds the request, handles auth, rate limiting with exponential
// backoff, and JSON (de)serialization. A nil result discards the body.
func (c *RESTClient) Do(ctx context.Context, r Request, result any) error {
	url := c.baseURL + r.Path

	var payload []byte
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		for k, vs := range r.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if r.Token != "" {
			req.Header.Set("Authorization", "Bearer "+r.Token)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			ct := r.ContentType
			if ct == "" {
				ct = "application/json"
			}
			req.Header.Set("Content-Type", ct)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", r.Method, r.Path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", r.Method, r.Path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{
				Provider: c.provider,
				Message:  fmt.Sprintf("401 on %s %s: check the access token", r.Method, r.Path),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := string(respBody)
			if c.ErrorMessage != nil {
				if m := c.ErrorMessage(respBody); m != "" {
					msg = m
				}
			}
			return fmt.Errorf(
				"%s API error (%d) on %s %s: %s",
				c.provider, resp.StatusCode, r.Method, r.Path, msg,
			)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", r.Method, r.Path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
