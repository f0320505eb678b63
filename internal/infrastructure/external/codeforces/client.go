// Package codeforces implements a read-only Codeforces API client.
// It fetches user profiles, submission lists and rating history.
package codeforces

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
	"strings"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Codeforces API client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://codeforces.com/api
	BaseURL string

	// RequestDelay is slept before every request
	RequestDelay time.Duration

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// UserAgent is sent with every request
	UserAgent string

	// MaxSubmissions caps user.status results
	MaxSubmissions int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "https://codeforces.com/api",
		RequestDelay:   1000 * time.Millisecond,
		Timeout:        10 * time.Second,
		UserAgent:      "StudentProfileApp/1.0",
		MaxSubmissions: 100000,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrUserNotFound is returned when user.info has no entry for the handle.
var ErrUserNotFound = errors.New("user not found on Codeforces")

// APIError is a non-OK envelope returned by the API.
type APIError struct {
	Method     string
	StatusCode int
	Comment    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Codeforces API error: %s", e.Comment)
}

// Is lets errors.Is match the shared external-service kind.
func (e *APIError) Is(target error) bool {
	return target == shared.ErrExternalService
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Codeforces API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	pacer      *Pacer
	mapper     *Mapper
}

// NewClient creates a new Codeforces API client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxSubmissions <= 0 {
		config.MaxSubmissions = defaults.MaxSubmissions
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("component", "codeforces"),
		pacer:      NewPacer(config.RequestDelay),
		mapper:     NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// USER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchUserProfile fetches the public profile for handle.
// Any failure is returned: without a profile the sync cannot continue.
func (c *Client) FetchUserProfile(ctx context.Context, handle string) (*judge.Profile, error) {
	params := url.Values{}
	params.Set("handles", handle)

	var response APIResponse[[]UserDTO]
	if err := c.call(ctx, "user.info", params, &response); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Comment), "not found") {
			return nil, shared.WrapError("codeforces", "FetchUserProfile", shared.ErrNotFound,
				fmt.Sprintf("User %s not found on Codeforces", handle), ErrUserNotFound)
		}
		return nil, fmt.Errorf("fetch profile %s: %w", handle, err)
	}

	if len(response.Result) == 0 {
		return nil, shared.WrapError("codeforces", "FetchUserProfile", shared.ErrNotFound,
			fmt.Sprintf("User %s not found on Codeforces", handle), ErrUserNotFound)
	}

	return c.mapper.Profile(response.Result[0]), nil
}

// FetchSubmissions fetches every submission of handle.
// Failures are logged and produce an empty list.
func (c *Client) FetchSubmissions(ctx context.Context, handle string) []judge.Submission {
	params := url.Values{}
	params.Set("handle", handle)
	params.Set("from", "1")
	params.Set("count", fmt.Sprint(c.config.MaxSubmissions))

	var response APIResponse[[]SubmissionDTO]
	if err := c.call(ctx, "user.status", params, &response); err != nil {
		c.logger.Warn("failed to fetch submissions, continuing without them",
			"handle", handle,
			"error", err,
		)
		return []judge.Submission{}
	}

	return c.mapper.Submissions(response.Result)
}

// FetchRatingHistory fetches contest rating changes of handle.
// Failures are logged and produce an empty list.
func (c *Client) FetchRatingHistory(ctx context.Context, handle string) []judge.RatingChange {
	params := url.Values{}
	params.Set("handle", handle)

	var response APIResponse[[]RatingChangeDTO]
	if err := c.call(ctx, "user.rating", params, &response); err != nil {
		c.logger.Warn("failed to fetch rating history, continuing without it",
			"handle", handle,
			"error", err,
		)
		return []judge.RatingChange{}
	}

	return c.mapper.RatingChanges(response.Result)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// call waits for the pacer, then performs one GET. There are no retries.
func (c *Client) call(ctx context.Context, method string, params url.Values, result interface{}) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("wait before %s: %w", method, err)
	}

	start := time.Now()
	err := c.doSingleRequest(ctx, method, params, result)
	metrics.JudgeRequestDuration.WithLabelValues(method).Observe(metrics.Since(start))
	metrics.JudgeRequests.WithLabelValues(method, metrics.Result(err)).Inc()
	return err
}

// doSingleRequest performs a single HTTP request and decodes the envelope.
func (c *Client) doSingleRequest(ctx context.Context, method string, params url.Values, result interface{}) error {
	fullURL := strings.TrimRight(c.config.BaseURL, "/") + "/" + method + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	if c.config.Debug {
		c.logger.Debug("codeforces api request", "method", method, "params", params.Encode())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%s: %w", method, shared.ErrJudgeTimeout)
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// FAILED envelopes come with 4xx codes, so decode before checking the code.
	var envelope struct {
		Status  string          `json:"status"`
		Comment string          `json:"comment"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Comment: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		}
		return fmt.Errorf("%s: %w: %v", method, shared.ErrJudgeInvalidResponse, err)
	}

	if envelope.Status != StatusOK {
		comment := envelope.Comment
		if comment == "" {
			comment = fmt.Sprintf("status %q", envelope.Status)
		}
		return &APIError{Method: method, StatusCode: resp.StatusCode, Comment: comment}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%s: %w: %v", method, shared.ErrJudgeInvalidResponse, err)
	}
	return nil
}
