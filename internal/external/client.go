// Package external adapts third-party services (the hosted task backend and
// the email providers) to the reminder domain. Outbound HTTP goes through
// BaseClient for circuit breaking, retries and error mapping.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"garasiku/internal/types"

	"github.com/sony/gobreaker/v2"
)

const defaultUserAgent = "Garasiku-Reminder/1.0"

// RetryPolicy bounds how often and how long BaseClient waits between attempts.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy fits inside the job's per-call timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, MinWait: 250 * time.Millisecond, MaxWait: 3 * time.Second}
}

// BaseClient is an http.Client behind a circuit breaker with bounded retries.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(context.Context, time.Duration) error
}

type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the wait between retries.
func WithSleepFunc(fn func(context.Context, time.Duration) error) BaseClientOption {
	return func(c *BaseClient) { c.sleepFn = fn }
}

// NoSleep skips retry waits.
func NoSleep(context.Context, time.Duration) error { return nil }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewBaseClient creates a BaseClient whose breaker opens after six consecutive
// failures and half-opens after 30 seconds.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:         breakerName,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		ReadyToTrip:  func(c gobreaker.Counts) bool { return c.ConsecutiveFailures > 5 },
		IsSuccessful: func(err error) bool { return err == nil },
	})
	return NewBaseClientWithBreaker(httpClient, cb, policy, userAgent, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient around an existing breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	c := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: policy,
		userAgent:   userAgent,
		sleepFn:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req, retrying 429 and 5xx responses. Any other status is returned
// with an open body for the caller to close. When retries run out, the
// breaker is open or ctx ends, Do returns a *types.AppError and no response.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	c.decorate(req)

	body, err := snapshotBody(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err = c.breaker.Execute(func() (*http.Response, error) { return c.roundTrip(req) })
		if err == nil {
			return resp, nil
		}
		if attempt >= c.retryPolicy.MaxRetries || breakerRejected(err) || ctx.Err() != nil {
			break
		}

		wait := c.computeBackoff(attempt, resp)
		closeBody(resp)
		resp = nil
		if sleepErr := c.sleepFn(ctx, wait); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
		closeBody(resp)
	}
	return nil, upstreamError(status, err)
}

func (c *BaseClient) decorate(req *http.Request) {
	id := types.GetRunID(req.Context())
	if id == "" {
		id = types.GetRequestID(req.Context())
	}
	if id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	req.Header.Set("User-Agent", c.userAgent)
}

// roundTrip reports retryable statuses as errors so the breaker counts them.
func (c *BaseClient) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if retryableStatus(resp.StatusCode) {
		return resp, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return resp, nil
}

// computeBackoff prefers Retry-After, else full jitter over an exponential
// ceiling. The result always lies in [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	lo, hi := c.retryPolicy.MinWait, c.retryPolicy.MaxWait
	if wait, ok := retryAfter(resp); ok {
		return min(max(wait, lo), hi)
	}
	ceiling := min(lo<<min(attempt, 20), hi)
	if ceiling <= lo {
		return lo
	}
	return lo + rand.N(ceiling-lo)
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

// upstreamError classifies a failed call. status is the last response code,
// or 0 when no response was kept.
func upstreamError(status int, err error) *types.AppError {
	switch {
	case breakerRejected(err):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker is open; upstream service unavailable", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request timed out", err)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
	case status >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("upstream returned %d after retries", status), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	}
}
