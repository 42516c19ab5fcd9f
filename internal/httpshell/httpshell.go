// Package httpshell is the hardened HTTP layer every external call goes
// through: per-backend rate limiting, a three-state circuit breaker, and
// retry/backoff that understands Retry-After headers and RPC-shaped error
// bodies. Grounded on the original implementation's _retry.py and
// circuit_breaker.py, with gobreaker standing in for the hand-rolled
// Python state machine.
package httpshell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrForbidden indicates a 403 response: the caller fails fast, no retry.
var ErrForbidden = errors.New("httpshell: forbidden (403)")

// ErrRPCError indicates the response body itself carried an RPC-level
// "error" field even though the HTTP status was 200.
var ErrRPCError = errors.New("httpshell: rpc error in response body")

const (
	maxRetries          = 3
	backoffBaseGet      = 1.0
	backoffBasePost     = 1.5
	defaultRetryAfter   = 5.0
)

// Client wraps an *http.Client with a named rate limiter and circuit
// breaker. One Client exists per external backend (RPC, DEX aggregator,
// price aggregator, DAS, bridge API).
type Client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Settings configures a Client's breaker and limiter.
type Settings struct {
	Name               string
	RateLimitPerSecond float64
	RateLimitBurst     int
	FailureThreshold   uint32
	RecoveryTimeout    time.Duration
	SuccessThreshold   uint32
	Timeout            time.Duration
}

// NewClient builds a rate-limited, breaker-protected client for one backend.
func NewClient(s Settings) *Client {
	if s.RateLimitPerSecond <= 0 {
		s.RateLimitPerSecond = 10
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = int(s.RateLimitPerSecond)
	}
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}

	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.SuccessThreshold,
		Interval:    0,
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker transition")
		},
	}

	return &Client{
		name:    s.Name,
		http:    &http.Client{Timeout: s.Timeout},
		limiter: rate.NewLimiter(rate.Limit(s.RateLimitPerSecond), s.RateLimitBurst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Status mirrors the original's health-endpoint breaker snapshot.
type Status struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Counts  gobreaker.Counts `json:"counts"`
}

// Status reports this client's current breaker state.
func (c *Client) Status() Status {
	return Status{Name: c.name, State: c.breaker.State().String(), Counts: c.breaker.Counts()}
}

// GetJSON performs a rate-limited, breaker-protected, retrying GET and
// decodes the JSON body into out. Protect controls whether breaker state
// gates the call (false for best-effort optional enrichment paths).
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}, protect bool) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, url, nil, backoffBaseGet, protect)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// GetBytes performs a rate-limited, breaker-protected, retrying GET and
// returns the raw response body, for non-JSON payloads like token images.
func (c *Client) GetBytes(ctx context.Context, url string, protect bool) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, url, nil, backoffBaseGet, protect)
}

// PostJSON performs a rate-limited, breaker-protected, retrying POST with
// a JSON-encoded payload and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}, out interface{}, protect bool) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("httpshell: marshal payload: %w", err)
	}
	body, err := c.doWithRetry(ctx, http.MethodPost, url, buf, backoffBasePost, protect)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) doWithRetry(ctx context.Context, method, url string, payload []byte, backoffBase float64, protect bool) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpshell: rate limiter: %w", err)
		}

		var resp []byte
		call := func() (interface{}, error) {
			return c.once(ctx, method, url, payload)
		}

		var raw interface{}
		var err error
		if protect {
			raw, err = c.breaker.Execute(call)
		} else {
			raw, err = call()
		}

		if err == nil {
			resp = raw.([]byte)
			if rpcErr := checkRPCError(resp); rpcErr != nil {
				log.Debug().Str("backend", c.name).Err(rpcErr).Msg("rpc-level error in response body")
				return nil, rpcErr
			}
			return resp, nil
		}

		lastErr = err
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			if statusErr.code == http.StatusForbidden {
				return nil, ErrForbidden
			}
			if statusErr.code == http.StatusTooManyRequests {
				wait := retryAfterOrBackoff(statusErr.retryAfter, backoffBase, attempt)
				log.Warn().Str("backend", c.name).Int("attempt", attempt).Dur("wait", wait).Msg("429 rate limited, backing off")
				if !sleep(ctx, wait) {
					return nil, ctx.Err()
				}
				continue
			}
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Debug().Str("backend", c.name).Msg("circuit open, rejecting call")
			return nil, err
		}

		wait := time.Duration(backoffBase*math.Pow(2, float64(attempt))) * time.Second
		if attempt < maxRetries {
			log.Debug().Str("backend", c.name).Int("attempt", attempt).Err(err).Msg("retrying after error")
			if !sleep(ctx, wait) {
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("httpshell: %s %s failed after %d attempts: %w", method, url, maxRetries+1, lastErr)
}

type statusError struct {
	code       int
	retryAfter float64
}

func (e *statusError) Error() string { return fmt.Sprintf("http status %d", e.code) }

func (c *Client) once(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpshell: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpshell: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpshell: read body: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &statusError{code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpshell: unexpected status %d from %s", resp.StatusCode, url)
	}
	return body, nil
}

func parseRetryAfter(header string) float64 {
	if header == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		return secs
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t).Seconds()
	}
	return 0
}

func retryAfterOrBackoff(retryAfter, backoffBase float64, attempt int) time.Duration {
	if retryAfter > 0 {
		return time.Duration(retryAfter * float64(time.Second))
	}
	secs := backoffBase * math.Pow(2, float64(attempt))
	if secs <= 0 {
		secs = defaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// checkRPCError inspects a JSON body for a top-level "error" field, the
// shape every Solana JSON-RPC error response and several aggregator APIs
// use even on HTTP 200.
func checkRPCError(body []byte) error {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if len(probe.Error) == 0 || string(probe.Error) == "null" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRPCError, string(probe.Error))
}
