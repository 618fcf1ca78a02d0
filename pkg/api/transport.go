package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spline-tsfm/dashctl/pkg/retry"
)

// transientStatus lists the HTTP statuses worth retrying. Failures without
// any status (network faults, timeouts) are always retryable.
var transientStatus = map[int]bool{
	408: true,
	425: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// isTransient is the retry classifier for normalized request errors.
func isTransient(err error) bool {
	if IsCanceled(err) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == 0 {
		return true
	}
	return transientStatus[apiErr.Status]
}

// requestPolicy is the per-endpoint transport policy.
type requestPolicy struct {
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	onRetry    func(retry.Event)
}

// merge applies caller overrides on top of the endpoint defaults.
func (p requestPolicy) merge(opts *RequestOptions) requestPolicy {
	if opts == nil {
		return p
	}
	merged := p
	if opts.Timeout > 0 {
		merged.timeout = opts.Timeout
	}
	if opts.Retries < 0 {
		merged.retries = 0
	} else if opts.Retries > 0 {
		merged.retries = opts.Retries
	}
	if opts.RetryDelay > 0 {
		merged.retryDelay = opts.RetryDelay
	}
	merged.onRetry = opts.OnRetry
	return merged
}

// parseJSONSafe decodes a response body defensively: an empty body yields
// nil, valid JSON yields the decoded value, and anything else is returned as
// the raw string so callers can still inspect diagnostic text.
func parseJSONSafe(data []byte) interface{} {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	return decoded
}

// bodyMessage pulls a human message out of an error body, falling back to
// the supplied default.
func bodyMessage(body interface{}, fallback string) string {
	if obj, ok := asObject(body); ok {
		if s, ok := firstString(obj, "message", "error_message", "detail"); ok {
			return s
		}
	}
	return fallback
}

// bodyCode pulls a backend error code out of an error body.
func bodyCode(body interface{}) string {
	if obj, ok := asObject(body); ok {
		if s, ok := firstString(obj, "code", "error_code"); ok {
			return s
		}
	}
	return ""
}

// doRequest performs exactly one HTTP call under the attempt deadline. The
// per-attempt context guarantees the deadline timer is released and the
// parent cancellation detached on every exit path.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, timeout time.Duration) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		// External signal already canceled: never issue the request.
		return nil, ErrCanceled
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.base+c.prefix+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		return nil, err
	}

	parsed := parseJSONSafe(data)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &APIError{
			Message: bodyMessage(parsed, fmt.Sprintf("HTTP %d", res.StatusCode)),
			Status:  res.StatusCode,
			Body:    parsed,
			Code:    bodyCode(parsed),
		}
	}

	return unwrapEnvelope(parsed), nil
}

// requestJSON composes transport, error normalization, and the retry
// controller for one logical call. Everything it returns is either the
// decoded payload, an *APIError, or ErrCanceled.
func (c *Client) requestJSON(ctx context.Context, method, path string, payload interface{}, pol requestPolicy) (interface{}, error) {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apiErrorFrom(err)
		}
		body = data
	}

	var result interface{}
	attempt := func() error {
		value, err := c.doRequest(ctx, method, path, body, pol.timeout)
		if err != nil {
			return NormalizeRequestError(err, pol.timeout)
		}
		result = value
		return nil
	}

	policy := retry.Policy{
		Retries: pol.retries,
		Delay:   pol.retryDelay,
		OnRetry: c.observeRetry(pol.onRetry),
	}
	if err := retry.Do(ctx, path, policy, isTransient, attempt); err != nil {
		return nil, NormalizeRequestError(err, pol.timeout)
	}
	return result, nil
}

// observeRetry fans one retry event out to the client log, the registered
// observer, and the caller's callback. Observers are fire-and-forget and
// never influence control flow.
func (c *Client) observeRetry(callerObserver func(retry.Event)) func(retry.Event) {
	return func(ev retry.Event) {
		if c.log != nil {
			c.log.Warn("transient failure, retrying", map[string]interface{}{
				"path":         ev.Path,
				"attempt":      ev.Attempt,
				"max_attempts": ev.MaxAttempts,
				"next_delay":   ev.NextDelay.String(),
				"reason":       ev.Reason,
			})
		}
		if c.onRetry != nil {
			c.onRetry(ev)
		}
		if callerObserver != nil {
			callerObserver(ev)
		}
	}
}
