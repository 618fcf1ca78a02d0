package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// APIError is the only error type the client surfaces for real failures.
// Timeouts, network faults, and non-2xx responses are all converted into it
// before leaving the transport/retry layer. It is immutable once constructed.
type APIError struct {
	Message string
	Status  int         // 0 when the failure never produced an HTTP status
	Body    interface{} // parsed response body, may be a raw string
	Code    string      // backend error code when present
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrCanceled marks a user- or system-initiated abort. It is deliberately not
// an *APIError: call sites treat cancellation as a no-op, never as a failure.
var ErrCanceled = errors.New("요청이 취소되었습니다")

// IsCanceled reports whether err represents a benign cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// TimeoutMessage renders the fixed user-displayable timeout message.
func TimeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("요청 시간 초과 (%dms)", timeout.Milliseconds())
}

// NetworkMessage is the fixed message for unclassified request failures.
const NetworkMessage = "네트워크 연결 실패"

var timeoutTagPattern = regexp.MustCompile(`(?i)\btimeout\b\s*:?\s*\d+`)

func hasTimeoutMarker(value string) bool {
	text := strings.ToLower(value)
	return strings.Contains(text, "timeout:") ||
		timeoutTagPattern.MatchString(value) ||
		strings.Contains(text, "timed out") ||
		strings.Contains(text, "timeout")
}

// IsTimeoutLike reports whether err carries a timeout signature: a deadline
// exceeded error, a net.Error timeout, or a timeout marker in its message.
func IsTimeoutLike(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return hasTimeoutMarker(err.Error())
}

// NormalizeRequestError classifies any transport failure into exactly one of
// ErrCanceled, a timeout *APIError, a passed-through *APIError, or the fixed
// network-failure *APIError. Every failure path runs through here before it
// reaches a caller.
func NormalizeRequestError(err error, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if IsTimeoutLike(err) {
		return &APIError{Message: TimeoutMessage(timeout)}
	}

	return &APIError{Message: NetworkMessage}
}

// apiErrorFrom coerces an arbitrary error into an *APIError, preserving
// cancellation. Used where a caller must re-raise someone else's failure.
func apiErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Message: err.Error()}
}

// FormatError renders an error for user display: "[status] (code) message".
func FormatError(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = &APIError{Message: err.Error()}
	}

	parts := make([]string, 0, 3)
	if apiErr.Status != 0 {
		parts = append(parts, fmt.Sprintf("[%d]", apiErr.Status))
	}
	if apiErr.Code != "" {
		parts = append(parts, fmt.Sprintf("(%s)", apiErr.Code))
	}
	parts = append(parts, apiErr.Message)
	return strings.Join(parts, " ")
}
