package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Outcome tags the result of one attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeEmptyResponse Outcome = "empty-response"
	OutcomeRateLimited   Outcome = "rate-limited"
	OutcomeOverloaded    Outcome = "overloaded"
	OutcomeHTTPError     Outcome = "http-error"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeException     Outcome = "exception"
)

// MinAcceptedLength is the trimmed length a response must exceed to be accepted.
const MinAcceptedLength = 10

const maxDetailLength = 50

// Attempt is one entry of the attempt log.
type Attempt struct {
	Index     int     `json:"index"`
	Model     string  `json:"model"`
	Outcome   Outcome `json:"outcome"`
	Detail    string  `json:"detail,omitempty"`
	LatencyMs int64   `json:"latencyMs"`
}

// String renders the attempt the way it is shown to users.
func (a Attempt) String() string {
	s := fmt.Sprintf("Attempt %d: %s - %s", a.Index, ShortModelName(a.Model), a.Outcome)
	if a.Detail != "" {
		s += " (" + a.Detail + ")"
	}
	return s
}

// ShortModelName drops the vendor prefix: "google/gemma-7b-it:free" -> "gemma-7b-it:free".
func ShortModelName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}

// Accepted reports whether content passes the minimal validity check.
func Accepted(content string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(content)) > MinAcceptedLength
}

// classify maps a provider reply to an outcome and a short detail message.
// attemptCtx is the per-attempt context; its deadline marks a timeout.
func classify(attemptCtx context.Context, content string, err error) (Outcome, string) {
	if err == nil {
		if Accepted(content) {
			return OutcomeSuccess, ""
		}
		return OutcomeEmptyResponse, "empty response"
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return OutcomeRateLimited, "Rate limited"
		case http.StatusServiceUnavailable:
			return OutcomeOverloaded, "Service overloaded"
		default:
			return OutcomeHTTPError, fmt.Sprintf("HTTP %d", statusErr.StatusCode)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout, "Timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout, "Timeout"
	}

	return OutcomeException, truncate(err.Error(), maxDetailLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
