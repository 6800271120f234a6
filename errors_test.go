package edunet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
)

type timeoutNetErr struct{ timeout bool }

func (e timeoutNetErr) Error() string   { return "net failure" }
func (e timeoutNetErr) Timeout() bool   { return e.timeout }
func (e timeoutNetErr) Temporary() bool { return false }

var _ net.Error = timeoutNetErr{}

func TestClientErrorError(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeServer,
		Message:    "Server error",
		StatusCode: 503,
		RequestID:  "req-1",
		Attempt:    2,
		MaxRetries: 3,
	}

	got := err.Error()
	for _, want := range []string{"ServerError", "Server error", "HTTP 503", "[req-1]", "attempt 2/3"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}

	var nilErr *ClientError
	if nilErr.Error() != "<nil>" {
		t.Errorf("nil Error() = %q", nilErr.Error())
	}
}

func TestClientErrorIs(t *testing.T) {
	tests := []struct {
		errType  string
		sentinel error
	}{
		{ErrorTypeNoConnection, ErrNoConnection},
		{ErrorTypeTimeout, ErrTimeout},
		{ErrorTypeServer, ErrServerError},
		{ErrorTypeTooManyRequests, ErrTooManyRequests},
		{ErrorTypeRequestTimeout, ErrRequestTimeout},
		{ErrorTypeClient, ErrClientError},
		{ErrorTypeExhaustedRetries, ErrExhaustedRetries},
		{ErrorTypeNetwork, ErrNetwork},
		{ErrorTypeApplication, ErrApplication},
		{ErrorTypeRateLimit, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &ClientError{Type: tt.errType})
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%s, sentinel) = false", tt.errType)
			}
			if errors.Is(err, ErrValidation) {
				t.Errorf("%s should not match ErrValidation", tt.errType)
			}
			if !errors.Is(err, &ClientError{Type: tt.errType}) {
				t.Errorf("errors.Is should match a ClientError of the same type")
			}
		})
	}
}

func TestExhaustedWrapsLastError(t *testing.T) {
	last := &ClientError{Type: ErrorTypeServer, StatusCode: 502, Message: "Server error"}
	err := exhausted(last)

	if !errors.Is(err, ErrExhaustedRetries) {
		t.Error("exhausted error should match ErrExhaustedRetries")
	}
	if !errors.Is(err, ErrServerError) {
		t.Error("exhausted error should unwrap to the last server error")
	}
	if StatusCode(err) != 502 {
		t.Errorf("StatusCode() = %d, want 502", StatusCode(err))
	}
	if err.Retryable() {
		t.Error("exhausted error must not be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"5xx", &ClientError{Type: errorTypeForStatus(503)}, true},
		{"408", &ClientError{Type: errorTypeForStatus(408)}, true},
		{"429", &ClientError{Type: errorTypeForStatus(429)}, true},
		{"400", &ClientError{Type: errorTypeForStatus(400)}, false},
		{"404", &ClientError{Type: errorTypeForStatus(404)}, false},
		{"no connection", &ClientError{Type: ErrorTypeNoConnection}, false},
		{"application", &ClientError{Type: ErrorTypeApplication}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"net timeout", timeoutNetErr{timeout: true}, true},
		{"net failure", timeoutNetErr{}, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorTypeForStatus(t *testing.T) {
	tests := map[int]string{
		http.StatusRequestTimeout:      ErrorTypeRequestTimeout,
		http.StatusTooManyRequests:     ErrorTypeTooManyRequests,
		http.StatusInternalServerError: ErrorTypeServer,
		http.StatusServiceUnavailable:  ErrorTypeServer,
		http.StatusBadRequest:          ErrorTypeClient,
		http.StatusUnauthorized:        ErrorTypeClient,
		http.StatusFound:               ErrorTypeInvalidResponse,
	}
	for status, want := range tests {
		if got := errorTypeForStatus(status); got != want {
			t.Errorf("errorTypeForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestLocalizedMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     *ClientError
		attempt int
		want    []string
	}{
		{"offline", &ClientError{Type: ErrorTypeNoConnection}, 0, []string{"No internet connection"}},
		{"timeout with attempt", &ClientError{Type: ErrorTypeTimeout}, 2, []string{"Connection is slow", "ការព្យាយាមលើកទី 2", "(attempt 2)"}},
		{"unauthorized", &ClientError{Type: ErrorTypeClient, StatusCode: 401}, 0, []string{"Please login again"}},
		{"forbidden", &ClientError{Type: ErrorTypeClient, StatusCode: 403}, 0, []string{"Access denied"}},
		{"not found", &ClientError{Type: ErrorTypeClient, StatusCode: 404}, 0, []string{"Data not found"}},
		{"server", &ClientError{Type: ErrorTypeServer, StatusCode: 500}, 0, []string{"Server error"}},
		{"server message", &ClientError{Type: ErrorTypeClient, StatusCode: 422, ServerMessage: "Email already used"}, 0, []string{"Email already used"}},
		{"generic", &ClientError{Type: ErrorTypeClient, StatusCode: 400}, 0, []string{"Request failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := localizedMessage(tt.err, tt.attempt)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("localizedMessage() = %q, missing %q", got, want)
				}
			}
			if tt.attempt == 0 && strings.Contains(got, "attempt") {
				t.Errorf("first attempt message should carry no attempt marker: %q", got)
			}
		})
	}
}

func TestMessageAndStatusCodeHelpers(t *testing.T) {
	err := decorate(&ClientError{Type: ErrorTypeClient, StatusCode: 404}, 0, 3)

	if Message(err) != "រកមិនឃើញទិន្នន័យ • Data not found" {
		t.Errorf("Message() = %q", Message(err))
	}
	if StatusCode(fmt.Errorf("ctx: %w", err)) != 404 {
		t.Errorf("StatusCode() through wrapping = %d", StatusCode(err))
	}
	if Message(nil) != "" {
		t.Error("Message(nil) should be empty")
	}
	if Message(errors.New("plain")) != "plain" {
		t.Error("Message() should fall back to Error()")
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("StatusCode() of a plain error should be 0")
	}
}

func TestDecorateClassifiesRawErrors(t *testing.T) {
	err := decorate(context.DeadlineExceeded, 1, 3)

	if err.Type != ErrorTypeTimeout {
		t.Errorf("Type = %s, want Timeout", err.Type)
	}
	if err.Attempt != 1 || err.MaxRetries != 3 {
		t.Errorf("Attempt/MaxRetries = %d/%d", err.Attempt, err.MaxRetries)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("decorated error should unwrap to its cause")
	}
	if err.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:          ErrorTypeClient,
		Message:       "Request failed",
		ServerMessage: "bad payload",
		StatusCode:    400,
		Method:        "POST",
		URL:           "http://localhost/api/posts",
		Cause:         errors.New("HTTP 400"),
	}

	info := err.DebugInfo()
	for _, want := range []string{"Error Type: ClientError", "Server Message: bad payload", "Status Code: 400", "Method: POST", "Cause: HTTP 400"} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo() missing %q:\n%s", want, info)
		}
	}
}
