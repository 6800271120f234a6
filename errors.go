package edunet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeNoConnection     = "NoConnection"
	ErrorTypeTimeout          = "Timeout"
	ErrorTypeServer           = "ServerError"
	ErrorTypeTooManyRequests  = "TooManyRequests"
	ErrorTypeRequestTimeout   = "RequestTimeout"
	ErrorTypeClient           = "ClientError"
	ErrorTypeExhaustedRetries = "ExhaustedRetries"
	ErrorTypeNetwork          = "Network"
	ErrorTypeApplication      = "Application"
	ErrorTypeRateLimit        = "RateLimit"
	ErrorTypeInvalidResponse  = "InvalidResponse"
	ErrorTypeValidation       = "Validation"
	ErrorTypeCanceled         = "Canceled"
)

// Sentinel errors for errors.Is. A *ClientError matches the sentinel of its Type.
var (
	// ErrNoConnection is returned when the pre-flight check finds the device offline.
	ErrNoConnection = errors.New("edunet: no connection")

	// ErrTimeout is returned when a request deadline elapses.
	ErrTimeout = errors.New("edunet: timeout")

	ErrServerError     = errors.New("edunet: server error")
	ErrTooManyRequests = errors.New("edunet: too many requests")
	ErrRequestTimeout  = errors.New("edunet: request timeout")
	ErrClientError     = errors.New("edunet: client error")

	// ErrExhaustedRetries wraps the last retryable error once all attempts are spent.
	ErrExhaustedRetries = errors.New("edunet: retries exhausted")

	ErrNetwork         = errors.New("edunet: network failure")
	ErrApplication     = errors.New("edunet: application error")
	ErrRateLimited     = errors.New("edunet: rate limited")
	ErrInvalidResponse = errors.New("edunet: invalid response")
	ErrValidation      = errors.New("edunet: invalid configuration")

	// ErrCacheClosed is returned by cache operations after Close.
	ErrCacheClosed = errors.New("edunet: cache closed")
)

var sentinels = map[string]error{
	ErrorTypeNoConnection:     ErrNoConnection,
	ErrorTypeTimeout:          ErrTimeout,
	ErrorTypeServer:           ErrServerError,
	ErrorTypeTooManyRequests:  ErrTooManyRequests,
	ErrorTypeRequestTimeout:   ErrRequestTimeout,
	ErrorTypeClient:           ErrClientError,
	ErrorTypeExhaustedRetries: ErrExhaustedRetries,
	ErrorTypeNetwork:          ErrNetwork,
	ErrorTypeApplication:      ErrApplication,
	ErrorTypeRateLimit:        ErrRateLimited,
	ErrorTypeInvalidResponse:  ErrInvalidResponse,
	ErrorTypeValidation:       ErrValidation,
}

// ClientError is the single error type surfaced by the client. Message is
// ready to display; ServerMessage holds whatever the backend said, if anything.
type ClientError struct {
	Type          string
	Message       string
	ServerMessage string
	Cause         error
	StatusCode    int
	RequestID     string
	Method        string
	URL           string
	Endpoint      string
	Attempt       int
	MaxRetries    int
	Timestamp     time.Time
	Duration      time.Duration

	// RetryAfter is the server's Retry-After hint, if any.
	RetryAfter time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *ClientError of the same Type, or the sentinel for Type.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	sentinel, ok := sentinels[e.Type]
	return ok && sentinel == target
}

// Retryable reports whether the failure is transient.
func (e *ClientError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeServer, ErrorTypeTooManyRequests, ErrorTypeRequestTimeout:
		return true
	default:
		return false
	}
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.ServerMessage != "" {
		fmt.Fprintf(&b, "Server Message: %s\n", e.ServerMessage)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// IsRetryable reports whether err is a transient failure: a timeout, a
// network failure, HTTP 5xx, HTTP 408 or HTTP 429. Caller cancellation and
// every other error are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Retryable()
	}
	switch classifyCause(err) {
	case ErrorTypeTimeout, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when unknown.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

// Message returns the display message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Message != "" {
		return clientErr.Message
	}
	return err.Error()
}

// errorTypeForStatus maps a non-2xx status onto the taxonomy.
func errorTypeForStatus(status int) string {
	switch {
	case status == http.StatusRequestTimeout:
		return ErrorTypeRequestTimeout
	case status == http.StatusTooManyRequests:
		return ErrorTypeTooManyRequests
	case status >= 500 && status < 600:
		return ErrorTypeServer
	case status >= 400 && status < 500:
		return ErrorTypeClient
	default:
		return ErrorTypeInvalidResponse
	}
}

// classifyCause maps a raw error (not a *ClientError) onto the taxonomy.
func classifyCause(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr):
		return ErrorTypeNetwork
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return ErrorTypeNetwork
	}
	return ErrorTypeApplication
}

// asClientError returns err as a *ClientError, classifying raw errors.
func asClientError(err error) *ClientError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}
	return &ClientError{
		Type:      classifyCause(err),
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// localizedMessage renders the bilingual (Khmer • English) display message
// for e. attempt > 0 appends an attempt marker to transient failures.
func localizedMessage(e *ClientError, attempt int) string {
	km, en := "", ""
	if attempt > 0 {
		km = fmt.Sprintf(" (ការព្យាយាមលើកទី %d)", attempt)
		en = fmt.Sprintf(" (attempt %d)", attempt)
	}

	switch e.Type {
	case ErrorTypeNoConnection:
		return "អ្នកមិនមានអ៊ីនធឺណិតទេ • No internet connection"
	case ErrorTypeTimeout, ErrorTypeRequestTimeout:
		return "ការតភ្ជាប់យឺត សូមរង់ចាំ" + km + " • Connection is slow, please wait" + en
	case ErrorTypeTooManyRequests, ErrorTypeRateLimit:
		return "សំណើច្រើនពេក សូមព្យាយាមម្តងទៀតពេលក្រោយ" + km + " • Too many requests, please try again later" + en
	case ErrorTypeServer:
		return "មានបញ្ហាខាងម៉ាស៊ីនមេ" + km + " • Server error" + en
	case ErrorTypeNetwork:
		return "មានបញ្ហាក្នុងការតភ្ជាប់" + km + " • Connection problem" + en
	}

	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "សូមចូលប្រើប្រាស់ម្តងទៀត • Please login again"
	case http.StatusForbidden:
		return "អ្នកមិនមានសិទ្ធិចូលប្រើ • Access denied"
	case http.StatusNotFound:
		return "រកមិនឃើញទិន្នន័យ • Data not found"
	}

	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	return "មានបញ្ហា" + km + " • Request failed" + en
}

// decorate stamps the attempt bookkeeping and display message onto err.
func decorate(err error, attempt, maxRetries int) *ClientError {
	decorated := *asClientError(err)
	clientErr := &decorated
	clientErr.Attempt = attempt
	clientErr.MaxRetries = maxRetries
	clientErr.Message = localizedMessage(clientErr, attempt)
	if clientErr.Timestamp.IsZero() {
		clientErr.Timestamp = time.Now()
	}
	return clientErr
}

// exhausted wraps the last retryable failure once no attempts remain.
func exhausted(last *ClientError) *ClientError {
	return &ClientError{
		Type:          ErrorTypeExhaustedRetries,
		Message:       last.Message,
		ServerMessage: last.ServerMessage,
		Cause:         last,
		StatusCode:    last.StatusCode,
		RequestID:     last.RequestID,
		Method:        last.Method,
		URL:           last.URL,
		Endpoint:      last.Endpoint,
		Attempt:       last.Attempt,
		MaxRetries:    last.MaxRetries,
		Timestamp:     time.Now(),
	}
}
