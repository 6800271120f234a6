package edunet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a non-2xx body is inspected for a message.
const maxErrorBody = 64 << 10

type httpTransport struct {
	client     *http.Client
	middleware []Middleware
}

// NewHTTPTransport returns a Transport backed by client. Middleware run in
// the order given, outermost first, around client.Do.
func NewHTTPTransport(client *http.Client, middleware ...Middleware) Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &httpTransport{client: client, middleware: middleware}
}

// RoundTrip performs one attempt bounded by req.Timeout.
func (t *httpTransport) RoundTrip(ctx context.Context, req *RequestDescriptor) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "invalid request",
			Cause:     err,
			Method:    req.Method,
			URL:       req.URL,
			Timestamp: time.Now(),
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.do(httpReq)
	if err != nil {
		return nil, t.transportError(ctx, req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ClientError{
			Type:          errorTypeForStatus(resp.StatusCode),
			ServerMessage: serverMessage(raw),
			Cause:         fmt.Errorf("HTTP %d", resp.StatusCode),
			StatusCode:    resp.StatusCode,
			Method:        req.Method,
			URL:           req.URL,
			Timestamp:     time.Now(),
			RetryAfter:    parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.transportError(ctx, req, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func (t *httpTransport) do(req *http.Request) (*http.Response, error) {
	if len(t.middleware) == 0 {
		return t.client.Do(req)
	}

	current := RoundTripperFunc(t.client.Do)
	for i := len(t.middleware) - 1; i >= 0; i-- {
		middleware := t.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}
	return current.RoundTrip(req)
}

// transportError classifies a failed round trip. An expired per-attempt
// deadline is a Timeout even when the client reports it as a url.Error.
func (t *httpTransport) transportError(ctx context.Context, req *RequestDescriptor, err error) *ClientError {
	errType := classifyCause(err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		errType = ErrorTypeTimeout
	}
	return &ClientError{
		Type:      errType,
		Cause:     err,
		Method:    req.Method,
		URL:       req.URL,
		Timestamp: time.Now(),
	}
}

// serverMessage extracts {"message": "..."} from an error body.
func serverMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms, capped at
// one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		return min(time.Duration(seconds)*time.Second, time.Hour)
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 && delay <= time.Hour {
			return delay
		}
	}
	return 0
}
