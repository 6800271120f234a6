package edunet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the {success, data, message} wrapper used by the backend.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// UnwrapEnvelope returns the payload of body. A JSON object with a "data"
// member yields that member, whatever its "success" flag says. An object
// without "data" whose "success" is false is an ErrApplication carrying the
// envelope message. Any other JSON value is returned verbatim and an empty
// body yields JSON null.
func UnwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(trimmed) {
		return nil, &ClientError{
			Type:    ErrorTypeInvalidResponse,
			Message: "មិនអាចអានទិន្នន័យបានទេ • Invalid response from server",
			Cause:   fmt.Errorf("response body is not valid JSON"),
		}
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return json.RawMessage(trimmed), nil
	}
	if data, ok := fields["data"]; ok {
		return data, nil
	}

	var success bool
	rawSuccess, ok := fields["success"]
	if !ok || json.Unmarshal(rawSuccess, &success) != nil || success {
		return json.RawMessage(trimmed), nil
	}

	var message string
	if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &message)
	}
	display := message
	if display == "" {
		display = "មានបញ្ហា • Request failed"
	}
	return nil, &ClientError{
		Type:          ErrorTypeApplication,
		Message:       display,
		ServerMessage: message,
	}
}

// Decode unmarshals the result of a client call into T. It passes err
// through unchanged, so calls can be wrapped directly:
//
//	course, err := edunet.Decode[Course](client.Get(ctx, "/courses/42"))
func Decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ClientError{
			Type:    ErrorTypeInvalidResponse,
			Message: "មិនអាចអានទិន្នន័យបានទេ • Invalid response from server",
			Cause:   err,
		}
	}
	return out, nil
}
